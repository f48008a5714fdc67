package brain

import (
	"fmt"
	"strings"

	"ciphercore.app/convo/internal/model"
)

var personalityDirectives = map[model.Personality]string{
	model.PersonalityCritical:     "Be critical and question assumptions.",
	model.PersonalityVisionary:    "Be visionary and think big.",
	model.PersonalityConservative: "Be conservative and stick to what has proven itself.",
}

var languageDirectives = map[model.Language]string{
	model.LanguageGerman:  "Antworte auf Deutsch.",
	model.LanguageEnglish: "Respond in English.",
	model.LanguageFrench:  "Répondez en français.",
	model.LanguageSpanish: "Responde en español.",
}

// Turn is everything the orchestrator needs to run one iteration.
type Turn struct {
	Iteration      int
	AgentIndex     int
	Agent          model.AgentDefinition
	PreviousAgent  model.AgentDefinition
	PreviousOutput string
	Prompt         string
}

// TurnScheduler picks speakers round robin and renders their prompts.
type TurnScheduler struct {
	topic    string
	roster   []model.AgentDefinition
	language model.Language
}

func NewTurnScheduler(topic string, roster []model.AgentDefinition, language model.Language) *TurnScheduler {
	return &TurnScheduler{topic: topic, roster: roster, language: language}
}

// SpeakerIndex returns the roster position speaking at the 1-based iteration.
func SpeakerIndex(iteration, rosterSize int) int {
	return mod(iteration-1, rosterSize)
}

// Next builds the turn for iteration. window holds each roster slot's latest
// output and must have the roster's length.
func (s *TurnScheduler) Next(iteration int, window []string) Turn {
	n := len(s.roster)
	idx := SpeakerIndex(iteration, n)
	prevIdx := mod(idx-1, n)

	t := Turn{
		Iteration:      iteration,
		AgentIndex:     idx,
		Agent:          s.roster[idx],
		PreviousAgent:  s.roster[prevIdx],
		PreviousOutput: window[prevIdx],
	}
	t.Prompt = s.render(t)
	return t
}

func (s *TurnScheduler) render(t Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "We are having a conversation about: '%s'.\n", s.topic)
	fmt.Fprintf(&b, "Iteration %d: Agent %s (specialist for **%s**).", t.Iteration, t.Agent.Name, t.Agent.Name)
	if t.Agent.Instruction != "" {
		b.WriteString(" ")
		b.WriteString(t.Agent.Instruction)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Agent %s said: %s\n", t.PreviousAgent.Name, t.PreviousOutput)

	if directive, ok := personalityDirectives[t.Agent.Personality]; ok {
		b.WriteString("\n")
		b.WriteString(directive)
	}

	if directive, ok := languageDirectives[s.language]; ok {
		b.WriteString("\n\n")
		b.WriteString(directive)
	}
	return b.String()
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
