package model

import "time"

// RunConfig is fixed when a run starts.
type RunConfig struct {
	RunID          string            `json:"run_id,omitempty"`
	Topic          string            `json:"topic"`
	Agents         []AgentDefinition `json:"agents"`
	Iterations     int               `json:"iterations"`
	Language       Language          `json:"language,omitempty"`
	ExpertiseLevel string            `json:"expertise_level,omitempty"`
	OwnerID        *string           `json:"owner_id,omitempty"`
}

func (c RunConfig) AgentNames() []string {
	names := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		names[i] = a.Name
	}
	return names
}

// QualityLabel is the keyword-heuristic verdict on a reply.
type QualityLabel string

const (
	QualityPoor    QualityLabel = "poor"
	QualityGood    QualityLabel = "good"
	QualityNeutral QualityLabel = "neutral"
)

// TurnRecord is one agent's contribution. Iteration is 1-based.
type TurnRecord struct {
	Iteration   int          `json:"iteration"`
	AgentName   string       `json:"agent_name"`
	Personality Personality  `json:"personality"`
	PromptSent  string       `json:"prompt_sent"`
	RawReply    string       `json:"raw_reply"`
	Quality     QualityLabel `json:"quality"`
	WasRetried  bool         `json:"was_retried"`
	Degraded    bool         `json:"degraded,omitempty"` // RawReply is a terminal generation error text
}

type EntryKind string

const (
	EntryKindTurn           EntryKind = "turn"
	EntryKindSummary        EntryKind = "summary"
	EntryKindFinalStatement EntryKind = "final_statement"
)

// TranscriptEntry is either a turn or one of the two trailing synthesized entries.
type TranscriptEntry struct {
	Kind    EntryKind   `json:"kind"`
	Turn    *TurnRecord `json:"turn,omitempty"`
	Content string      `json:"content"`
}

type Transcript struct {
	Entries []TranscriptEntry `json:"entries"`
}

// Turns returns the primary turn records in iteration order.
func (t Transcript) Turns() []TurnRecord {
	turns := make([]TurnRecord, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.Kind == EntryKindTurn && e.Turn != nil {
			turns = append(turns, *e.Turn)
		}
	}
	return turns
}

type RunResult struct {
	RunID      string     `json:"run_id"`
	Config     RunConfig  `json:"config"`
	Transcript Transcript `json:"transcript"`
	Summary    string     `json:"summary"`
	CreatedAt  time.Time  `json:"created_at"`
}

// StoredRun is a persisted conversation row.
type StoredRun struct {
	RunID      string            `json:"run_id"`
	Topic      string            `json:"topic"`
	AgentNames []string          `json:"agent_names"`
	Transcript []TranscriptEntry `json:"transcript"`
	Summary    string            `json:"summary"`
	OwnerID    *string           `json:"owner_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func NewStoredRun(r RunResult) StoredRun {
	return StoredRun{
		RunID:      r.RunID,
		Topic:      r.Config.Topic,
		AgentNames: r.Config.AgentNames(),
		Transcript: r.Transcript.Entries,
		Summary:    r.Summary,
		OwnerID:    r.Config.OwnerID,
		CreatedAt:  r.CreatedAt,
	}
}
