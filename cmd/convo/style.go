package main

import (
	"fmt"
	"strings"

	"ciphercore.app/convo/internal/model"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Padding(0, 1)

	summaryStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	personalityColors = map[model.Personality]lipgloss.Color{
		model.PersonalityCritical:     lipgloss.Color("196"),
		model.PersonalityVisionary:    lipgloss.Color("42"),
		model.PersonalityConservative: lipgloss.Color("33"),
		model.PersonalityNeutral:      lipgloss.Color("255"),
	}
)

func agentStyle(p model.Personality) lipgloss.Style {
	color, ok := personalityColors[p]
	if !ok {
		color = personalityColors[model.PersonalityNeutral]
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}

func renderTurn(t model.TurnRecord) string {
	var b strings.Builder
	b.WriteString(agentStyle(t.Personality).Render(t.AgentName))
	b.WriteString(mutedStyle.Render(fmt.Sprintf(" #%d", t.Iteration)))
	if t.WasRetried {
		b.WriteString(mutedStyle.Render(" (retried)"))
	}
	b.WriteString("\n")
	if t.Degraded {
		b.WriteString(warningStyle.Render(t.RawReply))
	} else {
		b.WriteString(t.RawReply)
	}
	b.WriteString("\n")
	return b.String()
}

func renderSummary(topic, summary string) string {
	return titleStyle.Render("Summary: "+topic) + "\n" + summaryStyle.Render(summary) + "\n"
}

func renderAgent(a model.AgentDefinition) string {
	line := agentStyle(a.Personality).Render(a.Name) + mutedStyle.Render(" ("+string(a.Personality)+")")
	if a.Instruction != "" {
		line += "\n  " + a.Instruction
	}
	return line
}

func renderStoredRun(r model.StoredRun) string {
	owner := "-"
	if r.OwnerID != nil {
		owner = *r.OwnerID
	}
	return fmt.Sprintf("%s  %s  %s  %s",
		mutedStyle.Render(r.CreatedAt.Local().Format("2006-01-02 15:04")),
		titleStyle.Render(r.RunID),
		r.Topic,
		mutedStyle.Render(fmt.Sprintf("[%s] owner=%s", strings.Join(r.AgentNames, ", "), owner)))
}
