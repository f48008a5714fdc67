package dto

import (
	"time"

	"ciphercore.app/convo/internal/model"
)

type TranscriptResponse struct {
	RunID      string                  `json:"run_id"`
	Topic      string                  `json:"topic"`
	Agents     []string                `json:"agents"`
	Transcript []model.TranscriptEntry `json:"transcript"`
	Summary    string                  `json:"summary"`
	OwnerID    *string                 `json:"owner_id,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

func ToTranscriptResponse(run model.StoredRun) TranscriptResponse {
	return TranscriptResponse{
		RunID:      run.RunID,
		Topic:      run.Topic,
		Agents:     run.AgentNames,
		Transcript: run.Transcript,
		Summary:    run.Summary,
		OwnerID:    run.OwnerID,
		CreatedAt:  run.CreatedAt,
	}
}

func ToTranscriptResponses(runs []model.StoredRun) []TranscriptResponse {
	out := make([]TranscriptResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, ToTranscriptResponse(r))
	}
	return out
}

type AgentResponse struct {
	Name        string            `json:"name"`
	Personality model.Personality `json:"personality"`
	Instruction string            `json:"instruction,omitempty"`
}

func ToAgentResponses(agents []model.AgentDefinition) []AgentResponse {
	out := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, AgentResponse{Name: a.Name, Personality: a.Personality, Instruction: a.Instruction})
	}
	return out
}
