package store

import (
	"encoding/json"
	"fmt"

	"ciphercore.app/convo/internal/model"
)

type encodedRun struct {
	agentNames []byte
	transcript []byte
}

func encodeRun(run model.StoredRun) (encodedRun, error) {
	names := run.AgentNames
	if names == nil {
		names = []string{}
	}
	entries := run.Transcript
	if entries == nil {
		entries = []model.TranscriptEntry{}
	}

	agentNames, err := json.Marshal(names)
	if err != nil {
		return encodedRun{}, fmt.Errorf("encoding agent names: %w", err)
	}
	transcript, err := json.Marshal(entries)
	if err != nil {
		return encodedRun{}, fmt.Errorf("encoding transcript: %w", err)
	}
	return encodedRun{agentNames: agentNames, transcript: transcript}, nil
}

// decodeLists turns the two JSON columns back into slices. Empty or null
// columns decode to empty, non-nil slices.
func decodeLists(agentNames, transcript []byte) ([]string, []model.TranscriptEntry, error) {
	names := []string{}
	if len(agentNames) > 0 {
		if err := json.Unmarshal(agentNames, &names); err != nil {
			return nil, nil, fmt.Errorf("decoding agent names: %w", err)
		}
		if names == nil {
			names = []string{}
		}
	}

	entries := []model.TranscriptEntry{}
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &entries); err != nil {
			return nil, nil, fmt.Errorf("decoding transcript: %w", err)
		}
		if entries == nil {
			entries = []model.TranscriptEntry{}
		}
	}
	return names, entries, nil
}
