package model

// TurnEvent is published for every finished turn of a run.
type TurnEvent struct {
	RunID     string      `json:"run_id"`
	Iteration int         `json:"iteration"`
	Agent     string      `json:"agent"`
	Chunk     string      `json:"chunk"`
	Turn      *TurnRecord `json:"turn,omitempty"`
}

// DoneEvent closes a run stream.
type DoneEvent struct {
	RunID      string            `json:"run_id"`
	Summary    string            `json:"summary"`
	Transcript []TranscriptEntry `json:"transcript"`
}

// FailedEvent closes a run stream that could not complete.
type FailedEvent struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}
