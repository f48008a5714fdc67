package queue

import "ciphercore.app/convo/internal/model"

type TaskType string

const (
	TaskTypeConversationRun TaskType = "conversation_run"
)

// RunTask asks a worker to execute one conversation run in the background.
// The run id is assigned by the producer so clients can follow the run stream
// before the worker picks the task up.
type RunTask struct {
	RunID          string
	Topic          string
	AgentNames     []string
	Personalities  map[string]model.Personality
	Iterations     int
	Language       model.Language
	ExpertiseLevel string
	OwnerID        *string
	TraceID        *string
	Attempt        int
}

// RunStreamName is the redis stream a background run publishes its updates to.
func RunStreamName(runID string) string {
	return "run-stream:" + runID
}
