package worker

import (
	"context"

	"ciphercore.app/convo/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// RunProcessor executes one queued conversation run.
type RunProcessor interface {
	Process(ctx context.Context, task queue.RunTask) error
}

// UpdatePublisher is satisfied by *queue.RunStream.
type UpdatePublisher interface {
	Publish(ctx context.Context, runID string, event queue.RunEvent, payload any) error
}
