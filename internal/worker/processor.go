package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/queue"
	"ciphercore.app/convo/internal/service"
)

// ErrRunIncomplete is returned when a run stopped before its final update,
// usually because the worker is shutting down.
var ErrRunIncomplete = errors.New("run stopped before completion")

// RunStarter is satisfied by service.ConversationService.
type RunStarter interface {
	Start(ctx context.Context, req service.StartRunRequest) (*brain.Run, error)
}

type Processor struct {
	runs      RunStarter
	publisher UpdatePublisher
}

func NewProcessor(runs RunStarter, publisher UpdatePublisher) *Processor {
	return &Processor{runs: runs, publisher: publisher}
}

// Process drives the run to completion, publishing every update to the run's stream.
func (p *Processor) Process(ctx context.Context, task queue.RunTask) error {
	run, err := p.runs.Start(ctx, service.StartRunRequest{
		RunID:          task.RunID,
		Topic:          task.Topic,
		AgentNames:     task.AgentNames,
		Personalities:  task.Personalities,
		Iterations:     task.Iterations,
		Language:       task.Language,
		ExpertiseLevel: task.ExpertiseLevel,
		OwnerID:        task.OwnerID,
	})
	if err != nil {
		p.publish(ctx, task.RunID, queue.RunEventFailed, model.FailedEvent{RunID: task.RunID, Error: err.Error()})
		return fmt.Errorf("starting run: %w", err)
	}

	for u := range run.Updates(ctx) {
		if u.Final() {
			p.publish(ctx, u.RunID, queue.RunEventDone, u.DoneEvent())
			continue
		}
		p.publish(ctx, u.RunID, queue.RunEventTurn, u.TurnEvent())
	}

	if _, ok := run.Result(); !ok {
		return fmt.Errorf("%w: state %s", ErrRunIncomplete, run.State())
	}
	return nil
}

// publish never fails the run; a reader that misses events can reload the transcript.
func (p *Processor) publish(ctx context.Context, runID string, event queue.RunEvent, payload any) {
	if err := p.publisher.Publish(ctx, runID, event, payload); err != nil {
		slog.WarnContext(ctx, "failed to publish run update", "error", err, "event", event)
	}
}
