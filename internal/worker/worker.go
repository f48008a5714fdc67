package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ciphercore.app/convo/common/logger"
	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/queue"
)

type Config struct {
	MaxAttempts int
}

type Worker struct {
	consumer  Consumer
	processor RunProcessor
	cfg       Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, processor RunProcessor, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		processor: processor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "convo.worker",
	})
	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		msgCtx := logger.WithLogFields(ctx, logger.LogFields{
			RunID:     logger.Ptr(msg.Task.RunID),
			MessageID: logger.Ptr(msg.ID),
			OwnerID:   msg.Task.OwnerID,
		})
		if err := w.processMessageSafe(msgCtx, msg); err != nil {
			if ctx.Err() != nil {
				// shutting down: leave the message pending for the reclaimer
				slog.WarnContext(msgCtx, "run interrupted by shutdown", "error", err)
				return nil
			}
			slog.ErrorContext(msgCtx, "message processing failed", "error", err)
			w.handleFailedMessage(msgCtx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// Exported so it can be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.conversation_run")
	defer sc.End()
	ctx = sc.Context()

	slog.InfoContext(ctx, "processing conversation run",
		"attempt", msg.Attempt,
		"iterations", msg.Task.Iterations,
		"agents", msg.Task.AgentNames)

	start := time.Now()
	if err := w.processor.Process(ctx, msg.Task); err != nil {
		sc.RecordError(err)
		// not acked: the caller requeues or dead-letters it
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// the reclaimer may redeliver; a rerun only duplicates stream events
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	slog.InfoContext(ctx, "conversation run completed",
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	var vErr *brain.ValidationError
	if errors.As(err, &vErr) {
		slog.ErrorContext(ctx, "invalid run config, sending to DLQ", "error", err)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ", "attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message", "attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
