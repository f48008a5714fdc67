package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, task RunTask) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task RunTask) error {
	if task.Attempt <= 0 {
		task.Attempt = 1
	}

	values, err := taskValues(TaskTypeConversationRun, task)
	if err != nil {
		return fmt.Errorf("encode run task: %w", err)
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue run task: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued conversation run",
		"run_id", task.RunID,
		"agents", task.AgentNames,
		"iterations", task.Iterations,
		"attempt", task.Attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
