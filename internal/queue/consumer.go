package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"ciphercore.app/convo/common/logger"
	"ciphercore.app/convo/internal/model"
	"github.com/redis/go-redis/v9"
)

type ConsumerConfig struct {
	Stream       string        // Redis stream name
	Group        string        // Redis consumer group name
	Consumer     string        // Redis consumer name
	DLQStream    string        // Dead letter queue stream for failed messages
	BatchSize    int64         // Number of messages to process per batch
	Block        time.Duration // How long to block/poll for new messages
	MaxAttempts  int           // Maximum retry attempts before moving to DLQ
	RequeueDelay time.Duration // Delay before retrying failed messages
}

type Message struct {
	ID       string
	TaskType TaskType
	Task     RunTask
	Attempt  int
	TraceID  string
	Raw      redis.XMessage
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Start from "0" so tasks enqueued before the group existed are not lost.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "convo.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" reads only messages never delivered to anyone; the reclaimer handles unacked ones
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, parseErr := ParseMessage(msg)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse message",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, Message{ID: msg.ID, Raw: msg})
				continue
			}
			messages = append(messages, parsed)
		}
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read messages from stream",
			"count", len(messages),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}

	slog.DebugContext(ctx, "message acknowledged", "stream", c.cfg.Stream)
	return nil
}

func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for requeue: %w", err)
	}

	task := msg.Task
	task.Attempt = msg.Attempt + 1
	values, err := taskValues(msg.TaskType, task)
	if err != nil {
		return fmt.Errorf("encode requeued task: %w", err)
	}
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	if c.cfg.RequeueDelay > 0 {
		time.Sleep(c.cfg.RequeueDelay)
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "message requeued for retry",
		"next_attempt", task.Attempt,
		"reason", errMsg)
	return nil
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for dlq: %w", err)
	}

	values, err := taskValues(msg.TaskType, msg.Task)
	if err != nil {
		return fmt.Errorf("encode dlq task: %w", err)
	}
	values["error"] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "message sent to DLQ",
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	taskTypeStr, err := parseOptionalString(msg.Values, "task_type")
	if err != nil {
		return Message{}, err
	}
	taskType := TaskType(taskTypeStr)
	if taskType == "" {
		return Message{}, fmt.Errorf("missing task_type")
	}
	if taskType != TaskTypeConversationRun {
		return Message{}, fmt.Errorf("unknown task_type %q", taskType)
	}

	runID, err := parseString(msg.Values, "run_id")
	if err != nil {
		return Message{}, err
	}
	topic, err := parseString(msg.Values, "topic")
	if err != nil {
		return Message{}, err
	}
	iterations, err := parseInt(msg.Values, "iterations")
	if err != nil {
		return Message{}, err
	}

	agentsRaw, err := parseString(msg.Values, "agents")
	if err != nil {
		return Message{}, err
	}
	var agents []string
	if err := json.Unmarshal([]byte(agentsRaw), &agents); err != nil {
		return Message{}, fmt.Errorf("parsing agents: %w", err)
	}

	var personalities map[string]model.Personality
	if raw, err := parseOptionalString(msg.Values, "personalities"); err != nil {
		return Message{}, err
	} else if raw != "" {
		if err := json.Unmarshal([]byte(raw), &personalities); err != nil {
			return Message{}, fmt.Errorf("parsing personalities: %w", err)
		}
	}

	language, err := parseOptionalString(msg.Values, "language")
	if err != nil {
		return Message{}, err
	}
	expertise, err := parseOptionalString(msg.Values, "expertise_level")
	if err != nil {
		return Message{}, err
	}
	owner, err := parseOptionalString(msg.Values, "owner_id")
	if err != nil {
		return Message{}, err
	}
	traceID, err := parseOptionalString(msg.Values, "trace_id")
	if err != nil {
		return Message{}, err
	}

	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	task := RunTask{
		RunID:          runID,
		Topic:          topic,
		AgentNames:     agents,
		Personalities:  personalities,
		Iterations:     iterations,
		Language:       model.ParseLanguage(language),
		ExpertiseLevel: expertise,
		Attempt:        attempt,
	}
	if owner != "" {
		task.OwnerID = &owner
	}
	if traceID != "" {
		task.TraceID = &traceID
	}

	return Message{
		ID:       msg.ID,
		TaskType: taskType,
		Task:     task,
		Attempt:  attempt,
		TraceID:  traceID,
		Raw:      msg,
	}, nil
}

func parseInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	str := fmt.Sprint(raw)
	num, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	str := fmt.Sprint(raw)
	num, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}

func taskValues(taskType TaskType, task RunTask) (map[string]any, error) {
	if taskType == "" {
		taskType = TaskTypeConversationRun
	}

	agents, err := json.Marshal(task.AgentNames)
	if err != nil {
		return nil, err
	}

	values := map[string]any{
		"task_type":  string(taskType),
		"run_id":     task.RunID,
		"topic":      task.Topic,
		"agents":     string(agents),
		"iterations": task.Iterations,
		"attempt":    task.Attempt,
	}

	if len(task.Personalities) > 0 {
		personalities, err := json.Marshal(task.Personalities)
		if err != nil {
			return nil, err
		}
		values["personalities"] = string(personalities)
	}
	if task.Language != model.LanguageUnspecified {
		values["language"] = string(task.Language)
	}
	if task.ExpertiseLevel != "" {
		values["expertise_level"] = task.ExpertiseLevel
	}
	if task.OwnerID != nil && *task.OwnerID != "" {
		values["owner_id"] = *task.OwnerID
	}
	if task.TraceID != nil && *task.TraceID != "" {
		values["trace_id"] = *task.TraceID
	}

	return values, nil
}
