package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RunEvent string

const (
	RunEventTurn   RunEvent = "turn"
	RunEventDone   RunEvent = "done"
	RunEventFailed RunEvent = "failed"
)

// Terminal reports whether no further events follow e on a run stream.
func (e RunEvent) Terminal() bool {
	return e == RunEventDone || e == RunEventFailed
}

const (
	runStreamMaxLen = 1000
	runStreamTTL    = 24 * time.Hour
)

// RunStreamEntry is one event read back from a run stream. Data is the JSON payload.
type RunStreamEntry struct {
	ID    string
	Event RunEvent
	Data  string
}

// RunStream publishes and reads the per-run update streams.
type RunStream struct {
	client *redis.Client
}

func NewRunStream(client *redis.Client) *RunStream {
	return &RunStream{client: client}
}

func (s *RunStream) Publish(ctx context.Context, runID string, event RunEvent, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	stream := RunStreamName(runID)
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: runStreamMaxLen,
		Approx: true,
		Values: map[string]any{
			"event": string(event),
			"data":  string(data),
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}

	if event.Terminal() {
		// finished streams only need to outlive late readers
		if err := s.client.Expire(ctx, stream, runStreamTTL).Err(); err != nil {
			return fmt.Errorf("expire %s: %w", stream, err)
		}
	}
	return nil
}

// Read returns the entries after lastID ("0" for the beginning), blocking up
// to block for new ones; block <= 0 does not wait. An empty result with a nil
// error means the wait timed out.
func (s *RunStream) Read(ctx context.Context, runID, lastID string, block time.Duration) ([]RunStreamEntry, error) {
	if lastID == "" {
		lastID = "0"
	}

	args := &redis.XReadArgs{
		Streams: []string{RunStreamName(runID), lastID},
		Block:   block,
		Count:   100,
	}
	if block <= 0 {
		// go-redis treats 0 as "block forever"; -1 omits BLOCK
		args.Block = -1
	}

	res, err := s.client.XRead(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xread %s: %w", RunStreamName(runID), err)
	}

	var entries []RunStreamEntry
	for _, streamRes := range res {
		for _, msg := range streamRes.Messages {
			entries = append(entries, RunStreamEntry{
				ID:    msg.ID,
				Event: RunEvent(fmt.Sprint(msg.Values["event"])),
				Data:  fmt.Sprint(msg.Values["data"]),
			})
		}
	}
	return entries, nil
}
