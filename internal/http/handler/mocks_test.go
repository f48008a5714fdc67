package handler_test

import (
	"context"
	"strings"

	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/service"
)

type mockConversationService struct {
	startFn   func(ctx context.Context, req service.StartRunRequest) (*brain.Run, error)
	enqueueFn func(ctx context.Context, req service.StartRunRequest) (string, error)
	agents    []model.AgentDefinition
}

func (m *mockConversationService) Start(ctx context.Context, req service.StartRunRequest) (*brain.Run, error) {
	if m.startFn != nil {
		return m.startFn(ctx, req)
	}
	return nil, nil
}

func (m *mockConversationService) Enqueue(ctx context.Context, req service.StartRunRequest) (string, error) {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, req)
	}
	return "", nil
}

func (m *mockConversationService) Agents() []model.AgentDefinition {
	return m.agents
}

type mockTranscriptService struct {
	listFn func(ctx context.Context, owner *string) ([]model.StoredRun, error)
	getFn  func(ctx context.Context, runID string) (*model.StoredRun, error)
}

func (m *mockTranscriptService) List(ctx context.Context, owner *string) ([]model.StoredRun, error) {
	if m.listFn != nil {
		return m.listFn(ctx, owner)
	}
	return []model.StoredRun{}, nil
}

func (m *mockTranscriptService) Get(ctx context.Context, runID string) (*model.StoredRun, error) {
	if m.getFn != nil {
		return m.getFn(ctx, runID)
	}
	return nil, nil
}

type stubReplyGenerator struct{}

func (stubReplyGenerator) Generate(_ context.Context, _ string) brain.Reply {
	return brain.Reply{Text: "reply", Attempts: 1}
}

type sseEvent struct {
	ID    string
	Event string
	Data  string
}

// parseSSE splits a recorded event-stream body into events.
func parseSSE(body string) []sseEvent {
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var ev sseEvent
		var data []string
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "id: "):
				ev.ID = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "event: "):
				ev.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = append(data, strings.TrimPrefix(line, "data: "))
			}
		}
		ev.Data = strings.Join(data, "\n")
		events = append(events, ev)
	}
	return events
}

func eventNames(events []sseEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Event)
	}
	return out
}
