package worker_test

import (
	"context"
	"sync"

	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/queue"
)

type stubReplyGenerator struct {
	mu    sync.Mutex
	calls int
}

func (s *stubReplyGenerator) Generate(_ context.Context, _ string) brain.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return brain.Reply{Text: "reply", Attempts: 1}
}

type published struct {
	RunID   string
	Event   queue.RunEvent
	Payload any
}

type mockPublisher struct {
	mu        sync.Mutex
	events    []published
	publishFn func(ctx context.Context, runID string, event queue.RunEvent, payload any) error
}

func (m *mockPublisher) Publish(ctx context.Context, runID string, event queue.RunEvent, payload any) error {
	m.mu.Lock()
	m.events = append(m.events, published{RunID: runID, Event: event, Payload: payload})
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, runID, event, payload)
	}
	return nil
}

func (m *mockPublisher) kinds() []queue.RunEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]queue.RunEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Event)
	}
	return out
}

type mockConsumer struct {
	readFn  func(ctx context.Context) ([]queue.Message, error)
	acked   []string
	requeue []string
	dlq     []string
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	if m.readFn != nil {
		return m.readFn(ctx)
	}
	return nil, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, _ string) error {
	m.requeue = append(m.requeue, msg.ID)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, _ string) error {
	m.dlq = append(m.dlq, msg.ID)
	return nil
}

type mockRunProcessor struct {
	processFn func(ctx context.Context, task queue.RunTask) error
}

func (m *mockRunProcessor) Process(ctx context.Context, task queue.RunTask) error {
	if m.processFn != nil {
		return m.processFn(ctx, task)
	}
	return nil
}
