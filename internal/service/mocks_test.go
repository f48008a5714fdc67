package service_test

import (
	"context"

	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/queue"
)

type stubReplyGenerator struct {
	calls int
}

func (s *stubReplyGenerator) Generate(_ context.Context, _ string) brain.Reply {
	s.calls++
	return brain.Reply{Text: "reply", Attempts: 1}
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, task queue.RunTask) error
	tasks     []queue.RunTask
}

func (m *mockProducer) Enqueue(ctx context.Context, task queue.RunTask) error {
	m.tasks = append(m.tasks, task)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

type mockTranscriptStore struct {
	saveFn        func(ctx context.Context, run model.StoredRun) error
	listByOwnerFn func(ctx context.Context, owner *string) ([]model.StoredRun, error)
	getFn         func(ctx context.Context, runID string) (*model.StoredRun, error)
}

func (m *mockTranscriptStore) Save(ctx context.Context, run model.StoredRun) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, run)
	}
	return nil
}

func (m *mockTranscriptStore) ListByOwner(ctx context.Context, owner *string) ([]model.StoredRun, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, owner)
	}
	return nil, nil
}

func (m *mockTranscriptStore) Get(ctx context.Context, runID string) (*model.StoredRun, error) {
	if m.getFn != nil {
		return m.getFn(ctx, runID)
	}
	return nil, nil
}
