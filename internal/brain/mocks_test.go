package brain_test

import (
	"context"
	"sync"
	"time"

	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/model"
)

// scriptedLLM implements llm.Generator. Each call pops the next step; the last
// step repeats once the script is exhausted.
type scriptedLLM struct {
	steps []llmStep
	calls int
}

type llmStep struct {
	text string
	err  error
}

func (s *scriptedLLM) Generate(_ context.Context, _ string) (string, error) {
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i].text, s.steps[i].err
}

func (s *scriptedLLM) Model() string {
	return "scripted"
}

type sleepRecorder struct {
	slept []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return ctx.Err()
}

// mockReplyGenerator implements brain.ReplyGenerator.
type mockReplyGenerator struct {
	mu         sync.Mutex
	prompts    []string
	generateFn func(prompt string, call int) brain.Reply
}

func (m *mockReplyGenerator) Generate(_ context.Context, prompt string) brain.Reply {
	m.mu.Lock()
	call := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.generateFn != nil {
		return m.generateFn(prompt, call)
	}
	return brain.Reply{Text: "reply", Attempts: 1}
}

func (m *mockReplyGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type mockSaver struct {
	saveFn func(ctx context.Context, run model.StoredRun) error
	saved  []model.StoredRun
}

func (m *mockSaver) Save(ctx context.Context, run model.StoredRun) error {
	m.saved = append(m.saved, run)
	if m.saveFn != nil {
		return m.saveFn(ctx, run)
	}
	return nil
}
