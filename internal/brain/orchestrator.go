package brain

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ciphercore.app/convo/common/logger"
	"ciphercore.app/convo/internal/model"
)

const (
	CreativeRetryPrompt = "Try a more creative answer."
	summaryPromptTmpl   = "Summarize the entire discussion about '%s'."
	summaryExcerptLen   = 1200
)

// ReplyGenerator is satisfied by *GenerationClient.
type ReplyGenerator interface {
	Generate(ctx context.Context, prompt string) Reply
}

// TranscriptSaver persists a finished run. Implemented by store.TranscriptStore.
type TranscriptSaver interface {
	Save(ctx context.Context, run model.StoredRun) error
}

// ValidationError rejects a run before any remote call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid run config: %s %s", e.Field, e.Reason)
}

type RunState int32

const (
	StateIdle RunState = iota
	StateRunning
	StateSummarizing
	StateCompleted
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSummarizing:
		return "summarizing"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Update is one element of a run's output sequence. The last element has
// Iteration 0 and an empty Agent; its Chunk is the summary.
type Update struct {
	Transcript []model.TranscriptEntry
	Chunk      string
	RunID      string
	Iteration  int
	Agent      string
}

func (u Update) Final() bool {
	return u.Iteration == 0 && u.Agent == ""
}

// TurnEvent describes a turn update for streaming clients.
func (u Update) TurnEvent() model.TurnEvent {
	ev := model.TurnEvent{RunID: u.RunID, Iteration: u.Iteration, Agent: u.Agent, Chunk: u.Chunk}
	if n := len(u.Transcript); n > 0 && u.Transcript[n-1].Turn != nil {
		ev.Turn = u.Transcript[n-1].Turn
	}
	return ev
}

// DoneEvent describes the final update for streaming clients.
func (u Update) DoneEvent() model.DoneEvent {
	return model.DoneEvent{RunID: u.RunID, Summary: u.Chunk, Transcript: u.Transcript}
}

type OrchestratorConfig struct {
	NewRunID func() string
	Now      func() time.Time
}

type Orchestrator struct {
	gen   ReplyGenerator
	saver TranscriptSaver
	cfg   OrchestratorConfig
}

// NewOrchestrator wires the run engine. saver may be nil, in which case no run is persisted.
func NewOrchestrator(gen ReplyGenerator, saver TranscriptSaver, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{gen: gen, saver: saver, cfg: cfg}
}

// Start validates cfg and returns an idle run. No remote call happens until
// the run's Updates sequence is consumed.
func (o *Orchestrator) Start(ctx context.Context, cfg model.RunConfig) (*Run, error) {
	if err := validate(cfg); err != nil {
		slog.WarnContext(ctx, "rejected run config", "error", err)
		return nil, err
	}

	if cfg.RunID == "" {
		if o.cfg.NewRunID == nil {
			return nil, fmt.Errorf("no run id supplied and no generator configured")
		}
		cfg.RunID = o.cfg.NewRunID()
	}
	cfg.Agents = append([]model.AgentDefinition(nil), cfg.Agents...)

	slog.InfoContext(ctx, "conversation started",
		"run_id", cfg.RunID,
		"agents", cfg.AgentNames(),
		"iterations", cfg.Iterations,
		"language", cfg.Language,
		"expertise_level", cfg.ExpertiseLevel)

	return &Run{o: o, cfg: cfg}, nil
}

func validate(cfg model.RunConfig) error {
	if len(cfg.Agents) == 0 {
		return &ValidationError{Field: "agents", Reason: "must not be empty"}
	}
	if cfg.Iterations <= 0 {
		return &ValidationError{Field: "iterations", Reason: "must be greater than zero"}
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return &ValidationError{Field: "topic", Reason: "must not be empty"}
	}
	for i, a := range cfg.Agents {
		if strings.TrimSpace(a.Name) == "" {
			return &ValidationError{Field: fmt.Sprintf("agents[%d].name", i), Reason: "must not be empty"}
		}
		if !a.Personality.Valid() {
			return &ValidationError{Field: fmt.Sprintf("agents[%d].personality", i), Reason: fmt.Sprintf("unknown value %q", a.Personality)}
		}
	}
	return nil
}

// Run is a single conversation. It is driven by exactly one consumer of Updates.
type Run struct {
	o   *Orchestrator
	cfg model.RunConfig

	state    atomic.Int32
	consumed atomic.Bool

	mu         sync.Mutex
	transcript []model.TranscriptEntry
	result     *model.RunResult
}

func (r *Run) ID() string {
	return r.cfg.RunID
}

func (r *Run) Config() model.RunConfig {
	return r.cfg
}

func (r *Run) State() RunState {
	return RunState(r.state.Load())
}

// Result returns the finished run once the final update has been produced.
func (r *Run) Result() (*model.RunResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.result != nil
}

// Updates returns the run's lazy output sequence. It can be consumed once;
// ranging over it again yields nothing. Breaking out of the loop stops the run
// after the current turn, keeping everything produced so far.
func (r *Run) Updates(ctx context.Context) iter.Seq[Update] {
	return func(yield func(Update) bool) {
		if !r.consumed.CompareAndSwap(false, true) {
			return
		}
		r.execute(ctx, yield)
	}
}

func (r *Run) execute(ctx context.Context, yield func(Update) bool) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(r.cfg.RunID),
		OwnerID:   r.cfg.OwnerID,
		Component: "convo.brain.orchestrator",
	})

	sc := logger.StartSpan(ctx, "brain.run")
	defer sc.End()
	ctx = sc.Context()

	r.state.Store(int32(StateRunning))

	scheduler := NewTurnScheduler(r.cfg.Topic, r.cfg.Agents, r.cfg.Language)
	detector := NewStagnationDetector(r.cfg.Iterations)
	window := make([]string, len(r.cfg.Agents))

	for i := 1; i <= r.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "run context done, stopping", "error", err, "iteration", i)
			return
		}

		record := r.playTurn(ctx, scheduler, detector, i, window)
		entry := model.TranscriptEntry{Kind: model.EntryKindTurn, Turn: &record, Content: record.RawReply}
		transcript := r.appendEntry(entry)

		if !yield(Update{
			Transcript: transcript,
			Chunk:      FormatChunk(record),
			RunID:      r.cfg.RunID,
			Iteration:  i,
			Agent:      record.AgentName,
		}) {
			slog.InfoContext(ctx, "consumer stopped reading, run abandoned", "iteration", i)
			return
		}
	}

	r.state.Store(int32(StateSummarizing))

	summary := r.o.gen.Generate(ctx, SummaryPrompt(r.cfg.Topic, r.transcriptSnapshot()))
	transcript := r.appendEntry(model.TranscriptEntry{Kind: model.EntryKindSummary, Content: summary.Text})

	result := &model.RunResult{
		RunID:      r.cfg.RunID,
		Config:     r.cfg,
		Transcript: model.Transcript{Entries: transcript},
		Summary:    summary.Text,
		CreatedAt:  r.o.cfg.Now().UTC(),
	}
	// The stored transcript ends with the summary; the final statement is
	// only part of the streamed result.
	r.persist(ctx, result)

	finalStatement := window[len(window)-1]
	transcript = r.appendEntry(model.TranscriptEntry{Kind: model.EntryKindFinalStatement, Content: finalStatement})
	result.Transcript = model.Transcript{Entries: transcript}
	slog.InfoContext(ctx, "final statement", "text", logger.Truncate(finalStatement, 200))

	r.mu.Lock()
	r.result = result
	r.mu.Unlock()
	r.state.Store(int32(StateCompleted))

	yield(Update{
		Transcript: transcript,
		Chunk:      summary.Text,
		RunID:      r.cfg.RunID,
	})
}

func (r *Run) playTurn(ctx context.Context, scheduler *TurnScheduler, detector *StagnationDetector, iteration int, window []string) model.TurnRecord {
	turn := scheduler.Next(iteration, window)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Iteration: logger.Ptr(iteration),
		Agent:     logger.Ptr(turn.Agent.Name),
	})
	sc := logger.StartSpan(ctx, "brain.turn")
	defer sc.End()
	ctx = sc.Context()

	reply := r.o.gen.Generate(ctx, turn.Prompt)
	record := model.TurnRecord{
		Iteration:   iteration,
		AgentName:   turn.Agent.Name,
		Personality: turn.Agent.Personality,
		PromptSent:  turn.Prompt,
		RawReply:    reply.Text,
		Quality:     ClassifyQuality(reply.Text),
		Degraded:    reply.Degraded,
	}
	if reply.Err != nil {
		sc.RecordError(reply.Err)
	}

	if record.Quality == model.QualityPoor {
		slog.InfoContext(ctx, "poor reply, asking for a more creative answer")
		record.WasRetried = true
		retry := r.o.gen.Generate(ctx, CreativeRetryPrompt)
		if retry.Degraded {
			slog.WarnContext(ctx, "creative retry failed, keeping original reply", "error", retry.Err)
		} else {
			record.RawReply = retry.Text
			record.Degraded = false
		}
	}

	window[turn.AgentIndex] = record.RawReply

	if detector.Check(iteration, record.RawReply, turn.PreviousOutput, window) {
		slog.InfoContext(ctx, "stagnation detected, shifting topic", "topic_shift", TopicShiftText)
	}

	slog.InfoContext(ctx, "turn completed",
		"quality", record.Quality,
		"was_retried", record.WasRetried,
		"degraded", record.Degraded,
		"reply", logger.Truncate(record.RawReply, 200))

	return record
}

func (r *Run) persist(ctx context.Context, result *model.RunResult) {
	if r.cfg.OwnerID == nil || *r.cfg.OwnerID == "" {
		slog.InfoContext(ctx, "anonymous run, transcript not persisted")
		return
	}
	if r.o.saver == nil {
		slog.WarnContext(ctx, "no transcript store configured, transcript not persisted")
		return
	}
	if err := r.o.saver.Save(ctx, model.NewStoredRun(*result)); err != nil {
		slog.ErrorContext(ctx, "failed to persist transcript", "error", err)
		return
	}
	slog.InfoContext(ctx, "transcript persisted")
}

// appendEntry appends e and returns a copy of the transcript so far.
func (r *Run) appendEntry(e model.TranscriptEntry) []model.TranscriptEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript = append(r.transcript, e)
	return append([]model.TranscriptEntry(nil), r.transcript...)
}

func (r *Run) transcriptSnapshot() []model.TranscriptEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TranscriptEntry(nil), r.transcript...)
}

// FormatChunk renders one turn for incremental display.
func FormatChunk(t model.TurnRecord) string {
	return fmt.Sprintf("**Iteration %d: Agent %s (%s)**\n\n%s\n\n---\n\n", t.Iteration, t.AgentName, t.Personality, t.RawReply)
}

// SummaryPrompt asks for a summary of the topic and quotes each turn so the
// model has the discussion in front of it.
func SummaryPrompt(topic string, entries []model.TranscriptEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, summaryPromptTmpl, topic)
	for _, e := range entries {
		if e.Kind != model.EntryKindTurn || e.Turn == nil {
			continue
		}
		fmt.Fprintf(&b, "\n\nAgent %s (iteration %d):\n%s", e.Turn.AgentName, e.Turn.Iteration, logger.Truncate(e.Turn.RawReply, summaryExcerptLen))
	}
	return b.String()
}
