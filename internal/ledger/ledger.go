package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"ciphercore.app/convo/common/logger"
	"ciphercore.app/convo/internal/model"
)

var (
	ErrInvalidVote = errors.New("invalid vote")
	// ErrCorruptDocument marks a stored document that was read but could not be decoded.
	ErrCorruptDocument = errors.New("rating document is corrupt")
)

// Document is the persisted form: runID -> iteration -> agent name -> counters.
// Iterations are decimal strings so the document survives a JSON round trip.
type Document map[string]map[string]map[string]model.Counters

// Persister stores the whole ledger document. Save always rewrites everything.
// Load returns an empty document, not an error, when nothing is stored yet.
type Persister interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}

// Ledger counts up- and downvotes per agent turn.
type Ledger struct {
	mu        sync.Mutex
	counts    map[model.RatingKey]model.Counters
	persister Persister
	// synced is false while the stored document could not be read. Saving
	// then would overwrite counters the ledger never saw.
	synced bool
}

// New returns an empty ledger. persister may be nil for an in-memory ledger.
func New(persister Persister) *Ledger {
	return &Ledger{
		counts:    make(map[model.RatingKey]model.Counters),
		persister: persister,
		synced:    true,
	}
}

// Load builds a ledger from the persisted document. A corrupt document is
// logged and replaced on the next vote. When the store cannot be read at all,
// votes are kept in memory and the load is retried before every save.
func Load(ctx context.Context, persister Persister) *Ledger {
	l := New(persister)
	if persister == nil {
		return l
	}

	doc, err := persister.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrCorruptDocument) {
			slog.ErrorContext(ctx, "rating document is corrupt, starting empty", "error", err)
			return l
		}
		slog.ErrorContext(ctx, "rating store unavailable, votes stay in memory until it can be read", "error", err)
		l.synced = false
		return l
	}

	l.mergeLocked(ctx, doc)
	slog.InfoContext(ctx, "rating ledger loaded", "entries", len(l.counts))
	return l
}

// Rate records one vote and persists the whole document. A persist failure is
// logged; the vote stays counted in memory.
func (l *Ledger) Rate(ctx context.Context, key model.RatingKey, kind model.VoteKind) (model.Counters, error) {
	if err := validate(key, kind); err != nil {
		return model.Counters{}, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(key.RunID),
		Iteration: logger.Ptr(key.Iteration),
		Agent:     logger.Ptr(key.AgentName),
		Component: "convo.ledger",
	})

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.synced {
		l.resyncLocked(ctx)
	}

	c := l.counts[key]
	switch kind {
	case model.VoteUp:
		c.Upvotes++
	case model.VoteDown:
		c.Downvotes++
	}
	l.counts[key] = c

	slog.InfoContext(ctx, "vote recorded", "kind", kind, "upvotes", c.Upvotes, "downvotes", c.Downvotes)

	if l.persister == nil {
		return c, nil
	}
	if !l.synced {
		slog.WarnContext(ctx, "rating store still unreadable, vote not persisted")
		return c, nil
	}
	if err := l.persister.Save(ctx, l.documentLocked()); err != nil {
		slog.ErrorContext(ctx, "failed to persist rating ledger", "error", err)
	}
	return c, nil
}

// resyncLocked retries the initial load and adds the stored counters to the
// votes counted in memory meanwhile.
func (l *Ledger) resyncLocked(ctx context.Context) {
	doc, err := l.persister.Load(ctx)
	if err != nil && !errors.Is(err, ErrCorruptDocument) {
		slog.WarnContext(ctx, "rating store still unavailable", "error", err)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "rating document is corrupt, replacing it", "error", err)
	}
	l.mergeLocked(ctx, doc)
	l.synced = true
	slog.InfoContext(ctx, "rating ledger resynced", "entries", len(l.counts))
}

// mergeLocked adds the counters in doc to the in-memory counters.
func (l *Ledger) mergeLocked(ctx context.Context, doc Document) {
	skipped := 0
	for runID, iterations := range doc {
		for iterKey, agents := range iterations {
			iteration, err := strconv.Atoi(iterKey)
			if err != nil {
				skipped += len(agents)
				continue
			}
			for agent, c := range agents {
				if c.Upvotes < 0 || c.Downvotes < 0 {
					skipped++
					continue
				}
				key := model.RatingKey{RunID: runID, Iteration: iteration, AgentName: agent}
				cur := l.counts[key]
				l.counts[key] = model.Counters{Upvotes: cur.Upvotes + c.Upvotes, Downvotes: cur.Downvotes + c.Downvotes}
			}
		}
	}
	if skipped > 0 {
		slog.WarnContext(ctx, "skipped malformed rating entries", "count", skipped)
	}
}

// Get returns the counters for key, zero if nobody voted yet.
func (l *Ledger) Get(key model.RatingKey) model.Counters {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key]
}

// Document returns a snapshot in persisted form.
func (l *Ledger) Document() Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.documentLocked()
}

func (l *Ledger) documentLocked() Document {
	doc := make(Document)
	for k, c := range l.counts {
		iterations, ok := doc[k.RunID]
		if !ok {
			iterations = make(map[string]map[string]model.Counters)
			doc[k.RunID] = iterations
		}
		iterKey := strconv.Itoa(k.Iteration)
		agents, ok := iterations[iterKey]
		if !ok {
			agents = make(map[string]model.Counters)
			iterations[iterKey] = agents
		}
		agents[k.AgentName] = c
	}
	return doc
}

func validate(key model.RatingKey, kind model.VoteKind) error {
	switch {
	case key.RunID == "":
		return fmt.Errorf("%w: run id is required", ErrInvalidVote)
	case key.Iteration < 1:
		return fmt.Errorf("%w: iteration must be positive", ErrInvalidVote)
	case key.AgentName == "":
		return fmt.Errorf("%w: agent name is required", ErrInvalidVote)
	}
	if kind != model.VoteUp && kind != model.VoteDown {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidVote, kind)
	}
	return nil
}
