package store

import (
	"context"
	"errors"

	"ciphercore.app/convo/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateRun is returned when a run id has already been stored
var ErrDuplicateRun = errors.New("run already stored")

// TranscriptStore persists finished conversation runs. Rows are append-only.
type TranscriptStore interface {
	Save(ctx context.Context, run model.StoredRun) error
	// ListByOwner returns every stored run when owner is nil, otherwise only that owner's runs.
	ListByOwner(ctx context.Context, owner *string) ([]model.StoredRun, error)
	Get(ctx context.Context, runID string) (*model.StoredRun, error)
}
