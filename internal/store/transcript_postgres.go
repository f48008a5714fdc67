package store

import (
	"context"
	"errors"
	"fmt"

	"ciphercore.app/convo/core/db"
	"ciphercore.app/convo/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

type postgresTranscriptStore struct {
	queries *db.Queries
}

func NewPostgresTranscriptStore(queries *db.Queries) TranscriptStore {
	return &postgresTranscriptStore{queries: queries}
}

func (s *postgresTranscriptStore) Save(ctx context.Context, run model.StoredRun) error {
	enc, err := encodeRun(run)
	if err != nil {
		return err
	}

	_, err = s.queries.InsertConversationRun(ctx, db.InsertConversationRunParams{
		RunID:      run.RunID,
		Topic:      run.Topic,
		AgentNames: enc.agentNames,
		Transcript: enc.transcript,
		Summary:    run.Summary,
		OwnerID:    run.OwnerID,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.RunID)
		}
		return fmt.Errorf("inserting conversation run: %w", err)
	}
	return nil
}

func (s *postgresTranscriptStore) ListByOwner(ctx context.Context, owner *string) ([]model.StoredRun, error) {
	var (
		rows []db.ConversationRun
		err  error
	)
	if owner == nil {
		rows, err = s.queries.ListConversationRuns(ctx)
	} else {
		rows, err = s.queries.ListConversationRunsByOwner(ctx, *owner)
	}
	if err != nil {
		return nil, fmt.Errorf("listing conversation runs: %w", err)
	}

	runs := make([]model.StoredRun, 0, len(rows))
	for _, row := range rows {
		run, err := toStoredRun(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *postgresTranscriptStore) Get(ctx context.Context, runID string) (*model.StoredRun, error) {
	row, err := s.queries.GetConversationRun(ctx, runID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting conversation run: %w", err)
	}
	run, err := toStoredRun(row)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func toStoredRun(row db.ConversationRun) (model.StoredRun, error) {
	names, entries, err := decodeLists(row.AgentNames, row.Transcript)
	if err != nil {
		return model.StoredRun{}, fmt.Errorf("run %s: %w", row.RunID, err)
	}
	return model.StoredRun{
		RunID:      row.RunID,
		Topic:      row.Topic,
		AgentNames: names,
		Transcript: entries,
		Summary:    row.Summary,
		OwnerID:    row.OwnerID,
		CreatedAt:  row.CreatedAt,
	}, nil
}
