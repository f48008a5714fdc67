package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ciphercore.app/convo/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversation_runs (
	run_id      TEXT PRIMARY KEY,
	topic       TEXT NOT NULL,
	agent_names TEXT NOT NULL DEFAULT '[]',
	transcript  TEXT NOT NULL DEFAULT '[]',
	summary     TEXT NOT NULL DEFAULT '',
	owner_id    TEXT,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS conversation_runs_owner_idx ON conversation_runs (owner_id);
`

const sqliteColumns = `run_id, topic, agent_names, transcript, summary, owner_id, created_at`

// SQLiteTranscriptStore keeps runs in a single database file. Used by the CLI.
type SQLiteTranscriptStore struct {
	db *sql.DB
}

func NewSQLiteTranscriptStore(ctx context.Context, path string) (*SQLiteTranscriptStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &SQLiteTranscriptStore{db: db}, nil
}

func (s *SQLiteTranscriptStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteTranscriptStore) Save(ctx context.Context, run model.StoredRun) error {
	enc, err := encodeRun(run)
	if err != nil {
		return err
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_runs (`+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID,
		run.Topic,
		string(enc.agentNames),
		string(enc.transcript),
		run.Summary,
		run.OwnerID,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.RunID)
		}
		return fmt.Errorf("inserting conversation run: %w", err)
	}
	return nil
}

func (s *SQLiteTranscriptStore) ListByOwner(ctx context.Context, owner *string) ([]model.StoredRun, error) {
	query := `SELECT ` + sqliteColumns + ` FROM conversation_runs`
	var args []any
	if owner != nil {
		query += ` WHERE owner_id = ?`
		args = append(args, *owner)
	}
	query += ` ORDER BY created_at, run_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversation runs: %w", err)
	}
	defer rows.Close()

	runs := []model.StoredRun{}
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteTranscriptStore) Get(ctx context.Context, runID string) (*model.StoredRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM conversation_runs WHERE run_id = ?`, runID)
	run, err := scanSQLiteRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (model.StoredRun, error) {
	var (
		run        model.StoredRun
		agentNames sql.NullString
		transcript sql.NullString
		ownerID    sql.NullString
		createdAt  string
	)
	if err := row.Scan(&run.RunID, &run.Topic, &agentNames, &transcript, &run.Summary, &ownerID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scanning conversation run: %w", err)
	}

	names, entries, err := decodeLists([]byte(agentNames.String), []byte(transcript.String))
	if err != nil {
		return run, fmt.Errorf("run %s: %w", run.RunID, err)
	}
	run.AgentNames = names
	run.Transcript = entries
	if ownerID.Valid {
		owner := ownerID.String
		run.OwnerID = &owner
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		run.CreatedAt = t
	}
	return run, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
