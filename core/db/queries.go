package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const Schema = `
CREATE TABLE IF NOT EXISTS conversation_runs (
	run_id      TEXT PRIMARY KEY,
	topic       TEXT NOT NULL,
	agent_names JSONB NOT NULL DEFAULT '[]',
	transcript  JSONB NOT NULL DEFAULT '[]',
	summary     TEXT NOT NULL DEFAULT '',
	owner_id    TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS conversation_runs_owner_idx ON conversation_runs (owner_id);
`

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type ConversationRun struct {
	RunID      string
	Topic      string
	AgentNames []byte
	Transcript []byte
	Summary    string
	OwnerID    *string
	CreatedAt  time.Time
}

type InsertConversationRunParams struct {
	RunID      string
	Topic      string
	AgentNames []byte
	Transcript []byte
	Summary    string
	OwnerID    *string
}

const insertConversationRun = `
INSERT INTO conversation_runs (run_id, topic, agent_names, transcript, summary, owner_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING run_id, topic, agent_names, transcript, summary, owner_id, created_at
`

func (q *Queries) InsertConversationRun(ctx context.Context, arg InsertConversationRunParams) (ConversationRun, error) {
	row := q.db.QueryRow(ctx, insertConversationRun,
		arg.RunID,
		arg.Topic,
		arg.AgentNames,
		arg.Transcript,
		arg.Summary,
		arg.OwnerID,
	)
	var r ConversationRun
	err := row.Scan(&r.RunID, &r.Topic, &r.AgentNames, &r.Transcript, &r.Summary, &r.OwnerID, &r.CreatedAt)
	return r, err
}

const listConversationRuns = `
SELECT run_id, topic, agent_names, transcript, summary, owner_id, created_at
FROM conversation_runs
ORDER BY created_at, run_id
`

const listConversationRunsByOwner = `
SELECT run_id, topic, agent_names, transcript, summary, owner_id, created_at
FROM conversation_runs
WHERE owner_id = $1
ORDER BY created_at, run_id
`

func (q *Queries) ListConversationRuns(ctx context.Context) ([]ConversationRun, error) {
	rows, err := q.db.Query(ctx, listConversationRuns)
	if err != nil {
		return nil, err
	}
	return scanConversationRuns(rows)
}

func (q *Queries) ListConversationRunsByOwner(ctx context.Context, ownerID string) ([]ConversationRun, error) {
	rows, err := q.db.Query(ctx, listConversationRunsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	return scanConversationRuns(rows)
}

const getConversationRun = `
SELECT run_id, topic, agent_names, transcript, summary, owner_id, created_at
FROM conversation_runs
WHERE run_id = $1
`

func (q *Queries) GetConversationRun(ctx context.Context, runID string) (ConversationRun, error) {
	var r ConversationRun
	err := q.db.QueryRow(ctx, getConversationRun, runID).
		Scan(&r.RunID, &r.Topic, &r.AgentNames, &r.Transcript, &r.Summary, &r.OwnerID, &r.CreatedAt)
	return r, err
}

func scanConversationRuns(rows pgx.Rows) ([]ConversationRun, error) {
	defer rows.Close()

	var items []ConversationRun
	for rows.Next() {
		var r ConversationRun
		if err := rows.Scan(&r.RunID, &r.Topic, &r.AgentNames, &r.Transcript, &r.Summary, &r.OwnerID, &r.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
