// Package bootstrap builds the dependencies the server, the worker and the
// command line tool share from a loaded config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"ciphercore.app/convo/common/arangodb"
	"ciphercore.app/convo/common/llm"
	"ciphercore.app/convo/core/config"
	"ciphercore.app/convo/core/db"
	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/ledger"
	"ciphercore.app/convo/internal/store"
	"github.com/redis/go-redis/v9"
)

// Closer releases whatever a constructor opened. It is never nil.
type Closer func()

func noop() {}

func Redis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// GenerationClient wraps the configured provider in the retry policy.
func GenerationClient(cfg config.Config) (*brain.GenerationClient, error) {
	gen, err := llm.New(llm.Config{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	return brain.NewGenerationClient(gen, brain.RetryPolicy{
		Cooldown:   cfg.Generation.Cooldown,
		BaseDelay:  cfg.Generation.BaseDelay,
		MaxRetries: cfg.Generation.MaxRetries,
	}), nil
}

// TranscriptStore opens postgres when DATABASE_URL is set and the sqlite file otherwise.
func TranscriptStore(ctx context.Context, cfg config.Config) (store.TranscriptStore, Closer, error) {
	if cfg.DB.Enabled() {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, noop, err
		}
		slog.InfoContext(ctx, "transcript store ready", "backend", "postgres")
		return store.NewPostgresTranscriptStore(database.Queries()), database.Close, nil
	}

	s, err := store.NewSQLiteTranscriptStore(ctx, cfg.SQLite.Path)
	if err != nil {
		return nil, noop, err
	}
	slog.InfoContext(ctx, "transcript store ready", "backend", "sqlite", "path", cfg.SQLite.Path)
	return s, func() { _ = s.Close() }, nil
}

// Ledger loads the rating ledger from the configured backend. redisClient is
// only needed for the redis backend and may be nil otherwise.
func Ledger(ctx context.Context, cfg config.Config, redisClient *redis.Client) (*ledger.Ledger, Closer, error) {
	switch cfg.Ledger.Backend {
	case "redis":
		if redisClient == nil {
			return nil, noop, fmt.Errorf("RATING_BACKEND=redis requires REDIS_URL")
		}
		return ledger.Load(ctx, ledger.NewRedisPersister(redisClient, cfg.Ledger.RedisKey)), noop, nil

	case "arangodb":
		client, err := arangodb.New(ctx, arangodb.Config{
			URL:      cfg.ArangoDB.URL,
			Username: cfg.ArangoDB.Username,
			Password: cfg.ArangoDB.Password,
			Database: cfg.ArangoDB.Database,
		})
		if err != nil {
			return nil, noop, err
		}
		if err := client.EnsureDatabase(ctx); err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		if err := client.EnsureCollection(ctx, cfg.ArangoDB.Collection); err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		closer := func() { _ = client.Close() }
		return ledger.Load(ctx, ledger.NewArangoPersister(client, cfg.ArangoDB.Collection)), closer, nil

	default:
		return ledger.Load(ctx, ledger.NewFilePersister(cfg.Ledger.Path)), noop, nil
	}
}
