package arangodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
)

var ErrNotFound = errors.New("document not found")

// Client is a small document store over one ArangoDB database.
type Client interface {
	// Setup operations
	EnsureDatabase(ctx context.Context) error
	EnsureCollection(ctx context.Context, name string) error

	// ReplaceDocument writes doc under key, creating it if needed.
	ReplaceDocument(ctx context.Context, collection, key string, doc any) error
	// ReadDocument decodes the document stored under key into out.
	// Returns ErrNotFound if there is none.
	ReadDocument(ctx context.Context, collection, key string, out any) error

	Close() error
}

type Config struct {
	URL      string
	Username string
	Password string
	Database string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("arangodb URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("arangodb username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("arangodb database name is required")
	}
	return nil
}

type client struct {
	conn         connection.Connection
	arangoClient arangodb.Client
	db           arangodb.Database
	cfg          Config
}

func New(ctx context.Context, cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arangodb config: %w", err)
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))

	auth := connection.NewBasicAuth(cfg.Username, cfg.Password)
	if err := conn.SetAuthentication(auth); err != nil {
		return nil, fmt.Errorf("arangodb auth: %w", err)
	}

	return &client{
		conn:         conn,
		arangoClient: arangodb.NewClient(conn),
		cfg:          cfg,
	}, nil
}

func (c *client) Close() error {
	return nil
}

func (c *client) EnsureDatabase(ctx context.Context) error {
	start := time.Now()

	exists, err := c.arangoClient.DatabaseExists(ctx, c.cfg.Database)
	if err != nil {
		return fmt.Errorf("check database exists: %w", err)
	}

	if !exists {
		_, err = c.arangoClient.CreateDatabase(ctx, c.cfg.Database, nil)
		if err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		slog.InfoContext(ctx, "arangodb database created",
			"database", c.cfg.Database,
			"duration_ms", time.Since(start).Milliseconds())
	}

	db, err := c.arangoClient.GetDatabase(ctx, c.cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("get database: %w", err)
	}
	c.db = db

	return nil
}

func (c *client) EnsureCollection(ctx context.Context, name string) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized, call EnsureDatabase first")
	}

	exists, err := c.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s exists: %w", name, err)
	}
	if exists {
		return nil
	}

	colType := arangodb.CollectionTypeDocument
	if _, err := c.db.CreateCollectionV2(ctx, name, &arangodb.CreateCollectionPropertiesV2{Type: &colType}); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	slog.InfoContext(ctx, "arangodb collection created", "collection", name)

	return nil
}

const replaceDocumentQuery = `
UPSERT { _key: @key }
INSERT MERGE(@doc, { _key: @key })
REPLACE MERGE(@doc, { _key: @key })
IN @@collection
`

func (c *client) ReplaceDocument(ctx context.Context, collection, key string, doc any) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}

	start := time.Now()
	cursor, err := c.db.Query(ctx, replaceDocumentQuery, &arangodb.QueryOptions{
		BindVars: map[string]any{
			"@collection": collection,
			"key":         key,
			"doc":         doc,
		},
	})
	if err != nil {
		return fmt.Errorf("replace document %s/%s: %w", collection, key, err)
	}
	defer cursor.Close()

	slog.DebugContext(ctx, "arangodb document replaced",
		"collection", collection,
		"key", key,
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

const readDocumentQuery = `
FOR d IN @@collection
	FILTER d._key == @key
	LIMIT 1
	RETURN UNSET(d, "_key", "_id", "_rev")
`

func (c *client) ReadDocument(ctx context.Context, collection, key string, out any) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}

	cursor, err := c.db.Query(ctx, readDocumentQuery, &arangodb.QueryOptions{
		BindVars: map[string]any{
			"@collection": collection,
			"key":         key,
		},
	})
	if err != nil {
		return fmt.Errorf("read document %s/%s: %w", collection, key, err)
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return ErrNotFound
	}
	if _, err := cursor.ReadDocument(ctx, out); err != nil {
		return fmt.Errorf("decode document %s/%s: %w", collection, key, err)
	}
	return nil
}
