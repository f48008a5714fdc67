package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ciphercore.app/convo/common/arangodb"
	"github.com/redis/go-redis/v9"
)

// FilePersister keeps the document in a JSON file, replaced atomically on save.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Load(_ context.Context) (Document, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("reading rating file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding rating file: %w: %w", ErrCorruptDocument, err)
	}
	return doc, nil
}

func (p *FilePersister) Save(_ context.Context, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding rating document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp rating file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp rating file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp rating file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("replacing rating file: %w", err)
	}
	return nil
}

// RedisPersister keeps the document as one JSON string value.
type RedisPersister struct {
	client *redis.Client
	key    string
}

func NewRedisPersister(client *redis.Client, key string) *RedisPersister {
	return &RedisPersister{client: client, key: key}
}

func (p *RedisPersister) Load(ctx context.Context) (Document, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("reading rating key %s: %w", p.key, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding rating key %s: %w: %w", p.key, ErrCorruptDocument, err)
	}
	return doc, nil
}

func (p *RedisPersister) Save(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding rating document: %w", err)
	}
	if err := p.client.Set(ctx, p.key, data, 0).Err(); err != nil {
		return fmt.Errorf("writing rating key %s: %w", p.key, err)
	}
	return nil
}

const arangoLedgerKey = "ratings"

type arangoLedgerDoc struct {
	Ratings Document `json:"ratings"`
}

// ArangoPersister keeps the document under a fixed key in one collection.
type ArangoPersister struct {
	client     arangodb.Client
	collection string
}

func NewArangoPersister(client arangodb.Client, collection string) *ArangoPersister {
	return &ArangoPersister{client: client, collection: collection}
}

func (p *ArangoPersister) Load(ctx context.Context) (Document, error) {
	var doc arangoLedgerDoc
	if err := p.client.ReadDocument(ctx, p.collection, arangoLedgerKey, &doc); err != nil {
		if errors.Is(err, arangodb.ErrNotFound) {
			return Document{}, nil
		}
		return nil, err
	}
	if doc.Ratings == nil {
		return Document{}, nil
	}
	return doc.Ratings, nil
}

func (p *ArangoPersister) Save(ctx context.Context, doc Document) error {
	return p.client.ReplaceDocument(ctx, p.collection, arangoLedgerKey, arangoLedgerDoc{Ratings: doc})
}
