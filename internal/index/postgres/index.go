// Package postgres implements the index writer on PostgreSQL, for server
// deployments where several crawlers share one index.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brlegis/normcrawler/internal/norm"
)

// Expected schema:
//
//	CREATE TABLE documents (
//	  doc_id        TEXT PRIMARY KEY,
//	  type          TEXT NOT NULL,
//	  number        INTEGER NOT NULL,
//	  year          INTEGER NOT NULL,
//	  variant       TEXT NOT NULL,
//	  url           TEXT NOT NULL,
//	  text          TEXT NOT NULL,
//	  collected_at  TIMESTAMPTZ NOT NULL,
//	  etag          TEXT,
//	  last_modified TEXT,
//	  content_hash  TEXT NOT NULL
//	);

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Index is a Postgres-backed crawl.Index.
type Index struct {
	pool querier
}

// New connects a pool and returns the index writer.
func New(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("index.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Index{pool: pool}, nil
}

// NewWithPool constructs an index from an existing pool (primarily for
// testing).
func NewWithPool(pool querier) (*Index, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Index{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (i *Index) Close() {
	if i == nil || i.pool == nil {
		return
	}
	i.pool.Close()
}

// Get returns the stored document, or (nil, nil) when unknown.
func (i *Index) Get(ctx context.Context, docID string) (*norm.Document, error) {
	row := i.pool.QueryRow(ctx, `
SELECT doc_id, type, number, year, variant, url, text, collected_at, etag, last_modified, content_hash
FROM documents WHERE doc_id = $1`, docID)

	var (
		doc     norm.Document
		variant string
		etag    *string
		lastMod *string
	)
	err := row.Scan(&doc.DocID, &doc.Type, &doc.Number, &doc.Year, &variant,
		&doc.URL, &doc.Text, &doc.CollectedAt, &etag, &lastMod, &doc.ContentHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document %s: %w", docID, err)
	}
	doc.Variant = norm.Variant(variant)
	if etag != nil {
		doc.ETag = *etag
	}
	if lastMod != nil {
		doc.LastModified = *lastMod
	}
	return &doc, nil
}

// Upsert writes the document, replacing any prior version under its ID.
func (i *Index) Upsert(ctx context.Context, doc norm.Document) error {
	_, err := i.pool.Exec(ctx, `
INSERT INTO documents (doc_id, type, number, year, variant, url, text, collected_at, etag, last_modified, content_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (doc_id) DO UPDATE SET
  url = EXCLUDED.url,
  text = EXCLUDED.text,
  collected_at = EXCLUDED.collected_at,
  etag = EXCLUDED.etag,
  last_modified = EXCLUDED.last_modified,
  content_hash = EXCLUDED.content_hash`,
		doc.DocID, doc.Type, doc.Number, doc.Year, string(doc.Variant), doc.URL,
		doc.Text, doc.CollectedAt, nullIfEmpty(doc.ETag), nullIfEmpty(doc.LastModified),
		doc.ContentHash)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.DocID, err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
