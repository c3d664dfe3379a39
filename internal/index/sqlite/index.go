// Package sqlite implements the index writer on a local SQLite database with
// an FTS5 full-text table, the default backend for single-machine runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/brlegis/normcrawler/internal/norm"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
  doc_id        TEXT PRIMARY KEY,
  type          TEXT NOT NULL,
  number        INTEGER NOT NULL,
  year          INTEGER NOT NULL,
  variant       TEXT NOT NULL,
  url           TEXT NOT NULL,
  text          TEXT NOT NULL,
  collected_at  TEXT NOT NULL,
  etag          TEXT,
  last_modified TEXT,
  content_hash  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_pair ON documents(type, year);
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(doc_id UNINDEXED, text);
`

// Index is a SQLite-backed crawl.Index.
type Index struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the database at path.
func Open(path string) (*Index, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the database handle.
func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

// Get returns the stored document, or (nil, nil) when unknown.
func (i *Index) Get(ctx context.Context, docID string) (*norm.Document, error) {
	row := i.db.QueryRowContext(ctx, `
SELECT doc_id, type, number, year, variant, url, text, collected_at, etag, last_modified, content_hash
FROM documents WHERE doc_id = ?`, docID)

	var (
		doc         norm.Document
		variant     string
		collectedAt string
		etag        sql.NullString
		lastMod     sql.NullString
	)
	err := row.Scan(&doc.DocID, &doc.Type, &doc.Number, &doc.Year, &variant,
		&doc.URL, &doc.Text, &collectedAt, &etag, &lastMod, &doc.ContentHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document %s: %w", docID, err)
	}
	doc.Variant = norm.Variant(variant)
	doc.ETag = etag.String
	doc.LastModified = lastMod.String
	if ts, err := time.Parse(time.RFC3339, collectedAt); err == nil {
		doc.CollectedAt = ts
	}
	return &doc, nil
}

// Upsert writes the document and refreshes its full-text row in one
// transaction.
func (i *Index) Upsert(ctx context.Context, doc norm.Document) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
INSERT INTO documents (doc_id, type, number, year, variant, url, text, collected_at, etag, last_modified, content_hash)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(doc_id) DO UPDATE SET
  url = excluded.url,
  text = excluded.text,
  collected_at = excluded.collected_at,
  etag = excluded.etag,
  last_modified = excluded.last_modified,
  content_hash = excluded.content_hash`,
		doc.DocID, doc.Type, doc.Number, doc.Year, string(doc.Variant), doc.URL,
		doc.Text, doc.CollectedAt.UTC().Format(time.RFC3339),
		nullIfEmpty(doc.ETag), nullIfEmpty(doc.LastModified), doc.ContentHash)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.DocID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE doc_id = ?`, doc.DocID); err != nil {
		return fmt.Errorf("clear fts row %s: %w", doc.DocID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents_fts (doc_id, text) VALUES (?, ?)`,
		doc.DocID, doc.Text); err != nil {
		return fmt.Errorf("write fts row %s: %w", doc.DocID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert %s: %w", doc.DocID, err)
	}
	return nil
}

// Search runs a full-text match and returns the matching documents without
// their body text, newest first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]norm.Document, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := i.db.QueryContext(ctx, `
SELECT d.doc_id, d.type, d.number, d.year, d.variant, d.url, d.collected_at, d.content_hash
FROM documents_fts f
JOIN documents d ON d.doc_id = f.doc_id
WHERE documents_fts MATCH ?
ORDER BY d.year DESC, d.number DESC
LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()

	var out []norm.Document
	for rows.Next() {
		var (
			doc         norm.Document
			variant     string
			collectedAt string
		)
		if err := rows.Scan(&doc.DocID, &doc.Type, &doc.Number, &doc.Year,
			&variant, &doc.URL, &collectedAt, &doc.ContentHash); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		doc.Variant = norm.Variant(variant)
		if ts, err := time.Parse(time.RFC3339, collectedAt); err == nil {
			doc.CollectedAt = ts
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
