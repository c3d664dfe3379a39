// Package memory contains an in-memory index writer for development and
// tests.
package memory

import (
	"context"
	"sync"

	"github.com/brlegis/normcrawler/internal/norm"
)

// Index implements crawl.Index with a map keyed by doc ID.
type Index struct {
	mu   sync.RWMutex
	docs map[string]norm.Document
}

// New returns an empty in-memory index.
func New() *Index {
	return &Index{docs: make(map[string]norm.Document)}
}

// Get returns the stored document, or (nil, nil) when unknown.
func (i *Index) Get(_ context.Context, docID string) (*norm.Document, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	doc, ok := i.docs[docID]
	if !ok {
		return nil, nil
	}
	cp := doc
	return &cp, nil
}

// Upsert stores the document, replacing any prior version under its ID.
func (i *Index) Upsert(_ context.Context, doc norm.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.docs[doc.DocID] = doc
	return nil
}

// Len returns the number of stored documents.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// Docs returns a copy of all stored documents, for test assertions.
func (i *Index) Docs() map[string]norm.Document {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]norm.Document, len(i.docs))
	for k, v := range i.docs {
		out[k] = v
	}
	return out
}
