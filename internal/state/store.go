// Package state persists the per-(type, year) crawl state between runs.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brlegis/normcrawler/internal/crawl"
)

// fileDoc is the on-disk shape: a years map keyed by year, each mapping type
// code to its state. Unknown keys in the file are ignored on load, never
// rejected, so newer writers stay readable.
type fileDoc struct {
	Meta  metaDoc                                  `json:"meta"`
	Years map[string]map[string]crawl.TypeYearState `json:"years"`
}

type metaDoc struct {
	CreatedAt time.Time `json:"created_at"`
}

// Store implements crawl.StateStore on a single JSON file. Writes go to a
// temp file first and are renamed into place, so a crash mid-write never
// corrupts the file the next run reads.
type Store struct {
	mu     sync.Mutex
	path   string
	doc    fileDoc
	logger *zap.Logger
}

// Load reads the state file at path. A missing or unreadable file yields an
// empty store with a warning; it is never fatal, because the backward walk
// against the index re-establishes coverage.
func Load(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger,
		doc: fileDoc{
			Meta:  metaDoc{CreatedAt: time.Now().UTC()},
			Years: make(map[string]map[string]crawl.TypeYearState),
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Unreadable state file, starting empty",
				zap.String("path", path), zap.Error(err))
		}
		return s
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("Corrupt state file, starting empty",
			zap.String("path", path), zap.Error(err))
		return s
	}
	if doc.Years == nil {
		doc.Years = make(map[string]map[string]crawl.TypeYearState)
	}
	if doc.Meta.CreatedAt.IsZero() {
		doc.Meta.CreatedAt = time.Now().UTC()
	}
	s.doc = doc
	return s
}

// Get returns the state for one (type, year) pair, zero-valued when the pair
// has never been seen.
func (s *Store) Get(typeCode string, year int) crawl.TypeYearState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Years[strconv.Itoa(year)][typeCode]
}

// Put stores the state for one (type, year) pair. LastNumKnown is clamped so
// it never decreases: a document disappearing from the source must not erase
// prior discovery.
func (s *Store) Put(typeCode string, year int, st crawl.TypeYearState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strconv.Itoa(year)
	types := s.doc.Years[key]
	if types == nil {
		types = make(map[string]crawl.TypeYearState)
		s.doc.Years[key] = types
	}
	if prev, ok := types[typeCode]; ok && st.LastNumKnown < prev.LastNumKnown {
		st.LastNumKnown = prev.LastNumKnown
	}
	types[typeCode] = st
}

// Save writes the state atomically: marshal, write a temp file alongside the
// target, fsync, rename.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Pairs returns every (type, year) pair present in the store, for the state
// inspection command.
func (s *Store) Pairs() map[int]map[string]crawl.TypeYearState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int]map[string]crawl.TypeYearState, len(s.doc.Years))
	for yearKey, types := range s.doc.Years {
		year, err := strconv.Atoi(yearKey)
		if err != nil {
			continue
		}
		cp := make(map[string]crawl.TypeYearState, len(types))
		for t, st := range types {
			cp[t] = st
		}
		out[year] = cp
	}
	return out
}
