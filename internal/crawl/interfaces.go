package crawl

import (
	"context"
	"net/http"
	"time"

	"github.com/brlegis/normcrawler/internal/norm"
)

// Fetcher performs one raw HTTP fetch. Implementations must not retry on
// their own; retry and budget accounting happen in the Client.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// FetchRequest captures everything needed for a raw page fetch.
type FetchRequest struct {
	URL    string
	Header http.Header
}

// FetchResponse is the raw result of one fetch attempt.
type FetchResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Extractor turns a raw HTML body into normalized plain text. It returns the
// empty string when the page carries no substantive content.
type Extractor interface {
	Extract(body []byte) string
}

// Index is the downstream document store. Get returns (nil, nil) when the
// document is unknown. Both methods must be safe to call interleaved with
// fetches for other documents.
type Index interface {
	Get(ctx context.Context, docID string) (*norm.Document, error)
	Upsert(ctx context.Context, doc norm.Document) error
}

// StateStore holds the durable per-(type, year) crawl state.
type StateStore interface {
	Get(typeCode string, year int) TypeYearState
	Put(typeCode string, year int, st TypeYearState)
	Save() error
}

// TypeYearState records what discovery has established for one (type, year)
// pair. LastNumKnown is a lower bound on the highest existing number and must
// never decrease across runs.
type TypeYearState struct {
	LastNumKnown  int        `json:"last_num_known"`
	LastProbeAt   *time.Time `json:"last_probe_at"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
}

// Publisher pushes document change events downstream.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// SnapshotStore archives raw fetched bodies.
type SnapshotStore interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// Hasher computes content digests for change detection.
type Hasher interface {
	HashText(text string) string
}

// Clock returns the current time (swappable for tests).
type Clock interface {
	Now() time.Time
}

// Discovery finds the last existing number for a (type, year) pair. The
// floor is the highest number already confirmed in earlier runs; strategies
// may use it as a starting point but must never return less than zero work
// than it implies.
type Discovery interface {
	LastNumber(ctx context.Context, typeCode string, year, floor int) int
}

// ExistenceOracle answers whether a norm resolves to real content.
type ExistenceOracle interface {
	Exists(ctx context.Context, t norm.Target) bool
}
