package crawl

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"go.uber.org/zap"

	"github.com/brlegis/normcrawler/internal/norm"
)

// FetchResult reports the outcome of one conditional document fetch. Doc is
// nil when nothing needs writing: not-modified response, fetch failure,
// boilerplate-only page, or unchanged content hash. HadPrior distinguishes a
// first-time document from an update of an already indexed one.
type FetchResult struct {
	Doc      *norm.Document
	HadPrior bool
}

// DocumentFetcher fetches one (target, variant) page with cache validation
// derived from the prior index record and decides whether the content is
// new, changed, or unchanged. Each call costs one budget unit through the
// underlying client.
type DocumentFetcher struct {
	client    *Client
	extractor Extractor
	index     Index
	hasher    Hasher
	clock     Clock
	snapshots SnapshotStore
	baseURL   string
	minChars  int
	logger    *zap.Logger
}

// NewDocumentFetcher wires the conditional fetcher. snapshots may be nil to
// disable raw-body archival.
func NewDocumentFetcher(
	client *Client,
	extractor Extractor,
	index Index,
	hasher Hasher,
	clock Clock,
	snapshots SnapshotStore,
	baseURL string,
	logger *zap.Logger,
) *DocumentFetcher {
	return &DocumentFetcher{
		client:    client,
		extractor: extractor,
		index:     index,
		hasher:    hasher,
		clock:     clock,
		snapshots: snapshots,
		baseURL:   baseURL,
		minChars:  MinContentChars,
		logger:    logger,
	}
}

// FetchDocument runs the conditional fetch pipeline for one target and
// variant. It returns an error only for index failures or a corrupted prior
// record; every network or content shortfall is reported as a nil Doc.
func (f *DocumentFetcher) FetchDocument(ctx context.Context, t norm.Target, v norm.Variant) (FetchResult, error) {
	docID := norm.DocID(t, v)

	prev, err := f.index.Get(ctx, docID)
	if err != nil {
		return FetchResult{}, fmt.Errorf("read prior record %s: %w", docID, err)
	}
	if prev != nil && !prev.Matches(t, v) {
		// A prior record under this ID that describes a different norm means
		// the store is corrupt; overwriting it would destroy unrelated data.
		return FetchResult{}, fmt.Errorf("doc id collision: %s stored as %s %d/%d %s",
			docID, prev.Type, prev.Number, prev.Year, prev.Variant)
	}
	result := FetchResult{HadPrior: prev != nil}

	header := http.Header{}
	if prev != nil {
		if prev.ETag != "" {
			header.Set("If-None-Match", prev.ETag)
		}
		if prev.LastModified != "" {
			header.Set("If-Modified-Since", prev.LastModified)
		}
	}

	url := norm.PageURL(f.baseURL, t, v)
	resp, ok := f.client.Get(ctx, url, header)
	if !ok {
		return result, nil
	}
	if resp.StatusCode == http.StatusNotModified {
		f.logger.Debug("Not modified", zap.String("doc_id", docID))
		return result, nil
	}
	if resp.StatusCode != http.StatusOK || len(resp.Body) == 0 {
		return result, nil
	}

	text := f.extractor.Extract(resp.Body)
	if len(text) <= f.minChars {
		return result, nil
	}

	hash := f.hasher.HashText(text)
	if prev != nil && prev.ContentHash == hash {
		return result, nil
	}

	if f.snapshots != nil {
		if err := f.snapshots.Save(ctx, snapshotObjectName(t, docID), resp.Body); err != nil {
			// Archival is best effort; the index write must not depend on it.
			f.logger.Warn("Snapshot save failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}

	result.Doc = &norm.Document{
		DocID:        docID,
		Type:         t.Type,
		Number:       t.Number,
		Year:         t.Year,
		Variant:      v,
		URL:          url,
		Text:         text,
		CollectedAt:  f.clock.Now(),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		ContentHash:  hash,
	}
	return result, nil
}

func snapshotObjectName(t norm.Target, docID string) string {
	return path.Join("pages", fmt.Sprintf("%d", t.Year), t.Type, docID+".html")
}
