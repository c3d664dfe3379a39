package crawl

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/brlegis/normcrawler/internal/norm"
)

// MinContentChars is the minimum extracted-text length for a page to count
// as a real norm. The portal renders a boilerplate shell even for numbers
// that do not exist, so chrome-only pages must not count as existence.
const MinContentChars = 50

// Oracle answers whether a norm number actually exists on the portal by
// fetching the original-variant page without cache validation and extracting
// its text. Each call costs one budget unit.
type Oracle struct {
	client    *Client
	extractor Extractor
	baseURL   string
	minChars  int
	logger    *zap.Logger
}

// NewOracle builds an existence oracle on top of the budgeted client.
func NewOracle(client *Client, extractor Extractor, baseURL string, logger *zap.Logger) *Oracle {
	return &Oracle{
		client:    client,
		extractor: extractor,
		baseURL:   baseURL,
		minChars:  MinContentChars,
		logger:    logger,
	}
}

// Exists reports whether the target resolves to substantive content.
// Transport failures and budget exhaustion read as "does not exist"; the
// caller is responsible for not treating a budget-starved probe as proof of
// absence.
func (o *Oracle) Exists(ctx context.Context, t norm.Target) bool {
	url := norm.PageURL(o.baseURL, t, norm.VariantOriginal)
	resp, ok := o.client.Get(ctx, url, http.Header{})
	if !ok || resp.StatusCode != http.StatusOK || len(resp.Body) == 0 {
		return false
	}
	text := o.extractor.Extract(resp.Body)
	exists := len(text) > o.minChars
	o.logger.Debug("Existence probe",
		zap.String("target", t.String()),
		zap.Bool("exists", exists),
	)
	return exists
}
