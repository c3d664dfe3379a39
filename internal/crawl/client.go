package crawl

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brlegis/normcrawler/internal/telemetry"
)

// errBudgetExhausted stops a retry loop once the run budget is gone.
var errBudgetExhausted = errors.New("request budget exhausted")

// ClientConfig tunes the budgeted fetch client.
type ClientConfig struct {
	// MaxRetries bounds re-attempts after a transport error. Every attempt,
	// retried or not, spends one budget unit.
	MaxRetries int
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration
	// MaxBackoff caps retry delays.
	MaxBackoff time.Duration
	// RequestsPerSecond paces outgoing fetches; <= 0 disables pacing.
	RequestsPerSecond float64
}

// Client is the single gateway to the network: it paces requests, charges
// the run budget per attempt, and retries transport failures with bounded
// exponential backoff. HTTP-level outcomes (any status code) are returned to
// the caller unretried.
type Client struct {
	fetcher Fetcher
	budget  *Budget
	pacer   *rate.Limiter
	cfg     ClientConfig
	logger  *zap.Logger
}

// NewClient wires a raw Fetcher to the run budget.
func NewClient(fetcher Fetcher, budget *Budget, cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}
	var pacer *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		pacer = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		fetcher: fetcher,
		budget:  budget,
		pacer:   pacer,
		cfg:     cfg,
		logger:  logger,
	}
}

// Get fetches url with the given headers. The second return value is false
// when no usable response was obtained: budget exhausted before the first
// attempt, context canceled, or all attempts failed at the transport level.
// Failed attempts still consume budget.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (FetchResponse, bool) {
	if !c.budget.OK() {
		return FetchResponse{}, false
	}

	operation := func() (FetchResponse, error) {
		if !c.budget.OK() {
			return FetchResponse{}, backoff.Permanent(errBudgetExhausted)
		}
		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return FetchResponse{}, backoff.Permanent(err)
			}
		}
		c.budget.Spend(1)
		telemetry.RequestsTotal.Inc()
		resp, err := c.fetcher.Fetch(ctx, FetchRequest{URL: url, Header: header})
		if err != nil {
			telemetry.RequestErrorsTotal.Inc()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return FetchResponse{}, backoff.Permanent(err)
			}
			return FetchResponse{}, err
		}
		return resp, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff

	resp, err := backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx))
	if err != nil {
		c.logger.Debug("Fetch failed after retries", zap.String("url", url), zap.Error(err))
		return FetchResponse{}, false
	}
	return resp, true
}
