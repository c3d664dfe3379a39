// Package colly implements the raw fetch primitive on top of the Colly
// collector.
package colly

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/brlegis/normcrawler/internal/crawl"
)

// Config tunes the underlying collector and transport.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxConns       int
}

// Fetcher implements crawl.Fetcher using a cloned Colly collector per
// request. Conditional headers from the request are forwarded as-is; a 304
// or any other non-2xx status is surfaced as a normal response, not an
// error, so the change detector can classify it.
type Fetcher struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New constructs a configured Colly-based Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 20 * time.Second
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 8
	}

	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	base.AllowURLRevisit = true
	// Non-2xx bodies must reach OnResponse; 304 and 404 are meaningful here.
	base.ParseHTTPErrorResponse = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.MaxConns * 4,
		MaxIdleConnsPerHost:   cfg.MaxConns,
		MaxConnsPerHost:       cfg.MaxConns,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &Fetcher{
		baseCollector: base,
		logger:        logger,
	}
}

type fetchResult struct {
	resp crawl.FetchResponse
	err  error
}

// Fetch retrieves one URL. It returns an error only for transport-level
// failures; every HTTP status comes back as a FetchResponse.
func (f *Fetcher) Fetch(ctx context.Context, req crawl.FetchRequest) (crawl.FetchResponse, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range req.Header {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{resp: responseFrom(r)})
	})

	collector.OnError(func(r *colly.Response, err error) {
		// Colly routes non-2xx statuses here with the response attached;
		// they are valid outcomes for this engine (304 in particular).
		if r != nil && r.StatusCode != 0 {
			send(fetchResult{resp: responseFrom(r)})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	visitErr := collector.Visit(req.URL)
	collector.Wait()

	// A captured response wins over the Visit error: Colly reports any
	// status it dislikes as an error even when the handlers saw a usable
	// response.
	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return crawl.FetchResponse{}, err
		}
		return res.resp, res.err
	default:
		if visitErr != nil {
			return crawl.FetchResponse{}, visitErr
		}
		return crawl.FetchResponse{}, errors.New("colly fetch produced no result")
	}
}

func responseFrom(r *colly.Response) crawl.FetchResponse {
	header := http.Header{}
	if r.Headers != nil {
		for k, v := range *r.Headers {
			cp := make([]string, len(v))
			copy(cp, v)
			header[k] = cp
		}
	}
	return crawl.FetchResponse{
		StatusCode: r.StatusCode,
		Header:     header,
		Body:       append([]byte{}, r.Body...),
	}
}
