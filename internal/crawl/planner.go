package crawl

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/brlegis/normcrawler/internal/norm"
	"github.com/brlegis/normcrawler/internal/telemetry"
)

// DocumentSource is the conditional fetch step the planner drives; satisfied
// by *DocumentFetcher.
type DocumentSource interface {
	FetchDocument(ctx context.Context, t norm.Target, v norm.Variant) (FetchResult, error)
}

// PlanConfig holds the run-level parameters of one planner invocation.
type PlanConfig struct {
	// Types and Years select the (type, year) pairs to process.
	Types []string
	Years []int
	// Variants lists the rendering variants fetched per number.
	Variants []norm.Variant
	// RecheckWindow is how many trailing numbers below the last known one are
	// revalidated even when already indexed.
	RecheckWindow int
	// ProbeRefreshInterval gates how often an already-probed pair is
	// re-probed. Pairs with no known number are always probed.
	ProbeRefreshInterval time.Duration
	// Lookback bounds the backward walk that reconciles the state file
	// against the index.
	Lookback int
	// Concurrency is the number of (type, year) pairs processed in parallel.
	Concurrency int
	// EventTopic names the publisher topic for change events.
	EventTopic string
}

// Counters summarize the work one run performed. A run always reports them,
// including runs cut short by budget exhaustion or cancellation.
type Counters struct {
	Created      int
	Updated      int
	Skipped      int
	Probes       int
	RequestsUsed int
}

// ChangeEvent is published for every document the run created or updated.
type ChangeEvent struct {
	DocID       string       `json:"doc_id"`
	Type        string       `json:"type"`
	Number      int          `json:"number"`
	Year        int          `json:"year"`
	Variant     norm.Variant `json:"variant"`
	URL         string       `json:"url"`
	ContentHash string       `json:"content_hash"`
	Change      string       `json:"change"`
	CollectedAt time.Time    `json:"collected_at"`
}

// Planner orchestrates one incremental run: per (type, year) pair it
// refreshes the last known number, backfills newly appeared numbers, and
// revalidates the trailing recheck window, short-circuiting on budget
// exhaustion while persisting whatever progress was made.
type Planner struct {
	cfg       PlanConfig
	budget    *Budget
	state     StateStore
	index     Index
	fetcher   DocumentSource
	discovery Discovery
	publisher Publisher
	clock     Clock
	logger    *zap.Logger

	created atomic.Int64
	updated atomic.Int64
	skipped atomic.Int64
	probes  atomic.Int64
}

// NewPlanner wires a planner. publisher may be nil to disable change events.
func NewPlanner(
	cfg PlanConfig,
	budget *Budget,
	state StateStore,
	index Index,
	fetcher DocumentSource,
	discovery Discovery,
	publisher Publisher,
	clock Clock,
	logger *zap.Logger,
) *Planner {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if len(cfg.Variants) == 0 {
		cfg.Variants = norm.AllVariants
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = "norm-changes"
	}
	return &Planner{
		cfg:       cfg,
		budget:    budget,
		state:     state,
		index:     index,
		fetcher:   fetcher,
		discovery: discovery,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

type pair struct {
	typeCode string
	year     int
}

// Run executes the plan. It returns the counters of completed work together
// with the first fatal error encountered, if any; budget exhaustion and
// context cancellation are normal terminations, not errors. State is saved
// before returning in every case.
func (p *Planner) Run(ctx context.Context) (Counters, error) {
	pairs := make([]pair, 0, len(p.cfg.Years)*len(p.cfg.Types))
	for _, year := range p.cfg.Years {
		for _, typeCode := range p.cfg.Types {
			pairs = append(pairs, pair{typeCode: typeCode, year: year})
		}
	}

	work := make(chan pair)
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pr := range work {
				if err := p.runPair(ctx, pr.typeCode, pr.year); err != nil {
					errOnce.Do(func() { firstErr = err })
					p.logger.Error("Pair failed",
						zap.String("type", pr.typeCode),
						zap.Int("year", pr.year),
						zap.Error(err),
					)
				}
			}
		}()
	}

feed:
	for _, pr := range pairs {
		if !p.budget.OK() || ctx.Err() != nil {
			break feed
		}
		select {
		case work <- pr:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	if !p.budget.OK() {
		telemetry.BudgetExhaustedTotal.Inc()
		p.logger.Info("Budget exhausted", zap.Int("used", p.budget.Used()))
	}

	counters := p.snapshotCounters()
	if err := p.state.Save(); err != nil {
		p.logger.Error("Failed to save crawl state", zap.Error(err))
		if firstErr == nil {
			firstErr = fmt.Errorf("save crawl state: %w", err)
		}
	}
	return counters, firstErr
}

// runPair processes one (type, year) pair end to end. The pair's state
// record is owned by this call; no other goroutine touches it.
func (p *Planner) runPair(ctx context.Context, typeCode string, year int) error {
	st := p.state.Get(typeCode, year)
	now := p.clock.Now()

	if p.shouldProbe(st, now) && p.budget.OK() && ctx.Err() == nil {
		last := p.discovery.LastNumber(ctx, typeCode, year, st.LastNumKnown)
		p.probes.Add(1)
		if last > st.LastNumKnown {
			st.LastNumKnown = last
		}
		st.LastProbeAt = &now
		// Persist discovery straight away so an exhausted run keeps it.
		p.state.Put(typeCode, year, st)
	}

	if st.LastNumKnown <= 0 {
		st.LastCheckedAt = &now
		p.state.Put(typeCode, year, st)
		return nil
	}

	startNew, err := p.firstUnindexed(ctx, typeCode, year, st.LastNumKnown)
	if err != nil {
		return err
	}

	// New-range backfill, then the trailing recheck window below it.
	if err := p.fetchRange(ctx, typeCode, year, startNew, st.LastNumKnown); err != nil {
		return err
	}
	if p.cfg.RecheckWindow > 0 {
		lo := max(1, st.LastNumKnown-p.cfg.RecheckWindow+1)
		if err := p.fetchRange(ctx, typeCode, year, lo, startNew-1); err != nil {
			return err
		}
	}

	done := p.clock.Now()
	st.LastCheckedAt = &done
	p.state.Put(typeCode, year, st)
	return nil
}

func (p *Planner) shouldProbe(st TypeYearState, now time.Time) bool {
	if st.LastNumKnown == 0 || st.LastProbeAt == nil {
		return true
	}
	return now.Sub(*st.LastProbeAt) >= p.cfg.ProbeRefreshInterval
}

// firstUnindexed walks backward from lastKnown through the index to find the
// smallest number with no indexed document, bounded by the configured
// lookback. The index, not the state file, is authoritative here: the two
// stores are not transactionally coupled and this walk is what reconciles
// them.
func (p *Planner) firstUnindexed(ctx context.Context, typeCode string, year, lastKnown int) (int, error) {
	startNew := lastKnown + 1
	n := lastKnown
	for steps := 0; n >= 1 && steps < p.cfg.Lookback; steps++ {
		target := norm.Target{Type: typeCode, Number: n, Year: year}
		prev, err := p.index.Get(ctx, norm.DocID(target, p.cfg.Variants[0]))
		if err != nil {
			return 0, fmt.Errorf("lookback at %s: %w", target, err)
		}
		if prev != nil {
			break
		}
		startNew = n
		n--
	}
	return startNew, nil
}

// fetchRange runs the conditional fetch for every number in [lo, hi] and
// every configured variant, upserting results and publishing change events.
// It stops quietly when the budget runs out or the context is done.
func (p *Planner) fetchRange(ctx context.Context, typeCode string, year, lo, hi int) error {
	for n := lo; n <= hi; n++ {
		if !p.budget.OK() || ctx.Err() != nil {
			return nil
		}
		target := norm.Target{Type: typeCode, Number: n, Year: year}
		for _, v := range p.cfg.Variants {
			if !p.budget.OK() || ctx.Err() != nil {
				return nil
			}
			res, err := p.fetcher.FetchDocument(ctx, target, v)
			if err != nil {
				return err
			}
			if res.Doc == nil {
				p.skipped.Add(1)
				telemetry.DocumentsSkippedTotal.Inc()
				continue
			}
			if err := p.index.Upsert(ctx, *res.Doc); err != nil {
				return fmt.Errorf("upsert %s: %w", res.Doc.DocID, err)
			}
			change := "created"
			if res.HadPrior {
				change = "updated"
				p.updated.Add(1)
				telemetry.DocumentsUpdatedTotal.Inc()
			} else {
				p.created.Add(1)
				telemetry.DocumentsCreatedTotal.Inc()
			}
			p.publishChange(ctx, *res.Doc, change)
		}
	}
	return nil
}

func (p *Planner) publishChange(ctx context.Context, doc norm.Document, change string) {
	if p.publisher == nil {
		return
	}
	event := ChangeEvent{
		DocID:       doc.DocID,
		Type:        doc.Type,
		Number:      doc.Number,
		Year:        doc.Year,
		Variant:     doc.Variant,
		URL:         doc.URL,
		ContentHash: doc.ContentHash,
		Change:      change,
		CollectedAt: doc.CollectedAt,
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.EventTopic, event); err != nil {
		p.logger.Warn("Failed to publish change event",
			zap.String("doc_id", doc.DocID),
			zap.Error(err),
		)
	}
}

// Counters returns a live snapshot of the run counters.
func (p *Planner) Counters() Counters {
	return p.snapshotCounters()
}

func (p *Planner) snapshotCounters() Counters {
	return Counters{
		Created:      int(p.created.Load()),
		Updated:      int(p.updated.Load()),
		Skipped:      int(p.skipped.Load()),
		Probes:       int(p.probes.Load()),
		RequestsUsed: p.budget.Used(),
	}
}
