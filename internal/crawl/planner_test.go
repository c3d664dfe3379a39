package crawl

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	eventsmemory "github.com/brlegis/normcrawler/internal/events/memory"
	"github.com/brlegis/normcrawler/internal/norm"
)

func testPlanConfig() PlanConfig {
	return PlanConfig{
		Types:                []string{"LEI"},
		Years:                []int{2020},
		Variants:             []norm.Variant{norm.VariantOriginal},
		RecheckWindow:        0,
		ProbeRefreshInterval: time.Hour,
		Lookback:             50,
		Concurrency:          1,
	}
}

func docFor(n int) norm.Document {
	return norm.Document{
		DocID: fmt.Sprintf("LEI_%d_2020_orig", n), Type: "LEI", Number: n, Year: 2020,
		Variant: norm.VariantOriginal, ContentHash: fmt.Sprintf("h-%d", n),
	}
}

func newResultFor(n int) FetchResult {
	d := docFor(n)
	return FetchResult{Doc: &d}
}

func TestPlannerBackfillsFreshPair(t *testing.T) {
	t.Parallel()

	budget := NewBudget(100)
	source := &fakeSource{budget: budget, results: map[string]FetchResult{
		"LEI_1_2020_orig": newResultFor(1),
		"LEI_2_2020_orig": newResultFor(2),
		"LEI_3_2020_orig": newResultFor(3),
	}}
	index := newFakeIndex()
	st := newFakeState()
	pub := eventsmemory.New()
	clk := fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	planner := NewPlanner(testPlanConfig(), budget, st, index, source,
		&fakeDiscovery{last: 3}, pub, clk, zap.NewNop())

	counters, err := planner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if counters.Created != 3 || counters.Updated != 0 {
		t.Fatalf("expected 3 created, got %+v", counters)
	}
	if counters.Probes != 1 {
		t.Fatalf("expected one probe, got %d", counters.Probes)
	}
	if len(index.docs) != 3 {
		t.Fatalf("expected 3 indexed documents, got %d", len(index.docs))
	}

	final := st.Get("LEI", 2020)
	if final.LastNumKnown != 3 || final.LastProbeAt == nil || final.LastCheckedAt == nil {
		t.Fatalf("state not updated: %+v", final)
	}
	if st.saves != 1 {
		t.Fatalf("expected state saved once, saves=%d", st.saves)
	}
	if len(pub.Messages()) != 3 {
		t.Fatalf("expected 3 change events, got %d", len(pub.Messages()))
	}
	event, ok := pub.Messages()[0].Payload.(ChangeEvent)
	if !ok || event.Change != "created" {
		t.Fatalf("unexpected event payload: %+v", pub.Messages()[0])
	}
}

func TestPlannerBudgetExhaustionStopsCleanly(t *testing.T) {
	t.Parallel()

	budget := NewBudget(5)
	results := make(map[string]FetchResult)
	for n := 1; n <= 100; n++ {
		results[fmt.Sprintf("LEI_%d_2020_orig", n)] = newResultFor(n)
	}
	source := &fakeSource{budget: budget, results: results}
	index := newFakeIndex()
	st := newFakeState()
	clk := fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	discovery := &fakeDiscovery{last: 100}
	planner := NewPlanner(testPlanConfig(), budget, st, index, source, discovery, nil, clk, zap.NewNop())

	counters, err := planner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if counters.Created == 0 || counters.Created >= 100 {
		t.Fatalf("expected partial progress, got %+v", counters)
	}
	if counters.RequestsUsed < 5 {
		t.Fatalf("expected budget consumed, got %+v", counters)
	}
	// Discovery survives exhaustion so the next run can pick up where this
	// one stopped.
	if st.Get("LEI", 2020).LastNumKnown != 100 {
		t.Fatalf("expected frontier persisted: %+v", st.Get("LEI", 2020))
	}
	if st.saves != 1 {
		t.Fatalf("expected state saved despite exhaustion, saves=%d", st.saves)
	}
}

func TestPlannerRebuildsFromIndexAfterStateLoss(t *testing.T) {
	t.Parallel()

	budget := NewBudget(100)
	// Every number is already indexed; the conditional fetcher reports all
	// of them unchanged.
	index := newFakeIndex()
	for n := 1; n <= 3; n++ {
		index.docs[fmt.Sprintf("LEI_%d_2020_orig", n)] = docFor(n)
	}
	source := &fakeSource{budget: budget}
	st := newFakeState()
	clk := fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	planner := NewPlanner(testPlanConfig(), budget, st, index, source,
		&fakeDiscovery{last: 3}, nil, clk, zap.NewNop())

	counters, err := planner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if counters.Created != 0 || counters.Updated != 0 {
		t.Fatalf("expected no writes for an already-complete index, got %+v", counters)
	}
	if index.upserts != 0 {
		t.Fatalf("expected no duplicate upserts, got %d", index.upserts)
	}
	if st.Get("LEI", 2020).LastNumKnown != 3 {
		t.Fatalf("expected state rebuilt from discovery: %+v", st.Get("LEI", 2020))
	}
}

func TestPlannerNeverLowersLastNumKnown(t *testing.T) {
	t.Parallel()

	budget := NewBudget(100)
	st := newFakeState()
	st.Put("LEI", 2020, TypeYearState{LastNumKnown: 10})
	source := &fakeSource{budget: budget}
	clk := fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	planner := NewPlanner(testPlanConfig(), budget, st, newFakeIndex(), source,
		&fakeDiscovery{last: 7}, nil, clk, zap.NewNop())

	if _, err := planner.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := st.Get("LEI", 2020).LastNumKnown; got != 10 {
		t.Fatalf("frontier must never decrease, got %d", got)
	}
}

func TestPlannerSkipsFreshProbe(t *testing.T) {
	t.Parallel()

	budget := NewBudget(100)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Minute)
	st := newFakeState()
	st.Put("LEI", 2020, TypeYearState{LastNumKnown: 3, LastProbeAt: &recent})

	index := newFakeIndex()
	for n := 1; n <= 3; n++ {
		index.docs[fmt.Sprintf("LEI_%d_2020_orig", n)] = docFor(n)
	}
	discovery := &fakeDiscovery{last: 3}
	planner := NewPlanner(testPlanConfig(), budget, st, index,
		&fakeSource{budget: budget}, discovery, nil, fakeClock{t: now}, zap.NewNop())

	if _, err := planner.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if discovery.calls != 0 {
		t.Fatalf("fresh probe must not be repeated, calls=%d", discovery.calls)
	}
}

func TestPlannerRecheckWindowRevalidatesTail(t *testing.T) {
	t.Parallel()

	budget := NewBudget(100)
	cfg := testPlanConfig()
	cfg.RecheckWindow = 2

	// 1..5 indexed; number 5 changed upstream.
	index := newFakeIndex()
	for n := 1; n <= 5; n++ {
		index.docs[fmt.Sprintf("LEI_%d_2020_orig", n)] = docFor(n)
	}
	changed := docFor(5)
	changed.ContentHash = "h-5-rev2"
	source := &fakeSource{budget: budget, results: map[string]FetchResult{
		"LEI_5_2020_orig": {Doc: &changed, HadPrior: true},
	}}
	st := newFakeState()
	clk := fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	planner := NewPlanner(cfg, budget, st, index, source,
		&fakeDiscovery{last: 5}, nil, clk, zap.NewNop())

	counters, err := planner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if counters.Updated != 1 {
		t.Fatalf("expected one updated document, got %+v", counters)
	}
	if counters.Skipped != 1 {
		t.Fatalf("expected number 4 rechecked and skipped, got %+v", counters)
	}
	if index.docs["LEI_5_2020_orig"].ContentHash != "h-5-rev2" {
		t.Fatal("expected the changed revision indexed")
	}
	// Numbers outside the window stay untouched.
	for _, id := range []string{"LEI_1_2020_orig", "LEI_2_2020_orig", "LEI_3_2020_orig"} {
		for _, called := range source.calls {
			if called == id {
				t.Fatalf("number outside the recheck window was fetched: %s", id)
			}
		}
	}
}

func TestPlannerFatalErrorStillSavesState(t *testing.T) {
	t.Parallel()

	budget := NewBudget(100)
	source := &fakeSource{budget: budget, err: fmt.Errorf("index unavailable")}
	st := newFakeState()
	clk := fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	planner := NewPlanner(testPlanConfig(), budget, st, newFakeIndex(), source,
		&fakeDiscovery{last: 3}, nil, clk, zap.NewNop())

	if _, err := planner.Run(context.Background()); err == nil {
		t.Fatal("expected the source error surfaced")
	}
	if st.saves != 1 {
		t.Fatalf("state must be saved even on failure, saves=%d", st.saves)
	}
}

func TestPlannerConcurrentPairs(t *testing.T) {
	t.Parallel()

	budget := NewBudget(1000)
	cfg := testPlanConfig()
	cfg.Types = []string{"LEI", "DEC"}
	cfg.Years = []int{2019, 2020}
	cfg.Concurrency = 4

	results := make(map[string]FetchResult)
	for _, tc := range cfg.Types {
		for _, y := range cfg.Years {
			for n := 1; n <= 2; n++ {
				d := norm.Document{
					DocID: fmt.Sprintf("%s_%d_%d_orig", tc, n, y), Type: tc, Number: n,
					Year: y, Variant: norm.VariantOriginal, ContentHash: "h",
				}
				results[d.DocID] = FetchResult{Doc: &d}
			}
		}
	}
	source := &fakeSource{budget: budget, results: results}
	index := newFakeIndex()
	st := newFakeState()
	clk := fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	planner := NewPlanner(cfg, budget, st, index, source,
		&fakeDiscovery{last: 2}, nil, clk, zap.NewNop())

	counters, err := planner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if counters.Created != 8 {
		t.Fatalf("expected 8 documents across 4 pairs, got %+v", counters)
	}
	if len(index.docs) != 8 {
		t.Fatalf("expected 8 indexed documents, got %d", len(index.docs))
	}
}
