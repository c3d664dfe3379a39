package crawl

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/brlegis/normcrawler/internal/norm"
)

func TestBinaryProberFindsLastNumber(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{exists: func(tg norm.Target) bool { return tg.Number <= 3 }}
	prober := NewBinaryProber(oracle, NewBudget(100), 0, zap.NewNop())

	last := prober.LastNumber(context.Background(), "LEI", 2020, 0)
	if last != 3 {
		t.Fatalf("expected last number 3, got %d", last)
	}
	// 1, 2, 4 during growth plus 3 during bisection.
	if oracle.calls > 5 {
		t.Fatalf("expected at most 5 probes, got %d", oracle.calls)
	}
}

func TestBinaryProberEmptyYear(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{exists: func(norm.Target) bool { return false }}
	prober := NewBinaryProber(oracle, NewBudget(100), 0, zap.NewNop())

	if last := prober.LastNumber(context.Background(), "ADT", 1999, 0); last != 0 {
		t.Fatalf("expected 0 for empty year, got %d", last)
	}
	if oracle.calls != 1 {
		t.Fatalf("expected a single probe, got %d", oracle.calls)
	}
}

func TestBinaryProberLargeCorpus(t *testing.T) {
	t.Parallel()

	const want = 23712
	oracle := &fakeOracle{exists: func(tg norm.Target) bool { return tg.Number <= want }}
	prober := NewBinaryProber(oracle, NewBudget(10000), 0, zap.NewNop())

	if last := prober.LastNumber(context.Background(), "LEI", 2023, 0); last != want {
		t.Fatalf("expected %d, got %d", want, last)
	}
	// Geometric growth plus bisection stays logarithmic.
	if oracle.calls > 40 {
		t.Fatalf("expected O(log n) probes, got %d", oracle.calls)
	}
}

func TestBinaryProberBudgetExhaustionReturnsBestSoFar(t *testing.T) {
	t.Parallel()

	budget := NewBudget(4)
	oracle := &fakeOracle{budget: budget, exists: func(tg norm.Target) bool { return tg.Number <= 1000 }}
	prober := NewBinaryProber(oracle, budget, 0, zap.NewNop())

	last := prober.LastNumber(context.Background(), "LEI", 2020, 0)
	// With 4 probes the growth phase confirms 1, 2, 4, 8 before stopping.
	if last < 1 || last > 1000 {
		t.Fatalf("expected a confirmed number, got %d", last)
	}
	if budget.OK() {
		t.Fatal("expected budget exhausted")
	}
}

func TestBinaryProberRespectsCeiling(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{exists: func(norm.Target) bool { return true }}
	prober := NewBinaryProber(oracle, NewBudget(10000), 64, zap.NewNop())

	if last := prober.LastNumber(context.Background(), "LEI", 2020, 0); last > 64 {
		t.Fatalf("expected result capped at ceiling, got %d", last)
	}
}

func TestGapScanProberToleratesHoles(t *testing.T) {
	t.Parallel()

	present := map[int]bool{11: true, 12: true, 14: true}
	oracle := &fakeOracle{exists: func(tg norm.Target) bool { return present[tg.Number] }}
	prober := NewGapScanProber(oracle, NewBudget(100), 0, 2, zap.NewNop())

	last := prober.LastNumber(context.Background(), "DEC", 2021, 10)
	if last != 14 {
		t.Fatalf("expected scan to step over the hole at 13 and find 14, got %d", last)
	}
}

func TestGapScanProberKeepsFloorWhenNothingNew(t *testing.T) {
	t.Parallel()

	oracle := &fakeOracle{exists: func(norm.Target) bool { return false }}
	prober := NewGapScanProber(oracle, NewBudget(100), 0, 3, zap.NewNop())

	if last := prober.LastNumber(context.Background(), "DEC", 2021, 7); last != 7 {
		t.Fatalf("expected floor 7 preserved, got %d", last)
	}
	if oracle.calls != 3 {
		t.Fatalf("expected exactly gap-limit probes, got %d", oracle.calls)
	}
}
