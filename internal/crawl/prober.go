package crawl

import (
	"context"

	"go.uber.org/zap"

	"github.com/brlegis/normcrawler/internal/norm"
	"github.com/brlegis/normcrawler/internal/telemetry"
)

// DefaultProbeCeiling is the hard upper bound on candidate numbers. No year
// has ever come near it; it only exists to bound the geometric growth phase
// against a pathological source.
const DefaultProbeCeiling = 300000

// BinaryProber discovers the highest existing number for a (type, year) pair
// with geometric growth followed by binary search, using O(log n) existence
// probes. It assumes the corpus is contiguous: no number exists beyond the
// first gap.
type BinaryProber struct {
	oracle  ExistenceOracle
	budget  *Budget
	ceiling int
	logger  *zap.Logger
}

// NewBinaryProber builds the default discovery strategy.
func NewBinaryProber(oracle ExistenceOracle, budget *Budget, ceiling int, logger *zap.Logger) *BinaryProber {
	if ceiling <= 0 {
		ceiling = DefaultProbeCeiling
	}
	return &BinaryProber{
		oracle:  oracle,
		budget:  budget,
		ceiling: ceiling,
		logger:  logger,
	}
}

// LastNumber returns the highest number confirmed to exist, or 0 when number
// 1 does not exist. If the budget runs out mid-search it returns the best
// confirmed number so far rather than failing. The floor from previous runs
// is not trusted as a starting point here: re-probing from 1 keeps the
// strategy correct even if the source retracted pages, and monotonicity of
// the stored state is enforced by the planner, not the prober.
func (p *BinaryProber) LastNumber(ctx context.Context, typeCode string, year, _ int) int {
	telemetry.ProbesTotal.Inc()

	if !p.oracle.Exists(ctx, norm.Target{Type: typeCode, Number: 1, Year: year}) {
		return 0
	}

	lo, hi := 1, 2
	for hi <= p.ceiling && p.budget.OK() && ctx.Err() == nil &&
		p.oracle.Exists(ctx, norm.Target{Type: typeCode, Number: hi, Year: year}) {
		lo, hi = hi, hi*2
	}

	left, right := lo, min(hi, p.ceiling)
	for left+1 < right && p.budget.OK() && ctx.Err() == nil {
		mid := (left + right) / 2
		if p.oracle.Exists(ctx, norm.Target{Type: typeCode, Number: mid, Year: year}) {
			left = mid
		} else {
			right = mid
		}
	}

	p.logger.Debug("Probe finished",
		zap.String("type", typeCode),
		zap.Int("year", year),
		zap.Int("last_number", left),
	)
	return left
}

// GapScanProber is the gap-tolerant alternative discovery strategy: it walks
// forward from the known floor and stops only after gapLimit consecutive
// misses. It costs O(n) probes but survives corpora with holes below the
// highest number.
type GapScanProber struct {
	oracle   ExistenceOracle
	budget   *Budget
	ceiling  int
	gapLimit int
	logger   *zap.Logger
}

// NewGapScanProber builds the forward-scan strategy. gapLimit is the number
// of consecutive missing numbers treated as the end of the corpus.
func NewGapScanProber(oracle ExistenceOracle, budget *Budget, ceiling, gapLimit int, logger *zap.Logger) *GapScanProber {
	if ceiling <= 0 {
		ceiling = DefaultProbeCeiling
	}
	if gapLimit <= 0 {
		gapLimit = 5
	}
	return &GapScanProber{
		oracle:   oracle,
		budget:   budget,
		ceiling:  ceiling,
		gapLimit: gapLimit,
		logger:   logger,
	}
}

// LastNumber scans forward from floor+1 until gapLimit consecutive numbers
// are missing, returning the highest confirmed number (at least floor).
func (p *GapScanProber) LastNumber(ctx context.Context, typeCode string, year, floor int) int {
	telemetry.ProbesTotal.Inc()

	last := floor
	misses := 0
	for n := floor + 1; n <= p.ceiling && misses < p.gapLimit; n++ {
		if !p.budget.OK() || ctx.Err() != nil {
			break
		}
		if p.oracle.Exists(ctx, norm.Target{Type: typeCode, Number: n, Year: year}) {
			last = n
			misses = 0
		} else {
			misses++
		}
	}

	p.logger.Debug("Gap scan finished",
		zap.String("type", typeCode),
		zap.Int("year", year),
		zap.Int("last_number", last),
	)
	return last
}
