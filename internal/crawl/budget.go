package crawl

import "sync/atomic"

// Budget is the per-run request budget. It is the single piece of state
// shared by every component that issues network calls, so all updates go
// through atomics. A unit is spent per fetch attempt, success or failure,
// because the attempt itself consumed the budgeted resource.
type Budget struct {
	max  int64
	used atomic.Int64
}

// NewBudget creates a budget allowing max network calls.
func NewBudget(max int) *Budget {
	return &Budget{max: int64(max)}
}

// OK reports whether at least one more call may be issued.
func (b *Budget) OK() bool {
	return b.used.Load() < b.max
}

// Spend records n consumed calls. It never fails and never blocks.
func (b *Budget) Spend(n int) {
	b.used.Add(int64(n))
}

// Used returns the number of calls consumed so far.
func (b *Budget) Used() int {
	return int(b.used.Load())
}

// Max returns the configured ceiling.
func (b *Budget) Max() int {
	return int(b.max)
}
