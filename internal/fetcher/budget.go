package fetcher

import (
	"sync/atomic"
)

// Budget is the hard cap on outbound network calls for one estimation
// request. The counter is shared by every adapter and every query variant
// within the request; a fresh Budget is created per estimation, so
// concurrent or repeated estimations cannot interfere.
type Budget struct {
	ceiling int64
	used    atomic.Int64
}

// NewBudget creates a Budget with the given ceiling.
func NewBudget(ceiling int) *Budget {
	return &Budget{ceiling: int64(ceiling)}
}

// TryAcquire reserves one network call. The check-then-increment is a
// single atomic operation so concurrent callers cannot overrun the
// ceiling. Denied acquisitions stay denied for the rest of the request.
func (b *Budget) TryAcquire() bool {
	for {
		used := b.used.Load()
		if used >= b.ceiling {
			return false
		}
		if b.used.CompareAndSwap(used, used+1) {
			return true
		}
	}
}

// Used returns how many calls have been granted.
func (b *Budget) Used() int { return int(b.used.Load()) }

// Exhausted reports whether the ceiling has been reached.
func (b *Budget) Exhausted() bool { return b.used.Load() >= b.ceiling }
