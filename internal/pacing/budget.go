// Package pacing provides admission control for embedding calls so bulk
// ingestion stays inside free-tier provider quotas.
package pacing

import (
	"context"
	"sync"
	"time"
)

// DefaultCallsPerMinute keeps the embedding path under the Gemini free-tier
// request ceiling.
const DefaultCallsPerMinute = 60

// window is the span the per-minute ceiling is enforced over.
const window = time.Minute

// Budget is a process-wide sliding-window limiter over embedding calls. A
// call is admitted only when fewer than the ceiling of calls were admitted
// in the trailing window, so the provider never observes more than the
// ceiling inside any one-minute span. A throttle response from the provider
// installs an additional backoff window that both Acquire and TryAcquire
// honor.
//
// Budget is shared by all concurrent ingestions. The admission check and the
// timestamp record happen under one lock, so two ingestions can never both
// claim the same slot.
type Budget struct {
	mu      sync.Mutex
	limit   int
	admits  []time.Time
	retryAt time.Time

	// Clock seams for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBudget creates a budget admitting at most callsPerMinute calls in any
// trailing one-minute window.
func NewBudget(callsPerMinute int) *Budget {
	if callsPerMinute <= 0 {
		callsPerMinute = DefaultCallsPerMinute
	}
	return &Budget{
		limit: callsPerMinute,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Acquire blocks until the budget admits one call, or ctx is done.
func (b *Budget) Acquire(ctx context.Context) error {
	for {
		wait, ok := b.admit()
		if ok {
			return nil
		}
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire consumes one call slot if available without blocking.
func (b *Budget) TryAcquire() bool {
	_, ok := b.admit()
	return ok
}

// admit records one call if the trailing window has room. When it does not,
// it reports how long the caller must wait before the next admission can
// possibly succeed.
func (b *Budget) admit() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.prune(now)

	if now.Before(b.retryAt) {
		return b.retryAt.Sub(now), false
	}
	if len(b.admits) >= b.limit {
		return b.admits[0].Add(window).Sub(now), false
	}
	b.admits = append(b.admits, now)
	return 0, true
}

// prune drops admissions that have aged out of the trailing window. An
// admission at time T occupies [T, T+window).
func (b *Budget) prune(now time.Time) {
	i := 0
	for i < len(b.admits) && !b.admits[i].Add(window).After(now) {
		i++
	}
	if i > 0 {
		b.admits = append(b.admits[:0], b.admits[i:]...)
	}
}

// RecordThrottle installs a backoff window after a provider throttle
// response (HTTP 429 or a quota error). Zero or negative durations fall back
// to a conservative default.
func (b *Budget) RecordThrottle(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = 60 * time.Second
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	until := b.now().Add(retryAfter)
	if until.After(b.retryAt) {
		b.retryAt = until
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
