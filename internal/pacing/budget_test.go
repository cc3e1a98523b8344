package pacing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock drives a Budget deterministically: Acquire's sleeps advance
// the clock instead of waiting on real time.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newManualBudget(callsPerMinute int) (*Budget, *manualClock) {
	clock := &manualClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBudget(callsPerMinute)
	b.now = clock.now
	b.sleep = func(ctx context.Context, d time.Duration) error {
		clock.advance(d)
		return nil
	}
	return b, clock
}

func TestBudget_CallsUnderLimitPassWithoutWaiting(t *testing.T) {
	b := NewBudget(10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Acquire(ctx))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond,
		"calls under the per-minute limit must not be artificially delayed")
}

func TestBudget_ExcessCallsWaitOutTheFullWindow(t *testing.T) {
	// 10 calls/minute, 15 submitted at once: 10 go through immediately and
	// the remaining 5 must wait until the first window closes, so no
	// one-minute span ever sees more than 10 admissions.
	b, clock := newManualBudget(10)
	start := clock.now()

	admitted := make([]time.Time, 0, 15)
	for i := 0; i < 15; i++ {
		require.NoError(t, b.Acquire(context.Background()))
		admitted = append(admitted, clock.now())
	}

	inFirstWindow := 0
	for _, at := range admitted {
		if at.Sub(start) < window {
			inFirstWindow++
		}
	}
	assert.Equal(t, 10, inFirstWindow,
		"exactly the budget may land inside the first minute")
	for _, at := range admitted[10:] {
		assert.GreaterOrEqual(t, at.Sub(start), window,
			"excess calls must be delayed past the first window")
	}
}

func TestBudget_WindowSlidesWithStaggeredCalls(t *testing.T) {
	b, clock := newManualBudget(2)

	require.True(t, b.TryAcquire())
	clock.advance(30 * time.Second)
	require.True(t, b.TryAcquire())

	// Both admissions are still inside the trailing minute.
	assert.False(t, b.TryAcquire())

	// 31s later the first admission has aged out, the second has not.
	clock.advance(31 * time.Second)
	assert.True(t, b.TryAcquire())
	assert.False(t, b.TryAcquire())
}

func TestBudget_SlotsFreeAfterWindowPasses(t *testing.T) {
	b, clock := newManualBudget(10)

	for i := 0; i < 10; i++ {
		require.True(t, b.TryAcquire())
	}
	require.False(t, b.TryAcquire())

	clock.advance(window + time.Second)
	assert.True(t, b.TryAcquire())
}

func TestBudget_TryAcquireRespectsThrottleWindow(t *testing.T) {
	b := NewBudget(600)
	require.True(t, b.TryAcquire())

	b.RecordThrottle(200 * time.Millisecond)
	assert.False(t, b.TryAcquire())

	time.Sleep(250 * time.Millisecond)
	assert.True(t, b.TryAcquire())
}

func TestBudget_AcquireHonorsContextDuringThrottle(t *testing.T) {
	b := NewBudget(600)
	b.RecordThrottle(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBudget_ThrottleWindowNeverShrinks(t *testing.T) {
	b := NewBudget(600)
	b.RecordThrottle(time.Minute)
	b.RecordThrottle(time.Millisecond)

	assert.False(t, b.TryAcquire(), "a shorter throttle must not override a longer one")
}

func TestBudget_ConcurrentAcquiresNeverOverAdmit(t *testing.T) {
	b := NewBudget(10)

	admitted := make(chan struct{}, 32)
	done := make(chan struct{})
	for i := 0; i < 15; i++ {
		go func() {
			if b.TryAcquire() {
				admitted <- struct{}{}
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 15; i++ {
		<-done
	}
	assert.LessOrEqual(t, len(admitted), 10,
		"concurrent callers must not both observe the same free slot")
}
