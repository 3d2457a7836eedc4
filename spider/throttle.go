package spider

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// throttle paces requests to one retailer. The delay grows
// multiplicatively when the retailer pushes back (429, 5xx) and decays
// toward the configured floor while requests succeed, staying within
// [start, max] at all times. A small random jitter avoids a perfectly
// regular request cadence.
type throttle struct {
	mu     sync.Mutex
	delay  time.Duration
	start  time.Duration
	max    time.Duration
	jitter time.Duration
}

func newThrottle(start, max, jitter time.Duration) *throttle {
	if start <= 0 {
		start = 500 * time.Millisecond
	}
	if max < start {
		max = start
	}
	return &throttle{delay: start, start: start, max: max, jitter: jitter}
}

// Wait blocks for the current delay or until the context is cancelled.
func (t *throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	d := t.delay
	t.mu.Unlock()

	if t.jitter > 0 {
		d += time.Duration(rand.Int63n(int64(t.jitter)))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observe adjusts pacing from the outcome of the last request.
func (t *throttle) Observe(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil && isRetryable(err) {
		t.delay *= 2
		if t.delay > t.max {
			t.delay = t.max
		}
		return
	}
	t.delay = t.delay * 3 / 4
	if t.delay < t.start {
		t.delay = t.start
	}
}

// Delay reports the current pacing delay.
func (t *throttle) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}
