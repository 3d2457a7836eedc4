package spider

import (
	"context"
	"testing"
	"time"
)

func TestThrottleBacksOffOnPushback(t *testing.T) {
	th := newThrottle(time.Second, 5*time.Second, 0)

	th.Observe(ErrRateLimited{Err: context.DeadlineExceeded})
	if got := th.Delay(); got != 2*time.Second {
		t.Fatalf("delay after one pushback = %v, want 2s", got)
	}

	for i := 0; i < 5; i++ {
		th.Observe(ErrServer{Status: 503})
	}
	if got := th.Delay(); got != 5*time.Second {
		t.Fatalf("delay = %v, want cap 5s", got)
	}
}

func TestThrottleDecaysTowardFloor(t *testing.T) {
	th := newThrottle(time.Second, 8*time.Second, 0)
	th.Observe(ErrRateLimited{})
	th.Observe(ErrRateLimited{})
	if got := th.Delay(); got != 4*time.Second {
		t.Fatalf("delay = %v, want 4s", got)
	}

	for i := 0; i < 20; i++ {
		th.Observe(nil)
	}
	if got := th.Delay(); got != time.Second {
		t.Fatalf("delay = %v, want floor 1s", got)
	}
}

func TestThrottleIgnoresNonRetryableErrors(t *testing.T) {
	th := newThrottle(time.Second, 8*time.Second, 0)
	th.Observe(ErrNotFound{})
	if got := th.Delay(); got > time.Second {
		t.Fatalf("delay = %v, 404 must not slow the crawl", got)
	}
}

func TestThrottleWaitHonorsCancellation(t *testing.T) {
	th := newThrottle(time.Hour, time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := th.Wait(ctx); err == nil {
		t.Fatalf("wait should fail on cancelled context")
	}
}
