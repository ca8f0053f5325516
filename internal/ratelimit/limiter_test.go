package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(requests int, window time.Duration) (*Limiter, *time.Time) {
	l := New(Config{Requests: requests, Window: window, SweepInterval: time.Hour})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowsBurstThenRejects(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)
	defer l.Close()

	for i := 0; i < 3; i++ {
		if !l.Allow("p1") {
			t.Fatalf("request %d should be admitted", i)
		}
	}
	ok, retry := l.AllowWithRetry("p1")
	if ok {
		t.Fatalf("fourth request should be rejected")
	}
	if retry <= 0 {
		t.Fatalf("expected a positive retry hint, got %v", retry)
	}
}

func TestIdentifiersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	defer l.Close()

	if !l.Allow("p1") {
		t.Fatalf("first p1 request should pass")
	}
	if l.Allow("p1") {
		t.Fatalf("second p1 request should fail")
	}
	if !l.Allow("p2") {
		t.Fatalf("p2 must not be affected by p1's bucket")
	}
}

func TestRefillOverTime(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)
	defer l.Close()

	l.Allow("p1")
	l.Allow("p1")
	if l.Allow("p1") {
		t.Fatalf("bucket should be empty")
	}

	// Half a window refills one token at 2 req/min.
	*now = now.Add(30 * time.Second)
	if !l.Allow("p1") {
		t.Fatalf("expected one token after refill")
	}
	if l.Allow("p1") {
		t.Fatalf("only one token should have refilled")
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	l, now := newTestLimiter(5, time.Minute)
	defer l.Close()

	l.Allow("p1")
	l.Allow("p2")

	*now = now.Add(3 * time.Minute)
	l.sweep()

	l.mu.Lock()
	remaining := len(l.buckets)
	l.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected idle buckets swept, %d left", remaining)
	}
}
