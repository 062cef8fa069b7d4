package ratelimiter

import (
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perSecond, burst int) (*RateLimiter, *time.Time) {
	t.Helper()

	now := time.Unix(1_700_000_000, 0)
	rl := newRateLimiter(Options{MaxRatePerSecond: perSecond, MaxBurst: burst, CacheTTL: time.Minute}, func() time.Time { return now })

	return rl, &now
}

func TestRateLimiterBurstThenDeny(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("k") {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if rl.Allow("k") {
		t.Fatalf("request beyond burst allowed")
	}
	if got := rl.Remaining("k"); got != 0 {
		t.Fatalf("remaining=%d, want 0", got)
	}
	if !rl.Allow("other") {
		t.Fatalf("separate key shares the bucket")
	}
	if got := rl.Remaining("other"); got != 2 {
		t.Fatalf("remaining(other)=%d, want 2", got)
	}
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	rl, now := newTestLimiter(t, 2, 2)

	rl.Allow("k")
	rl.Allow("k")
	if rl.Allow("k") {
		t.Fatalf("empty bucket allowed a request")
	}

	*now = now.Add(600 * time.Millisecond)
	if !rl.Allow("k") {
		t.Fatalf("no token after 600ms at 2/s")
	}
	if rl.Allow("k") {
		t.Fatalf("more than one token after 600ms at 2/s")
	}
}

func TestRateLimiterKeepsFractionalProgress(t *testing.T) {
	rl, now := newTestLimiter(t, 1, 1)

	rl.Allow("k")
	for i := 0; i < 3; i++ {
		*now = now.Add(300 * time.Millisecond)
		if rl.Allow("k") {
			t.Fatalf("allowed after %dms", (i+1)*300)
		}
	}

	*now = now.Add(200 * time.Millisecond)
	if !rl.Allow("k") {
		t.Fatalf("denied after a full second of refill")
	}
}

func TestRateLimiterSweepsIdleSources(t *testing.T) {
	rl, now := newTestLimiter(t, 1, 1)

	rl.Allow("idle")
	*now = now.Add(2 * time.Minute)
	rl.Allow("active")

	if removed := rl.sources.sweep(*now); removed != 1 {
		t.Fatalf("removed=%d, want 1", removed)
	}
	if n := rl.sources.len(); n != 1 {
		t.Fatalf("sources=%d, want 1", n)
	}
	if rl.Allow("active") {
		t.Fatalf("sweep reset an active source")
	}
	if !rl.Allow("idle") {
		t.Fatalf("swept source did not start with a full bucket")
	}
}

func TestRateLimiterCloseStopsSweeper(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, CacheTTL: time.Millisecond})

	done := make(chan struct{})
	go func() {
		_ = rl.Close()
		_ = rl.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Close did not return")
	}
}

func TestGetSourceKeyUsesClientIP(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 1)

	r := httptest.NewRequest("GET", "/api/room", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	if got := rl.GetSourceKey(r); got != "203.0.113.7" {
		t.Fatalf("key=%q, want 203.0.113.7", got)
	}

	rl.sourceHeaderKey = "X-RateLimit-Key"
	r.Header.Set("X-RateLimit-Key", "tenant-1")
	if got := rl.GetSourceKey(r); got != "tenant-1" {
		t.Fatalf("key=%q, want tenant-1", got)
	}
}
