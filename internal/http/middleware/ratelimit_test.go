package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be within burst", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("expected burst exhausted")
	}
	// Other IPs get their own bucket.
	if !rl.Allow("5.6.7.8") {
		t.Fatal("separate ip should not share the bucket")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimit(0.001, 1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-Ip", "9.9.9.9")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(); code != http.StatusNoContent {
		t.Fatalf("first request should pass, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	rl.Allow("1.2.3.4")
	rl.Allow("5.6.7.8")
	if got := rl.size(); got != 2 {
		t.Fatalf("expected 2 buckets, got %d", got)
	}

	// Neither client has been seen for longer than the idle TTL.
	rl.evictIdle(time.Now().Add(rl.idleTTL + time.Minute))
	if got := rl.size(); got != 0 {
		t.Fatalf("expected buckets evicted, got %d", got)
	}

	// A returning client gets a fresh bucket with the full burst.
	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be within a fresh burst", i+1)
		}
	}
}
