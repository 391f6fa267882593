package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewFixedWindowLimiter(client, "test:ratelimit", limit, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	fixed := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }
	return limiter, mr
}

func TestFixedWindowLimiter(t *testing.T) {
	limiter, _ := newLimiter(t, 2)
	ctx := context.Background()

	for i, wantRemaining := range []int{1, 0} {
		d, err := limiter.Allow(ctx, "ip-1")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !d.Allowed || d.Remaining != wantRemaining {
			t.Fatalf("request %d: got %+v", i, d)
		}
	}
	d, err := limiter.Allow(ctx, "ip-1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("third request should be blocked with retry hint, got %+v", d)
	}

	other, err := limiter.Allow(ctx, "ip-2")
	if err != nil || !other.Allowed {
		t.Fatalf("other key should have its own budget: %+v %v", other, err)
	}
}

func TestFixedWindowLimiterNextWindow(t *testing.T) {
	limiter, _ := newLimiter(t, 1)
	ctx := context.Background()
	if d, _ := limiter.Allow(ctx, "ip-1"); !d.Allowed {
		t.Fatalf("first request should pass")
	}
	if d, _ := limiter.Allow(ctx, "ip-1"); d.Allowed {
		t.Fatalf("second request should be blocked")
	}
	next := limiter.now().Add(time.Minute)
	limiter.now = func() time.Time { return next }
	if d, _ := limiter.Allow(ctx, "ip-1"); !d.Allowed {
		t.Fatalf("request in next window should pass")
	}
}

func TestFixedWindowLimiterFailClosed(t *testing.T) {
	limiter, mr := newLimiter(t, 1)
	mr.Close()
	d, err := limiter.Allow(context.Background(), "ip-1")
	if err == nil || d.Allowed {
		t.Fatalf("limiter should fail closed on redis errors, got %+v %v", d, err)
	}
}

func TestNewFixedWindowLimiterValidates(t *testing.T) {
	if _, err := NewFixedWindowLimiter(nil, "", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewFixedWindowLimiter(client, "", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}
