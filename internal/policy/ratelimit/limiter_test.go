package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	l := New(Config{
		DefaultRPS:   10,
		DefaultBurst: 1,
	})

	ctx := context.Background()

	// First call should be immediate.
	start := time.Now()
	if err := l.Wait(ctx, "https://example.com/foo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Logf("warning: first wait took %v", time.Since(start))
	}

	// 10 RPS = 1 token every 100ms; the second call waits for the refill.
	l2 := New(Config{
		DefaultRPS:   10,
		DefaultBurst: 1,
	})
	if err := l2.Wait(ctx, "https://test.com"); err != nil {
		t.Fatal(err)
	}
	start = time.Now()
	if err := l2.Wait(ctx, "https://test.com"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_DifferentHosts(t *testing.T) {
	l := New(Config{
		DefaultRPS:   1,
		DefaultBurst: 1,
	})

	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}

	// Host B is not blocked by host A's bucket.
	start := time.Now()
	if err := l.Wait(ctx, "https://b.com/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("host B blocked unexpectedly")
	}
}

func TestLimiter_UnlimitedWhenRPSZero(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(ctx, "https://a.com/1"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("unlimited limiter introduced delay")
	}
}
