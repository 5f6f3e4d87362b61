package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "client-a")
		if err != nil {
			t.Fatalf("allow failed: %v", err)
		}

		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, err := l.Allow(ctx, "client-a")
	if err != nil {
		t.Fatalf("allow failed: %v", err)
	}

	if ok {
		t.Error("fourth request in the window should be denied")
	}

	// Other keys are unaffected.
	ok, _ = l.Allow(ctx, "client-b")
	if !ok {
		t.Error("different key should have its own window")
	}
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	base := time.Now()
	l.now = func() time.Time { return base }

	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatal("first request should pass")
	}

	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatal("second request in window should be denied")
	}

	l.now = func() time.Time { return base.Add(time.Minute + time.Second) }

	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Error("request after window rollover should pass")
	}
}
