package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(limit int, window time.Duration) *Limiter {
	l := New(WithLimit(limit), WithWindow(window))
	l.Stop() // stop the background sweep; tests drive sweeps explicitly
	return l
}

func TestAllowWithinLimit(t *testing.T) {
	l := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _ := l.Allow("caller-a")
		if !allowed {
			t.Fatalf("request %d should be allowed within limit", i)
		}
	}
}

func TestAllowDeniesOverLimit(t *testing.T) {
	l := newTestLimiter(2, time.Minute)

	l.Allow("caller-a")
	l.Allow("caller-a")
	allowed, retryAfter := l.Allow("caller-a")

	if allowed {
		t.Fatal("third request should be denied")
	}
	if retryAfter <= 0 {
		t.Errorf("retryAfterMs should be positive, got %d", retryAfter)
	}
}

func TestAllowIsPerKey(t *testing.T) {
	l := newTestLimiter(1, time.Minute)

	l.Allow("caller-a")
	allowed, _ := l.Allow("caller-b")

	if !allowed {
		t.Error("a different key should have its own independent limit")
	}
}

func TestAllowResetsAfterWindowExpires(t *testing.T) {
	l := newTestLimiter(1, 10*time.Millisecond)

	l.Allow("caller-a")
	time.Sleep(20 * time.Millisecond)

	allowed, _ := l.Allow("caller-a")
	if !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestKeyCombinesCallerAndOperation(t *testing.T) {
	if got := Key("caller-a", "execute"); got != "caller-a:execute" {
		t.Errorf("Key() = %q, want caller-a:execute", got)
	}
	if got := Key("caller-a", ""); got != "caller-a" {
		t.Errorf("Key() with empty operation = %q, want caller-a", got)
	}
}

func TestSweepExpiredKeysRemovesEmptyEntries(t *testing.T) {
	l := newTestLimiter(1, 10*time.Millisecond)

	l.Allow("caller-a")
	time.Sleep(20 * time.Millisecond)
	l.sweepExpiredKeys()

	l.mu.Lock()
	_, exists := l.timestamps["caller-a"]
	l.mu.Unlock()

	if exists {
		t.Error("sweepExpiredKeys should have evicted the fully-expired key")
	}
}
