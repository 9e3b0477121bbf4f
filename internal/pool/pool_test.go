package pool

import (
	"context"
	"testing"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

func newTestPool() *Pool {
	return New(nil, WithConfig(Config{
		MinIdlePerLanguage: 1,
		MaxActive:          3,
		LivenessInterval:   time.Hour,
	}))
}

func TestLRULockedReturnsOldestEntry(t *testing.T) {
	p := newTestPool()
	now := time.Now()

	p.entries[engine.Handle("old")] = &Entry{LastUsedAt: now.Add(-time.Hour)}
	p.entries[engine.Handle("new")] = &Entry{LastUsedAt: now}

	h, ok := p.lruLocked()
	if !ok {
		t.Fatal("expected an LRU entry, got none")
	}
	if h != engine.Handle("old") {
		t.Errorf("lruLocked() = %s, want old", h)
	}
}

func TestLRULockedEmptyPool(t *testing.T) {
	p := newTestPool()
	if _, ok := p.lruLocked(); ok {
		t.Error("expected no LRU entry for an empty pool")
	}
}

func TestStatsCountsPerLanguageAndHealth(t *testing.T) {
	p := newTestPool()
	p.entries[engine.Handle("a")] = &Entry{Language: langtype.Python, Healthy: true}
	p.entries[engine.Handle("b")] = &Entry{Language: langtype.Python, Healthy: false}
	p.entries[engine.Handle("c")] = &Entry{Language: langtype.Go, Healthy: true}

	stats := p.Stats()

	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.PerLanguage[langtype.Python] != 2 {
		t.Errorf("PerLanguage[python] = %d, want 2", stats.PerLanguage[langtype.Python])
	}
	if stats.Healthy != 2 || stats.Unhealthy != 1 {
		t.Errorf("Healthy/Unhealthy = %d/%d, want 2/1", stats.Healthy, stats.Unhealthy)
	}
}

func TestOccupancyLockedCountsOnlyMatchingLanguage(t *testing.T) {
	p := newTestPool()
	p.entries[engine.Handle("a")] = &Entry{Language: langtype.Python}
	p.entries[engine.Handle("b")] = &Entry{Language: langtype.Go}

	if got := p.occupancyLocked(langtype.Python); got != 1 {
		t.Errorf("occupancyLocked(python) = %d, want 1", got)
	}
}

func TestAcquireNeverHandsOutSameContainerTwice(t *testing.T) {
	// MinIdlePerLanguage is 0 so neither Acquire call below falls under
	// the backfill threshold and reaches the nil test engine.
	p := New(nil, WithConfig(Config{MinIdlePerLanguage: 0, MaxActive: 3, LivenessInterval: time.Hour}))
	p.entries[engine.Handle("a")] = &Entry{Language: langtype.Python, Healthy: true}
	p.entries[engine.Handle("b")] = &Entry{Language: langtype.Python, Healthy: true}

	first, err := p.Acquire(context.Background(), langtype.Python, "")
	if err != nil {
		t.Fatalf("Acquire() first call = %v", err)
	}

	p.mu.Lock()
	_, stillPooled := p.entries[first]
	p.mu.Unlock()
	if stillPooled {
		t.Error("an acquired entry must not remain visible in the pool")
	}

	second, err := p.Acquire(context.Background(), langtype.Python, "")
	if err != nil {
		t.Fatalf("Acquire() second call = %v", err)
	}
	if first == second {
		t.Error("Acquire() returned the same container twice")
	}
}
