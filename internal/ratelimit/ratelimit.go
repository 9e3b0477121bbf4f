// Package ratelimit implements a sliding-window rate limiter keyed per
// caller and, optionally, per operation within that caller.
package ratelimit

import (
	"sync"
	"time"
)

// Config tunes the limiter.
type Config struct {
	Limit      int
	Window     time.Duration
	SweepEvery time.Duration
}

func defaultConfig() Config {
	return Config{
		Limit:      60,
		Window:     time.Minute,
		SweepEvery: 5 * time.Minute,
	}
}

// Limiter tracks request timestamps per key within a sliding window.
type Limiter struct {
	mu         sync.Mutex
	timestamps map[string][]time.Time
	cfg        Config

	stopSweep chan struct{}
	sweepWG   sync.WaitGroup
}

// New builds a Limiter and starts its periodic sweep.
func New(opts ...func(*Config)) *Limiter {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Limiter{
		timestamps: map[string][]time.Time{},
		cfg:        cfg,
		stopSweep:  make(chan struct{}),
	}
	l.sweepWG.Add(1)
	go l.sweepLoop()
	return l
}

// WithLimit overrides the per-window request limit.
func WithLimit(n int) func(*Config) {
	return func(c *Config) { c.Limit = n }
}

// WithWindow overrides the sliding window duration.
func WithWindow(d time.Duration) func(*Config) {
	return func(c *Config) { c.Window = d }
}

// Key builds a composite caller/operation key. Operation may be empty
// if the caller only wants a per-caller limit.
func Key(caller, operation string) string {
	if operation == "" {
		return caller
	}
	return caller + ":" + operation
}

// Allow checks whether a request under key is within the limit. On
// denial, retryAfterMs is the time until the oldest timestamp in the
// window expires.
func (l *Limiter) Allow(key string) (allowed bool, retryAfterMs int64) {
	now := time.Now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := dropExpired(l.timestamps[key], cutoff)

	if len(kept) >= l.cfg.Limit {
		l.timestamps[key] = kept
		oldest := kept[0]
		retryAfter := oldest.Add(l.cfg.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter.Milliseconds()
	}

	kept = append(kept, now)
	l.timestamps[key] = kept
	return true, 0
}

func dropExpired(timestamps []time.Time, cutoff time.Time) []time.Time {
	kept := timestamps[:0:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

// Stop halts the periodic sweep.
func (l *Limiter) Stop() {
	close(l.stopSweep)
	l.sweepWG.Wait()
}

func (l *Limiter) sweepLoop() {
	defer l.sweepWG.Done()

	ticker := time.NewTicker(l.cfg.SweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopSweep:
			return
		case <-ticker.C:
			l.sweepExpiredKeys()
		}
	}
}

func (l *Limiter) sweepExpiredKeys() {
	cutoff := time.Now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, timestamps := range l.timestamps {
		kept := dropExpired(timestamps, cutoff)
		if len(kept) == 0 {
			delete(l.timestamps, key)
		} else {
			l.timestamps[key] = kept
		}
	}
}
