// Package pool implements the Container Pool: per-language queues of
// pre-warmed, idle containers that absorb container-creation latency.
// Ownership is modeled explicitly: the pool owns every entry in its map;
// a caller that Acquires a container owns it exclusively until Release.
package pool

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/security"
)

// Entry is a pooled, idle container.
type Entry struct {
	Container  engine.Handle
	Language   langtype.Language
	CreatedAt  time.Time
	LastUsedAt time.Time
	UseCount   int
	Healthy    bool
}

// Config tunes pool behavior.
type Config struct {
	MinIdlePerLanguage int
	MaxActive          int
	WarmupLanguages    []langtype.Language
	LivenessInterval   time.Duration
	DefaultMemoryMB    int64
	DefaultCPUQuota    float64
	HardeningLevel     security.Level
}

func defaultConfig() Config {
	return Config{
		MinIdlePerLanguage: 2,
		MaxActive:          20,
		LivenessInterval:   30 * time.Second,
		DefaultMemoryMB:    512,
		DefaultCPUQuota:    1.0,
		HardeningLevel:     security.LevelStandard,
	}
}

// Stats summarizes pool occupancy.
type Stats struct {
	Total        int
	PerLanguage  map[langtype.Language]int
	Healthy      int
	Unhealthy    int
}

// Pool owns the idle-container map and the default-image lookup used to
// create fresh containers on a pool miss.
type Pool struct {
	mu       sync.Mutex
	entries  map[engine.Handle]*Entry
	cfg      Config
	eng      *engine.Engine
	images   map[langtype.Language]string
	logger   *log.Logger
	security *security.LevelStore

	stopProbe chan struct{}
	probeWG   sync.WaitGroup
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithConfig overrides the default pool configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pool) { p.cfg = cfg }
}

// WithLogger overrides the pool's logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithDefaultImages sets the per-language default image used on a pool
// miss or during warm-up.
func WithDefaultImages(images map[langtype.Language]string) Option {
	return func(p *Pool) { p.images = images }
}

// WithLevelStore wires the Security Gate's hardening-level store so new
// containers pick up the currently configured descriptor.
func WithLevelStore(s *security.LevelStore) Option {
	return func(p *Pool) { p.security = s }
}

// New builds a Pool bound to eng. Call Start to begin the liveness
// probe and optional warm-up.
func New(eng *engine.Engine, opts ...Option) *Pool {
	p := &Pool{
		entries:   make(map[engine.Handle]*Entry),
		cfg:       defaultConfig(),
		eng:       eng,
		images:    map[langtype.Language]string{},
		logger:    log.Default(),
		stopProbe: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start warms up the configured languages and begins the liveness probe
// loop. It does not block.
func (p *Pool) Start(ctx context.Context) {
	for _, lang := range p.cfg.WarmupLanguages {
		for i := 0; i < p.cfg.MinIdlePerLanguage; i++ {
			if err := p.createAndInsert(ctx, lang); err != nil {
				p.logger.Printf("pool: warm-up create failed for %s: %v", lang, err)
			}
		}
	}

	p.probeWG.Add(1)
	go p.probeLoop(ctx)
}

// Acquire hands out a container for language. If customImage is
// non-empty the pool is bypassed entirely and a fresh container is
// always created.
func (p *Pool) Acquire(ctx context.Context, lang langtype.Language, customImage string) (engine.Handle, error) {
	if customImage != "" {
		return p.createContainer(ctx, lang, customImage)
	}

	p.mu.Lock()
	var match engine.Handle
	found := false
	for h, e := range p.entries {
		if e.Language == lang && e.Healthy {
			match = h
			found = true
			break
		}
	}
	if found {
		delete(p.entries, match)
	}
	occupancy := p.occupancyLocked(lang)
	p.mu.Unlock()

	if found {
		if occupancy < p.cfg.MinIdlePerLanguage {
			go p.backfill(lang)
		}
		return match, nil
	}

	h, err := p.createContainer(ctx, lang, p.images[lang])
	if err != nil {
		return "", err
	}
	go p.backfill(lang)
	return h, nil
}

// Release returns container to the pool after running the cleaner. If
// the pool is already at capacity, the LRU entry is evicted first. A
// cleaner failure retires the container instead of re-pooling it.
func (p *Pool) Release(ctx context.Context, h engine.Handle, lang langtype.Language) error {
	p.mu.Lock()
	if len(p.entries) >= p.cfg.MaxActive {
		lruHandle, ok := p.lruLocked()
		if ok {
			delete(p.entries, lruHandle)
			p.mu.Unlock()
			p.destroy(ctx, lruHandle)
			p.mu.Lock()
		}
	}
	p.mu.Unlock()

	leftover, err := RunCleaner(ctx, p.eng, h)
	if err != nil {
		p.logger.Printf("pool: cleaner failed for %s, retiring container: %v", h, err)
		return p.destroy(ctx, h)
	}
	if leftover > 0 {
		p.logger.Printf("pool: cleaner left %d entries in workspace for %s, incomplete clean", leftover, h)
	}

	p.mu.Lock()
	p.entries[h] = &Entry{
		Container:  h,
		Language:   lang,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
		UseCount:   0,
		Healthy:    true,
	}
	p.mu.Unlock()
	return nil
}

// Stats reports current occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{PerLanguage: map[langtype.Language]int{}}
	for _, e := range p.entries {
		s.Total++
		s.PerLanguage[e.Language]++
		if e.Healthy {
			s.Healthy++
		} else {
			s.Unhealthy++
		}
	}
	return s
}

// Drain stops the liveness probe and destroys every pooled container
// concurrently, ignoring individual failures.
func (p *Pool) Drain(ctx context.Context) {
	close(p.stopProbe)
	p.probeWG.Wait()

	p.mu.Lock()
	handles := make([]engine.Handle, 0, len(p.entries))
	for h := range p.entries {
		handles = append(handles, h)
	}
	p.entries = make(map[engine.Handle]*Entry)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h engine.Handle) {
			defer wg.Done()
			p.destroy(ctx, h)
		}(h)
	}
	wg.Wait()
}

// occupancyLocked counts pooled entries for lang. Callers must already
// hold p.mu.
func (p *Pool) occupancyLocked(lang langtype.Language) int {
	n := 0
	for _, e := range p.entries {
		if e.Language == lang {
			n++
		}
	}
	return n
}

func (p *Pool) lruLocked() (engine.Handle, bool) {
	var lruHandle engine.Handle
	var lruTime time.Time
	found := false
	for h, e := range p.entries {
		if !found || e.LastUsedAt.Before(lruTime) {
			lruHandle = h
			lruTime = e.LastUsedAt
			found = true
		}
	}
	return lruHandle, found
}

func (p *Pool) backfill(lang langtype.Language) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.createAndInsert(ctx, lang); err != nil {
		p.logger.Printf("pool: async backfill failed for %s: %v", lang, err)
	}
}

func (p *Pool) createAndInsert(ctx context.Context, lang langtype.Language) error {
	h, err := p.createContainer(ctx, lang, p.images[lang])
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.entries[h] = &Entry{
		Container:  h,
		Language:   lang,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
		Healthy:    true,
	}
	p.mu.Unlock()
	return nil
}

func (p *Pool) createContainer(ctx context.Context, lang langtype.Language, image string) (engine.Handle, error) {
	if image == "" {
		image = p.images[lang]
	}

	var hardening security.Descriptor
	if p.security != nil {
		hardening = p.security.Descriptor(p.cfg.HardeningLevel, lang)
	} else {
		hardening = security.BuildDescriptor(p.cfg.HardeningLevel, lang, nil)
	}

	h, err := p.eng.CreateContainer(ctx, engine.CreateSpec{
		Image:     image,
		Language:  lang,
		Hardening: hardening,
	})
	if err != nil {
		return "", fmt.Errorf("pool: create container for %s: %w", lang, err)
	}
	if err := p.eng.Start(ctx, h); err != nil {
		return "", fmt.Errorf("pool: start container for %s: %w", lang, err)
	}
	return h, nil
}

func (p *Pool) destroy(ctx context.Context, h engine.Handle) error {
	_ = p.eng.Stop(ctx, h)
	return p.eng.Remove(ctx, h, true)
}

func (p *Pool) probeLoop(ctx context.Context) {
	defer p.probeWG.Done()

	ticker := time.NewTicker(p.cfg.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopProbe:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probeOnce(ctx)
		}
	}
}

func (p *Pool) probeOnce(ctx context.Context) {
	p.mu.Lock()
	handles := make([]engine.Handle, 0, len(p.entries))
	for h := range p.entries {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		result, err := p.eng.Exec(probeCtx, h, engine.ExecOptions{
			Argv:    []string{"true"},
			Timeout: 3 * time.Second,
		})
		cancel()

		healthy := err == nil && result != nil && result.ExitCode == 0 && !result.TimedOut
		if healthy {
			continue
		}

		p.mu.Lock()
		delete(p.entries, h)
		p.mu.Unlock()
		p.destroy(ctx, h)
	}
}

