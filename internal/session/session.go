// Package session implements the Session Store: named, long-lived
// containers with an optional TTL, owned by id and reachable also by a
// caller-chosen name.
package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/security"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// Config describes the resources a new session's container is created
// with.
type Config struct {
	Language    langtype.Language
	CustomImage string
	MemoryMB    int64
	CPUQuota    float64
	Env         map[string]string
	GPU         bool
	TTLSeconds  int64 // 0 means no expiry
}

// Session is a named, long-lived container.
type Session struct {
	ID         string
	Name       string
	Container  engine.Handle
	Language   langtype.Language
	Status     Status
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time // zero means no expiry
}

// Store owns the id->session and name->id maps and runs a janitor that
// destroys expired sessions.
type Store struct {
	mu       sync.Mutex
	byID     map[string]*Session
	byName   map[string]string
	eng      *engine.Engine
	security *security.LevelStore
	level    security.Level
	logger   *log.Logger
	audit    func(event string, s *Session, err error)

	janitorInterval time.Duration
	stopJanitor     chan struct{}
	janitorWG       sync.WaitGroup
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithJanitorInterval overrides the default janitor sweep interval.
func WithJanitorInterval(d time.Duration) Option {
	return func(s *Store) { s.janitorInterval = d }
}

// WithLogger overrides the store's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithLevelStore wires the Security Gate's hardening-level store.
func WithLevelStore(ls *security.LevelStore) Option {
	return func(s *Store) { s.security = ls }
}

// WithHardeningLevel sets the hardening level applied to session
// containers.
func WithHardeningLevel(level security.Level) Option {
	return func(s *Store) { s.level = level }
}

// WithAuditHook registers a callback invoked for every janitor-driven
// destroy of an expired session, with the destroy error (nil on success),
// so the caller can route them into the Audit Log.
func WithAuditHook(fn func(event string, s *Session, err error)) Option {
	return func(s *Store) { s.audit = fn }
}

// New builds a Store bound to eng and starts its janitor.
func New(eng *engine.Engine, opts ...Option) *Store {
	s := &Store{
		byID:            map[string]*Session{},
		byName:          map[string]string{},
		eng:             eng,
		level:           security.LevelStandard,
		logger:          log.Default(),
		janitorInterval: time.Minute,
		stopJanitor:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.janitorWG.Add(1)
	go s.janitorLoop()
	return s
}

// Create provisions a new named session. Fails with AlreadyExistsError
// if name is already registered.
func (s *Store) Create(ctx context.Context, name string, cfg Config) (*Session, error) {
	s.mu.Lock()
	if _, exists := s.byName[name]; exists {
		s.mu.Unlock()
		return nil, &sandboxerr.AlreadyExistsError{Kind: "session", ID: name}
	}
	s.mu.Unlock()

	var hardening security.Descriptor
	if s.security != nil {
		hardening = s.security.Descriptor(s.level, cfg.Language)
	} else {
		hardening = security.BuildDescriptor(s.level, cfg.Language, nil)
	}
	if cfg.MemoryMB > 0 {
		hardening.MemoryMB = int(cfg.MemoryMB)
	}
	if cfg.CPUQuota > 0 {
		hardening.CPUQuota = cfg.CPUQuota
	}

	image := cfg.CustomImage
	if image == "" {
		image = defaultImageFor(cfg.Language)
	}

	h, err := s.eng.CreateContainer(ctx, engine.CreateSpec{
		Image:     image,
		Language:  cfg.Language,
		Env:       cfg.Env,
		GPU:       cfg.GPU,
		Hardening: hardening,
	})
	if err != nil {
		return nil, fmt.Errorf("session: create container: %w", err)
	}
	if err := s.eng.Start(ctx, h); err != nil {
		return nil, fmt.Errorf("session: start container: %w", err)
	}

	now := time.Now()
	sess := &Session{
		ID:         uuid.NewString(),
		Name:       name,
		Container:  h,
		Language:   cfg.Language,
		Status:     StatusActive,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if cfg.TTLSeconds > 0 {
		sess.ExpiresAt = now.Add(time.Duration(cfg.TTLSeconds) * time.Second)
	}

	s.mu.Lock()
	s.byID[sess.ID] = sess
	s.byName[name] = sess.ID
	s.mu.Unlock()

	return sess, nil
}

// Get resolves nameOrId to a session, trying id first then name. A miss
// returns nil.
func (s *Store) Get(nameOrID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byID[nameOrID]; ok {
		sess.LastUsedAt = time.Now()
		return sess
	}
	if id, ok := s.byName[nameOrID]; ok {
		if sess, ok := s.byID[id]; ok {
			sess.LastUsedAt = time.Now()
			return sess
		}
	}
	return nil
}

// List returns a snapshot of every live session, ordered by name.
func (s *Store) List() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.byID))
	for _, sess := range s.byID {
		c := *sess
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Pause transitions an active session to paused. No-op if already
// paused.
func (s *Store) Pause(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		return &sandboxerr.NotFoundError{Kind: "session", ID: id}
	}
	if sess.Status == StatusPaused {
		return nil
	}
	if err := s.eng.Pause(ctx, sess.Container); err != nil {
		return fmt.Errorf("session: pause: %w", err)
	}

	s.mu.Lock()
	sess.Status = StatusPaused
	s.mu.Unlock()
	return nil
}

// Resume transitions a paused session back to active. No-op if not
// paused.
func (s *Store) Resume(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		return &sandboxerr.NotFoundError{Kind: "session", ID: id}
	}
	if sess.Status == StatusActive {
		return nil
	}
	if err := s.eng.Unpause(ctx, sess.Container); err != nil {
		return fmt.Errorf("session: resume: %w", err)
	}

	s.mu.Lock()
	sess.Status = StatusActive
	sess.LastUsedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// Extend pushes expiresAt out by deltaSeconds, setting it from now if
// it was previously unset.
func (s *Store) Extend(id string, deltaSeconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return &sandboxerr.NotFoundError{Kind: "session", ID: id}
	}

	delta := time.Duration(deltaSeconds) * time.Second
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = time.Now().Add(delta)
	} else {
		sess.ExpiresAt = sess.ExpiresAt.Add(delta)
	}
	return nil
}

// Destroy stops and removes the session's container and removes it
// from both maps. Race-safe against a concurrent janitor sweep: an
// already-gone session is treated as success.
func (s *Store) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.byID, id)
	delete(s.byName, sess.Name)
	s.mu.Unlock()

	_ = s.eng.Stop(ctx, sess.Container)
	return s.eng.Remove(ctx, sess.Container, true)
}

// Shutdown stops the janitor and destroys every session concurrently.
func (s *Store) Shutdown(ctx context.Context) {
	close(s.stopJanitor)
	s.janitorWG.Wait()

	s.mu.Lock()
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.Destroy(ctx, id); err != nil {
				s.logger.Printf("session: shutdown destroy %s failed: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	s.mu.Lock()
	s.byID = map[string]*Session{}
	s.byName = map[string]string{}
	s.mu.Unlock()
}

func (s *Store) janitorLoop() {
	defer s.janitorWG.Done()

	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopJanitor:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *Store) sweepExpired() {
	now := time.Now()

	s.mu.Lock()
	var expired []*Session
	for _, sess := range s.byID {
		if !sess.ExpiresAt.IsZero() && !sess.ExpiresAt.After(now) {
			expired = append(expired, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.Destroy(ctx, sess.ID)
		cancel()

		if s.audit != nil {
			s.audit("session_expired", sess, err)
		}
		if err != nil {
			s.logger.Printf("session: janitor destroy %s failed: %v", sess.ID, err)
		}
	}
}

func defaultImageFor(lang langtype.Language) string {
	return fmt.Sprintf("sandbox-%s:base", lang)
}
