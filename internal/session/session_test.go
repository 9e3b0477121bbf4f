package session

import (
	"testing"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

func newTestStore() *Store {
	return &Store{
		byID:            map[string]*Session{},
		byName:          map[string]string{},
		level:           "standard",
		janitorInterval: time.Hour,
		stopJanitor:     make(chan struct{}),
	}
}

func TestGetReturnsNilOnMiss(t *testing.T) {
	s := newTestStore()
	if got := s.Get("does-not-exist"); got != nil {
		t.Errorf("Get() on a miss = %+v, want nil", got)
	}
}

func TestGetResolvesByNameOrID(t *testing.T) {
	s := newTestStore()
	sess := &Session{ID: "id-1", Name: "my-session", Language: langtype.Python}
	s.byID[sess.ID] = sess
	s.byName[sess.Name] = sess.ID

	if got := s.Get("id-1"); got != sess {
		t.Error("Get(id) did not resolve the session")
	}
	if got := s.Get("my-session"); got != sess {
		t.Error("Get(name) did not resolve the session")
	}
}

func TestGetUpdatesLastUsedAt(t *testing.T) {
	s := newTestStore()
	old := time.Now().Add(-time.Hour)
	sess := &Session{ID: "id-1", LastUsedAt: old}
	s.byID[sess.ID] = sess

	s.Get("id-1")

	if !sess.LastUsedAt.After(old) {
		t.Error("Get() did not refresh lastUsedAt")
	}
}

func TestExtendSetsExpiresAtWhenUnset(t *testing.T) {
	s := newTestStore()
	sess := &Session{ID: "id-1"}
	s.byID[sess.ID] = sess

	if err := s.Extend("id-1", 60); err != nil {
		t.Fatalf("Extend() error: %v", err)
	}
	if sess.ExpiresAt.IsZero() {
		t.Error("Extend() left expiresAt unset")
	}
}

func TestExtendAddsToExistingExpiresAt(t *testing.T) {
	s := newTestStore()
	base := time.Now()
	sess := &Session{ID: "id-1", ExpiresAt: base}
	s.byID[sess.ID] = sess

	if err := s.Extend("id-1", 60); err != nil {
		t.Fatalf("Extend() error: %v", err)
	}
	if !sess.ExpiresAt.After(base) {
		t.Error("Extend() did not push expiresAt forward")
	}
}

func TestExtendMissingSessionReturnsNotFound(t *testing.T) {
	s := newTestStore()
	if err := s.Extend("nope", 60); err == nil {
		t.Fatal("expected NotFoundError for a missing session")
	}
}

func TestDestroyOnAlreadyGoneSessionIsSuccess(t *testing.T) {
	s := newTestStore()
	s.eng = &engine.Engine{}
	if err := s.Destroy(nil, "never-existed"); err != nil {
		t.Errorf("Destroy() on a missing session should be a no-op success, got %v", err)
	}
}

func TestPauseIsNoOpWhenAlreadyPaused(t *testing.T) {
	s := newTestStore()
	sess := &Session{ID: "id-1", Status: StatusPaused}
	s.byID[sess.ID] = sess

	if err := s.Pause(nil, "id-1"); err != nil {
		t.Errorf("Pause() on an already-paused session should no-op, got %v", err)
	}
}

func TestResumeIsNoOpWhenAlreadyActive(t *testing.T) {
	s := newTestStore()
	sess := &Session{ID: "id-1", Status: StatusActive}
	s.byID[sess.ID] = sess

	if err := s.Resume(nil, "id-1"); err != nil {
		t.Errorf("Resume() on an already-active session should no-op, got %v", err)
	}
}
