package server

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/audit"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/pool"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/ratelimit"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/runtime"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/session"
)

// newTestServer builds a Server whose collaborators never touch a real
// Docker engine, so only code paths that fail before any engine call are
// exercised.
func newTestServer(t *testing.T, rateLimit int) *Server {
	t.Helper()
	logger := log.Default()

	return &Server{
		Audit:     audit.New(audit.WithCapacity(100)),
		Runtimes:  runtime.NewRegistry(),
		Pool:      pool.New(nil, pool.WithConfig(pool.Config{LivenessInterval: time.Hour})),
		Sessions:  session.New(nil, session.WithJanitorInterval(time.Hour), session.WithLogger(logger)),
		RateLimit: ratelimit.New(ratelimit.WithLimit(rateLimit), ratelimit.WithWindow(time.Minute)),
		Logger:    logger,
	}
}

func TestExecuteRejectsUnknownLanguageBeforeTouchingEngine(t *testing.T) {
	s := newTestServer(t, 60)

	_, err := s.Execute(context.Background(), ExecuteRequest{
		Language:  langtype.Language("cobol"),
		Code:      "print 1",
		CallerKey: "test",
	})
	if err == nil {
		t.Fatal("expected an error for an unsupported language")
	}
	var valErr *sandboxerr.ValidationError
	if _, ok := err.(*sandboxerr.ValidationError); !ok {
		t.Errorf("Execute() error = %T (%v), want %T", err, err, valErr)
	}
}

func TestExecuteWithUnknownSessionReturnsNotFound(t *testing.T) {
	s := newTestServer(t, 60)

	_, err := s.Execute(context.Background(), ExecuteRequest{
		Language:  langtype.Python,
		Code:      "print(1)",
		SessionID: "does-not-exist",
		CallerKey: "test",
	})
	if _, ok := err.(*sandboxerr.NotFoundError); !ok {
		t.Errorf("Execute() error = %T (%v), want *sandboxerr.NotFoundError", err, err)
	}
}

func TestExecuteEnforcesRateLimit(t *testing.T) {
	s := newTestServer(t, 1)

	req := ExecuteRequest{Language: langtype.Language("cobol"), Code: "x", CallerKey: "same-caller"}
	if _, err := s.Execute(context.Background(), req); err == nil {
		t.Fatal("expected the first call to fail validation, not rate limiting")
	}

	_, err := s.Execute(context.Background(), req)
	rlErr, ok := err.(*sandboxerr.RateLimitError)
	if !ok {
		t.Fatalf("Execute() second call error = %T (%v), want *sandboxerr.RateLimitError", err, err)
	}
	if rlErr.RetryAfterMs < 0 {
		t.Errorf("RetryAfterMs = %d, want >= 0", rlErr.RetryAfterMs)
	}
}

func TestInstallWithUnknownSessionReturnsNotFound(t *testing.T) {
	s := newTestServer(t, 60)

	_, err := s.Install(context.Background(), InstallRequest{
		SessionID: "does-not-exist",
		Packages:  []string{"requests"},
		CallerKey: "test",
	})
	if _, ok := err.(*sandboxerr.NotFoundError); !ok {
		t.Errorf("Install() error = %T (%v), want *sandboxerr.NotFoundError", err, err)
	}
}

func TestFileOpsWithUnknownSessionReturnsNotFound(t *testing.T) {
	s := newTestServer(t, 60)

	_, err := s.FileOps(context.Background(), FileOpRequest{
		SessionID: "does-not-exist",
		Operation: "read",
		Path:      "../../etc/passwd",
	})
	if _, ok := err.(*sandboxerr.NotFoundError); !ok {
		t.Errorf("FileOps() error = %T (%v), want *sandboxerr.NotFoundError", err, err)
	}
}

func TestInspectUnknownTargetIsValidationError(t *testing.T) {
	s := newTestServer(t, 60)

	_, err := s.Inspect(context.Background(), "everything")
	if _, ok := err.(*sandboxerr.ValidationError); !ok {
		t.Errorf("Inspect() error = %T (%v), want *sandboxerr.ValidationError", err, err)
	}
}

func TestInspectPoolReportsEmptyStats(t *testing.T) {
	s := newTestServer(t, 60)

	result, err := s.Inspect(context.Background(), "pool")
	if err != nil {
		t.Fatalf("Inspect(pool) = %v", err)
	}
	if result.Pool == nil || result.Pool.Total != 0 {
		t.Errorf("Inspect(pool) = %+v, want an empty pool", result.Pool)
	}
}

func TestSecurityQueryViolationsReturnsOnlySecurityEvents(t *testing.T) {
	s := newTestServer(t, 60)

	s.Audit.Record(audit.Event{Type: audit.EventExecuteStart})
	s.Audit.Record(audit.Event{Type: audit.EventExecuteBlocked})
	s.Audit.Record(audit.Event{Type: audit.EventSecurityViolation})

	result, err := s.SecurityQuery("violations", 10)
	if err != nil {
		t.Fatalf("SecurityQuery(violations) = %v", err)
	}
	if len(result.Events) != 2 {
		t.Errorf("SecurityQuery(violations) returned %d events, want 2", len(result.Events))
	}
}

func TestSecurityQueryUnknownActionIsValidationError(t *testing.T) {
	s := newTestServer(t, 60)

	_, err := s.SecurityQuery("launch-nukes", 10)
	if _, ok := err.(*sandboxerr.ValidationError); !ok {
		t.Errorf("SecurityQuery() error = %T (%v), want *sandboxerr.ValidationError", err, err)
	}
}
