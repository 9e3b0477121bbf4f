package server

import (
	"context"
	"fmt"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/audit"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/ratelimit"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/runtime"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
)

// InstallRequest is the parsed form of a sandbox_install tool call.
type InstallRequest struct {
	SessionID string
	Packages  []string
	ML        bool
	Timeout   time.Duration
	CallerKey string
}

// InstallResponse is the outcome surfaced back to the MCP tool.
type InstallResponse struct {
	Success           bool
	Cached            bool
	DurationMs        float64
	InstalledPackages []string
	Errors            []string
}

const defaultInstallTimeout = 2 * time.Minute

// Install drives: rate limit → session lookup → package cache (keyed by
// language + sorted packages) → runtime adapter install on a miss →
// commit on success.
func (s *Server) Install(ctx context.Context, req InstallRequest) (*InstallResponse, error) {
	if ok, retryAfterMs := s.RateLimit.Allow(ratelimit.Key(req.CallerKey, "install")); !ok {
		return nil, &sandboxerr.RateLimitError{RetryAfterMs: retryAfterMs}
	}

	sess := s.Sessions.Get(req.SessionID)
	if sess == nil {
		return nil, &sandboxerr.NotFoundError{Kind: "session", ID: req.SessionID}
	}

	adapter, err := s.Runtimes.Resolve(sess.Language, req.ML)
	if err != nil {
		return nil, sandboxerr.NewValidation("language", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultInstallTimeout
	}

	start := time.Now()
	s.Audit.Record(audit.Event{
		Type:        audit.EventInstallStart,
		Language:    sess.Language,
		SessionID:   req.SessionID,
		ContainerID: string(sess.Container),
		Details:     map[string]any{"packages": req.Packages},
	})

	result, err := s.Cache.Install(ctx, sess.Container, sess.Language, req.Packages, func() (runtime.InstallResult, error) {
		return adapter.InstallPackages(ctx, s.Engine, sess.Container, req.Packages, timeout)
	})

	durationMs := float64(time.Since(start).Milliseconds())

	if secErr, ok := err.(*sandboxerr.SecurityError); ok {
		s.Audit.Record(audit.Event{
			Type:      audit.EventInstallBlocked,
			Language:  sess.Language,
			SessionID: req.SessionID,
			Success:   false,
			Error:     secErr.Error(),
		})
		return nil, secErr
	}
	if err != nil {
		s.Audit.Record(audit.Event{
			Type:       audit.EventInstallEnd,
			Language:   sess.Language,
			SessionID:  req.SessionID,
			Success:    false,
			Error:      err.Error(),
			DurationMs: &durationMs,
		})
		return nil, fmt.Errorf("server: install: %w", err)
	}

	s.Audit.Record(audit.Event{
		Type:       audit.EventInstallEnd,
		Language:   sess.Language,
		SessionID:  req.SessionID,
		Success:    result.Success,
		DurationMs: &durationMs,
		Details:    map[string]any{"cached": result.Cached},
	})

	return &InstallResponse{
		Success:           result.Success,
		Cached:            result.Cached,
		DurationMs:        durationMs,
		InstalledPackages: result.Packages,
		Errors:            result.Errors,
	}, nil
}
