// Package server wires the Engine Adapter, Security Gate, Audit Log,
// Runtime Adapters, Container Pool, Package Cache, Session Store, and
// Rate Limiter into the request flow the MCP tool handlers drive.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/audit"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/cache"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/config"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/pool"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/ratelimit"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/runtime"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/security"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/session"
)

// Server is the top-level collaborator graph the tool handlers drive.
type Server struct {
	Engine    *engine.Engine
	Security  *security.LevelStore
	Audit     *audit.Log
	Runtimes  *runtime.Registry
	Pool      *pool.Pool
	Cache     *cache.Cache
	Sessions  *session.Store
	RateLimit *ratelimit.Limiter
	Logger    *log.Logger
	Config    config.Config
}

// New builds every component and wires them together per cfg.
func New(cfg config.Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}

	eng, err := engine.New(engine.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("server: init engine: %w", err)
	}

	levelStore := security.NewLevelStore(cfg.HardeningConfigPath, logger)
	if cfg.HardeningConfigPath != "" {
		if err := levelStore.Watch(context.Background()); err != nil {
			logger.Printf("server: hardening level watch disabled: %v", err)
		}
	}

	auditLog := audit.New(
		audit.WithCapacity(cfg.AuditRingCapacity),
		audit.WithFileDir(cfg.AuditLogDir),
	)

	runtimes := runtime.NewRegistry()

	defaultImages := map[langtype.Language]string{}
	for _, lang := range runtimes.Languages() {
		adapter, _ := runtimes.Resolve(lang, false)
		defaultImages[lang] = adapter.DefaultImage()
	}

	containerPool := pool.New(eng,
		pool.WithConfig(pool.Config{
			MinIdlePerLanguage: cfg.PoolMinIdle,
			MaxActive:          cfg.PoolMaxActive,
			LivenessInterval:   30 * time.Second,
			HardeningLevel:     cfg.HardeningLevel,
		}),
		pool.WithDefaultImages(defaultImages),
		pool.WithLevelStore(levelStore),
		pool.WithLogger(logger),
	)
	containerPool.Start(context.Background())

	pkgCache := cache.New(eng)

	sessions := session.New(eng,
		session.WithLevelStore(levelStore),
		session.WithHardeningLevel(cfg.HardeningLevel),
		session.WithJanitorInterval(cfg.SessionJanitorInterval),
		session.WithLogger(logger),
		session.WithAuditHook(func(event string, sess *session.Session, err error) {
			auditLog.Record(audit.Event{
				Type:        audit.EventSessionExpired,
				SessionID:   sess.ID,
				Language:    sess.Language,
				ContainerID: string(sess.Container),
				Success:     err == nil,
				Error:       errString(err),
			})
		}),
	)

	limiter := ratelimit.New(ratelimit.WithLimit(cfg.RateLimitPerMinute), ratelimit.WithWindow(time.Minute))

	return &Server{
		Engine:    eng,
		Security:  levelStore,
		Audit:     auditLog,
		Runtimes:  runtimes,
		Pool:      containerPool,
		Cache:     pkgCache,
		Sessions:  sessions,
		RateLimit: limiter,
		Logger:    logger,
		Config:    cfg,
	}, nil
}

// ExecuteRequest is the parsed form of a sandbox_execute tool call.
type ExecuteRequest struct {
	Language    langtype.Language
	Code        string
	SessionID   string // empty means use the pool
	CustomImage string
	Timeout     time.Duration
	Env         map[string]string
	CallerKey   string
	ML          bool
	MLOptions   runtime.MLOptions
}

// ExecuteResponse is the outcome surfaced back to the MCP tool.
type ExecuteResponse struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMs float64
	TimedOut   bool
	Truncated  bool
	Metrics    *runtime.MLMetrics
}

// Execute drives the control flow in: rate limit → language resolution
// → security gate → session lookup or pool acquire → runtime adapter →
// engine → audit → pool release.
func (s *Server) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	if ok, retryAfterMs := s.RateLimit.Allow(ratelimit.Key(req.CallerKey, "execute")); !ok {
		return nil, &sandboxerr.RateLimitError{RetryAfterMs: retryAfterMs}
	}

	adapter, err := s.Runtimes.Resolve(req.Language, req.ML)
	if err != nil {
		return nil, sandboxerr.NewValidation("language", err)
	}

	if err := security.ValidateCode(req.Language, req.Code); err != nil {
		secErr := sandboxerr.NewSecurity(err.Error(), nil)
		s.Audit.Record(audit.Event{
			Type:      audit.EventExecuteBlocked,
			Language:  req.Language,
			SessionID: req.SessionID,
			Success:   false,
			Error:     secErr.Error(),
			Details:   map[string]any{"codeHash": codeHash(req.Code)},
		})
		return nil, secErr
	}

	var handle engine.Handle
	usingSession := req.SessionID != ""
	if usingSession {
		sess := s.Sessions.Get(req.SessionID)
		if sess == nil {
			return nil, &sandboxerr.NotFoundError{Kind: "session", ID: req.SessionID}
		}
		handle = sess.Container
	} else {
		h, err := s.Pool.Acquire(ctx, req.Language, req.CustomImage)
		if err != nil {
			return nil, fmt.Errorf("server: acquire container: %w", err)
		}
		handle = h
	}

	hash := codeHash(req.Code)

	start := time.Now()
	s.Audit.Record(audit.Event{
		Type:        audit.EventExecuteStart,
		Language:    req.Language,
		SessionID:   req.SessionID,
		ContainerID: string(handle),
		Details:     map[string]any{"codeHash": hash},
	})

	ectx := runtime.ExecContext{
		Handle:  handle,
		Timeout: req.Timeout,
		Env:     req.Env,
	}

	var result *engine.ExecResult
	var metrics *runtime.MLMetrics
	if req.ML {
		mlAdapter := s.Runtimes.MLPython()
		mlResult, execErr := mlAdapter.ExecuteML(ctx, s.Engine, req.Code, ectx, req.MLOptions)
		err = execErr
		if mlResult != nil {
			result = mlResult.ExecResult
			metrics = &mlResult.Metrics
		}
	} else {
		result, err = adapter.Execute(ctx, s.Engine, req.Code, ectx)
	}

	duration := time.Since(start)
	durationMs := float64(duration.Milliseconds())

	if !usingSession {
		if releaseErr := s.Pool.Release(context.Background(), handle, req.Language); releaseErr != nil {
			s.Logger.Printf("server: pool release failed: %v", releaseErr)
		}
	}

	if secErr, ok := err.(*sandboxerr.SecurityError); ok {
		s.Audit.Record(audit.Event{
			Type:        audit.EventExecuteBlocked,
			Language:    req.Language,
			SessionID:   req.SessionID,
			ContainerID: string(handle),
			Success:     false,
			Error:       secErr.Error(),
			Details:     map[string]any{"codeHash": hash},
		})
		return nil, secErr
	}
	if err != nil {
		s.Audit.Record(audit.Event{
			Type:        audit.EventExecuteEnd,
			Language:    req.Language,
			SessionID:   req.SessionID,
			ContainerID: string(handle),
			Success:     false,
			Error:       err.Error(),
			DurationMs:  &durationMs,
			Details:     map[string]any{"codeHash": hash},
		})
		return nil, err
	}

	s.Audit.Record(audit.Event{
		Type:        audit.EventExecuteEnd,
		Language:    req.Language,
		SessionID:   req.SessionID,
		ContainerID: string(handle),
		Success:     result.ExitCode == 0,
		DurationMs:  &durationMs,
		Details:     map[string]any{"codeHash": hash},
	})

	return &ExecuteResponse{
		Stdout:     string(result.Stdout),
		Stderr:     string(result.Stderr),
		ExitCode:   result.ExitCode,
		DurationMs: durationMs,
		TimedOut:   result.TimedOut,
		Truncated:  result.Truncated,
		Metrics:    metrics,
	}, nil
}

// Shutdown drains every timer-driven component. In-flight requests are
// not canceled; only the independent timer loops stop.
func (s *Server) Shutdown(ctx context.Context) {
	s.RateLimit.Stop()
	s.Sessions.Shutdown(ctx)
	s.Pool.Drain(ctx)
	s.Security.Stop()
	s.Audit.Close()
	s.Engine.Close()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// codeHash fingerprints source so an EXECUTE_START can be correlated with
// its matching EXECUTE_END/EXECUTE_BLOCKED in the audit log without
// persisting the source itself.
func codeHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
