package server

import (
	"context"
	"fmt"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/audit"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/session"
)

// SessionRequest is the parsed form of a sandbox_session tool call.
type SessionRequest struct {
	Action      string
	Name        string
	Language    langtype.Language
	CustomImage string
	TTLSeconds  int64
	MemoryMB    int64
	CPUQuota    float64
	Env         map[string]string
	GPU         bool
}

// SessionInfo is the session shape surfaced back to the MCP tool.
type SessionInfo struct {
	ID         string
	Name       string
	Language   langtype.Language
	Status     string
	CreatedAt  string
	LastUsedAt string
	ExpiresAt  string
}

// SessionResponse is the outcome surfaced back to the MCP tool.
type SessionResponse struct {
	Success bool
	Message string
	Session *SessionInfo
	List    []SessionInfo
}

// CreateSession provisions a new named session and starts its container.
func (s *Server) CreateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	if req.TTLSeconds <= 0 {
		return nil, sandboxerr.NewValidation("ttl", fmt.Errorf("create requires a positive ttl"))
	}

	sess, err := s.Sessions.Create(ctx, req.Name, session.Config{
		Language:    req.Language,
		CustomImage: req.CustomImage,
		MemoryMB:    req.MemoryMB,
		CPUQuota:    req.CPUQuota,
		Env:         req.Env,
		GPU:         req.GPU,
		TTLSeconds:  req.TTLSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("server: create session: %w", err)
	}

	s.Audit.Record(audit.Event{
		Type:        audit.EventSessionCreated,
		Language:    sess.Language,
		SessionID:   sess.ID,
		ContainerID: string(sess.Container),
		Success:     true,
	})

	return &SessionResponse{Success: true, Message: "session created", Session: toSessionInfo(sess)}, nil
}

// ListSessions returns every live session.
func (s *Server) ListSessions() *SessionResponse {
	sessions := s.Sessions.List()
	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, *toSessionInfo(sess))
	}
	return &SessionResponse{Success: true, List: out}
}

// GetSession resolves a name or id to a session, or reports not-found.
func (s *Server) GetSession(nameOrID string) (*SessionResponse, error) {
	sess := s.Sessions.Get(nameOrID)
	if sess == nil {
		return nil, &sandboxerr.NotFoundError{Kind: "session", ID: nameOrID}
	}
	return &SessionResponse{Success: true, Session: toSessionInfo(sess)}, nil
}

// PauseSession transitions a session's container to paused.
func (s *Server) PauseSession(ctx context.Context, nameOrID string) (*SessionResponse, error) {
	sess := s.Sessions.Get(nameOrID)
	if sess == nil {
		return nil, &sandboxerr.NotFoundError{Kind: "session", ID: nameOrID}
	}
	if err := s.Sessions.Pause(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("server: pause session: %w", err)
	}
	return &SessionResponse{Success: true, Message: "session paused"}, nil
}

// ResumeSession transitions a session's container back to active.
func (s *Server) ResumeSession(ctx context.Context, nameOrID string) (*SessionResponse, error) {
	sess := s.Sessions.Get(nameOrID)
	if sess == nil {
		return nil, &sandboxerr.NotFoundError{Kind: "session", ID: nameOrID}
	}
	if err := s.Sessions.Resume(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("server: resume session: %w", err)
	}
	return &SessionResponse{Success: true, Message: "session resumed"}, nil
}

// ExtendSession pushes a session's expiry out by ttlSeconds.
func (s *Server) ExtendSession(nameOrID string, ttlSeconds int64) (*SessionResponse, error) {
	if ttlSeconds <= 0 {
		return nil, sandboxerr.NewValidation("ttl", fmt.Errorf("extend requires a positive ttl delta"))
	}
	sess := s.Sessions.Get(nameOrID)
	if sess == nil {
		return nil, &sandboxerr.NotFoundError{Kind: "session", ID: nameOrID}
	}
	if err := s.Sessions.Extend(sess.ID, ttlSeconds); err != nil {
		return nil, fmt.Errorf("server: extend session: %w", err)
	}
	return &SessionResponse{Success: true, Message: "session extended"}, nil
}

// DestroySession stops and removes a session's container.
func (s *Server) DestroySession(ctx context.Context, nameOrID string) (*SessionResponse, error) {
	sess := s.Sessions.Get(nameOrID)
	if sess == nil {
		return nil, &sandboxerr.NotFoundError{Kind: "session", ID: nameOrID}
	}
	err := s.Sessions.Destroy(ctx, sess.ID)

	s.Audit.Record(audit.Event{
		Type:        audit.EventSessionDestroyed,
		Language:    sess.Language,
		SessionID:   sess.ID,
		ContainerID: string(sess.Container),
		Success:     err == nil,
		Error:       errString(err),
	})
	if err != nil {
		return nil, fmt.Errorf("server: destroy session: %w", err)
	}
	return &SessionResponse{Success: true, Message: "session destroyed"}, nil
}

func toSessionInfo(sess *session.Session) *SessionInfo {
	info := &SessionInfo{
		ID:         sess.ID,
		Name:       sess.Name,
		Language:   sess.Language,
		Status:     string(sess.Status),
		CreatedAt:  sess.CreatedAt.Format(timeFormat),
		LastUsedAt: sess.LastUsedAt.Format(timeFormat),
	}
	if !sess.ExpiresAt.IsZero() {
		info.ExpiresAt = sess.ExpiresAt.Format(timeFormat)
	}
	return info
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
