package server

import (
	"context"
	"fmt"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/security"
)

// FileOpRequest is the parsed form of a sandbox_file_ops tool call. Every
// path is sanitized before any engine call.
type FileOpRequest struct {
	SessionID string
	Operation string // read | write | list | delete
	Path      string
	Content   []byte
}

// FileOpResponse is the outcome surfaced back to the MCP tool.
type FileOpResponse struct {
	Success bool
	Content []byte
	Listing string
}

const fileOpTimeout = 15 * time.Second

// FileOps dispatches a sandbox_file_ops request against a session's
// container. Every path passes the Security Gate's path sanitizer before
// the engine is touched.
func (s *Server) FileOps(ctx context.Context, req FileOpRequest) (*FileOpResponse, error) {
	sess := s.Sessions.Get(req.SessionID)
	if sess == nil {
		return nil, &sandboxerr.NotFoundError{Kind: "session", ID: req.SessionID}
	}

	switch req.Operation {
	case "read":
		path, err := security.SanitizePath(req.Path)
		if err != nil {
			return nil, sandboxerr.NewSecurity(err.Error(), nil)
		}
		data, err := s.Engine.GetFile(ctx, sess.Container, path)
		if err != nil {
			return nil, sandboxerr.NewContainer("get_file", err)
		}
		return &FileOpResponse{Success: true, Content: data}, nil

	case "write":
		path, err := security.ValidateWritePath(req.Path)
		if err != nil {
			return nil, sandboxerr.NewSecurity(err.Error(), nil)
		}
		if err := s.Engine.PutFile(ctx, sess.Container, path, req.Content); err != nil {
			return nil, sandboxerr.NewContainer("put_file", err)
		}
		return &FileOpResponse{Success: true}, nil

	case "list":
		path, err := security.SanitizePath(req.Path)
		if err != nil {
			return nil, sandboxerr.NewSecurity(err.Error(), nil)
		}
		result, err := s.Engine.Exec(ctx, sess.Container, engine.ExecOptions{
			Argv:    []string{"ls", "-la", path},
			Timeout: fileOpTimeout,
		})
		if err != nil {
			return nil, sandboxerr.NewContainer("list", err)
		}
		if result.ExitCode != 0 {
			return nil, fmt.Errorf("server: list %s: %s", path, string(result.Stderr))
		}
		return &FileOpResponse{Success: true, Listing: string(result.Stdout)}, nil

	case "delete":
		path, err := security.ValidateDeletePath(req.Path)
		if err != nil {
			return nil, sandboxerr.NewSecurity(err.Error(), nil)
		}
		result, err := s.Engine.Exec(ctx, sess.Container, engine.ExecOptions{
			Argv:    []string{"rm", "-rf", path},
			Timeout: fileOpTimeout,
		})
		if err != nil {
			return nil, sandboxerr.NewContainer("delete", err)
		}
		if result.ExitCode != 0 {
			return nil, fmt.Errorf("server: delete %s: %s", path, string(result.Stderr))
		}
		return &FileOpResponse{Success: true}, nil

	default:
		return nil, sandboxerr.NewValidation("operation", fmt.Errorf("unknown file operation %q", req.Operation))
	}
}
