package server

import "context"

// Ping reports whether the underlying container engine is reachable.
// It is exposed as an internal diagnostics probe, not one of the six
// MCP tools.
func (s *Server) Ping(ctx context.Context) bool {
	return s.Engine.Ping(ctx)
}
