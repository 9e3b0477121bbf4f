package server

import (
	"context"
	"fmt"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/audit"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/cache"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/pool"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
)

// InspectResult bundles the stats blocks a sandbox_inspect call asked
// for. Only the requested fields are populated.
type InspectResult struct {
	Pool     *pool.Stats
	Cache    *cache.Stats
	Sessions []SessionInfo
	Audit    *audit.Stats
}

// Inspect dispatches a sandbox_inspect request to the component(s) named
// by target ("pool", "cache", "sessions", "audit", or "all").
func (s *Server) Inspect(ctx context.Context, target string) (*InspectResult, error) {
	result := &InspectResult{}

	switch target {
	case "pool":
		st := s.Pool.Stats()
		result.Pool = &st
	case "cache":
		st, err := s.Cache.Stats(ctx)
		if err != nil {
			return nil, err
		}
		result.Cache = &st
	case "sessions":
		resp := s.ListSessions()
		result.Sessions = resp.List
	case "audit":
		st := s.Audit.ComputeStats()
		result.Audit = &st
	case "all":
		poolStats := s.Pool.Stats()
		result.Pool = &poolStats

		cacheStats, err := s.Cache.Stats(ctx)
		if err != nil {
			return nil, err
		}
		result.Cache = &cacheStats

		result.Sessions = s.ListSessions().List

		auditStats := s.Audit.ComputeStats()
		result.Audit = &auditStats
	default:
		return nil, sandboxerr.NewValidation("target", fmt.Errorf("unknown inspect target %q", target))
	}

	return result, nil
}
