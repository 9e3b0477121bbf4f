package server

import (
	"fmt"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/audit"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
)

// SecurityResult bundles the outcome of a sandbox_security tool call.
// Only the field relevant to the requested action is populated.
type SecurityResult struct {
	Events []audit.Event
	Stats  *audit.Stats
}

const defaultSecurityEventCount = 20

// SecurityQuery dispatches a sandbox_security request: "events" returns
// the most recent n audit events, "violations" narrows to the
// security-relevant subset, "stats" computes aggregate counts.
func (s *Server) SecurityQuery(action string, count int) (*SecurityResult, error) {
	if count <= 0 {
		count = defaultSecurityEventCount
	}

	switch action {
	case "events":
		return &SecurityResult{Events: s.Audit.Recent(count, audit.Filter{})}, nil
	case "violations":
		return &SecurityResult{Events: s.Audit.SecurityEvents(count)}, nil
	case "stats":
		st := s.Audit.ComputeStats()
		return &SecurityResult{Stats: &st}, nil
	default:
		return nil, sandboxerr.NewValidation("action", fmt.Errorf("unknown security action %q", action))
	}
}
