package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	mcpsdk "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/server"
)

// stdioCallerKey is the rate-limit key for every request on this process.
// The stdio transport serves a single client per process, so there is
// exactly one caller identity to throttle.
const stdioCallerKey = "stdio"

// newMCPServer registers the sandbox tool surface against srv and
// returns the MCP server ready to be served over stdio.
func newMCPServer(srv *server.Server) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("sandboxd", "1.0.0")

	s.AddTool(executeTool(), executeHandler(srv))
	s.AddTool(sessionTool(), sessionHandler(srv))
	s.AddTool(installTool(), installHandler(srv))
	s.AddTool(fileOpsTool(), fileOpsHandler(srv))
	s.AddTool(inspectTool(), inspectHandler(srv))
	s.AddTool(securityTool(), securityHandler(srv))

	return s
}

// serveStdio runs s over the MCP stdio transport until the transport
// closes or the process is signaled to shut down.
func serveStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}

func executeTool() mcpsdk.Tool {
	return mcpsdk.NewTool("sandbox_execute",
		mcpsdk.WithDescription("Run a source snippet inside a hardened sandbox container and return its captured output."),
		mcpsdk.WithString("language",
			mcpsdk.Required(),
			mcpsdk.Enum("python", "typescript", "javascript", "go", "rust", "bash"),
			mcpsdk.Description("Language the snippet is written in."),
		),
		mcpsdk.WithString("code",
			mcpsdk.Required(),
			mcpsdk.Description("Source code to execute."),
		),
		mcpsdk.WithString("session",
			mcpsdk.Description("Name of an existing long-lived session to run against, instead of a pooled container."),
		),
		mcpsdk.WithNumber("timeout",
			mcpsdk.Description("Execution timeout in milliseconds (default 30000)."),
		),
		mcpsdk.WithBoolean("ml",
			mcpsdk.Description("Run on the ML-Python variant (python only)."),
		),
	)
}

func executeHandler(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		lang, err := langtype.Parse(req.GetString("language", ""))
		if err != nil {
			return mcpsdk.NewToolResultError(err.Error()), nil
		}
		code := req.GetString("code", "")
		timeoutMs := req.GetFloat("timeout", 30000)

		resp, err := srv.Execute(ctx, server.ExecuteRequest{
			Language:  lang,
			Code:      code,
			SessionID: req.GetString("session", ""),
			Timeout:   time.Duration(timeoutMs) * time.Millisecond,
			ML:        req.GetBool("ml", false),
			CallerKey: stdioCallerKey,
		})
		if err != nil {
			return mcpsdk.NewToolResultError(err.Error()), nil
		}

		return jsonToolResult(map[string]any{
			"stdout":   resp.Stdout,
			"stderr":   resp.Stderr,
			"exitCode": resp.ExitCode,
			"duration": resp.DurationMs,
			"timedOut": resp.TimedOut,
			"truncated": resp.Truncated,
			"metrics":  resp.Metrics,
		})
	}
}

func sessionTool() mcpsdk.Tool {
	return mcpsdk.NewTool("sandbox_session",
		mcpsdk.WithDescription("Create, inspect, and manage long-lived named sandbox sessions."),
		mcpsdk.WithString("action",
			mcpsdk.Required(),
			mcpsdk.Enum("create", "list", "get", "pause", "resume", "destroy", "extend"),
		),
		mcpsdk.WithString("name", mcpsdk.Description("Session name, or its id.")),
		mcpsdk.WithString("language", mcpsdk.Enum("python", "typescript", "javascript", "go", "rust", "bash")),
		mcpsdk.WithNumber("ttl", mcpsdk.Description("TTL in seconds. Required for create and extend.")),
	)
}

func sessionHandler(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		action := req.GetString("action", "")
		name := req.GetString("name", "")
		ttl := int64(req.GetFloat("ttl", 0))

		var resp *server.SessionResponse
		var err error

		switch action {
		case "create":
			lang, parseErr := langtype.Parse(req.GetString("language", ""))
			if parseErr != nil {
				return mcpsdk.NewToolResultError(parseErr.Error()), nil
			}
			resp, err = srv.CreateSession(ctx, server.SessionRequest{
				Action:     action,
				Name:       name,
				Language:   lang,
				TTLSeconds: ttl,
			})
		case "list":
			resp = srv.ListSessions()
		case "get":
			resp, err = srv.GetSession(name)
		case "pause":
			resp, err = srv.PauseSession(ctx, name)
		case "resume":
			resp, err = srv.ResumeSession(ctx, name)
		case "extend":
			resp, err = srv.ExtendSession(name, ttl)
		case "destroy":
			resp, err = srv.DestroySession(ctx, name)
		default:
			return mcpsdk.NewToolResultError(fmt.Sprintf("unknown session action %q", action)), nil
		}
		if err != nil {
			return mcpsdk.NewToolResultError(err.Error()), nil
		}

		payload := map[string]any{"success": resp.Success, "message": resp.Message}
		if resp.Session != nil {
			payload["data"] = resp.Session
		}
		if resp.List != nil {
			payload["data"] = resp.List
		}
		return jsonToolResult(payload)
	}
}

func installTool() mcpsdk.Tool {
	return mcpsdk.NewTool("sandbox_install",
		mcpsdk.WithDescription("Install packages into a session's container, memoized by the package cache."),
		mcpsdk.WithString("session", mcpsdk.Required()),
		mcpsdk.WithArray("packages", mcpsdk.Required(), mcpsdk.Description("Package specs to install.")),
	)
}

func installHandler(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := req.GetArguments()
		packages := stringList(args["packages"])

		resp, err := srv.Install(ctx, server.InstallRequest{
			SessionID: req.GetString("session", ""),
			Packages:  packages,
			CallerKey: stdioCallerKey,
		})
		if err != nil {
			return mcpsdk.NewToolResultError(err.Error()), nil
		}

		return jsonToolResult(map[string]any{
			"success":           resp.Success,
			"cached":            resp.Cached,
			"duration":          resp.DurationMs,
			"installedPackages": resp.InstalledPackages,
			"errors":            resp.Errors,
		})
	}
}

func fileOpsTool() mcpsdk.Tool {
	return mcpsdk.NewTool("sandbox_file_ops",
		mcpsdk.WithDescription("Read, write, list, or delete files inside a session's /workspace."),
		mcpsdk.WithString("session", mcpsdk.Required()),
		mcpsdk.WithString("operation", mcpsdk.Required(), mcpsdk.Enum("read", "write", "list", "delete")),
		mcpsdk.WithString("path", mcpsdk.Required()),
		mcpsdk.WithString("content", mcpsdk.Description("Base64-encoded content for write.")),
	)
}

func fileOpsHandler(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var content []byte
		if raw := req.GetString("content", ""); raw != "" {
			decoded, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				return mcpsdk.NewToolResultError(fmt.Sprintf("invalid base64 content: %v", err)), nil
			}
			content = decoded
		}

		resp, err := srv.FileOps(ctx, server.FileOpRequest{
			SessionID: req.GetString("session", ""),
			Operation: req.GetString("operation", ""),
			Path:      req.GetString("path", ""),
			Content:   content,
		})
		if err != nil {
			return mcpsdk.NewToolResultError(err.Error()), nil
		}

		payload := map[string]any{"success": resp.Success}
		if resp.Content != nil {
			payload["content"] = base64.StdEncoding.EncodeToString(resp.Content)
		}
		if resp.Listing != "" {
			payload["listing"] = resp.Listing
		}
		return jsonToolResult(payload)
	}
}

func inspectTool() mcpsdk.Tool {
	return mcpsdk.NewTool("sandbox_inspect",
		mcpsdk.WithDescription("Inspect the pool, cache, sessions, and audit log stats."),
		mcpsdk.WithString("target", mcpsdk.Required(), mcpsdk.Enum("pool", "cache", "sessions", "audit", "all")),
	)
}

func inspectHandler(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		result, err := srv.Inspect(ctx, req.GetString("target", ""))
		if err != nil {
			return mcpsdk.NewToolResultError(err.Error()), nil
		}
		return jsonToolResult(result)
	}
}

func securityTool() mcpsdk.Tool {
	return mcpsdk.NewTool("sandbox_security",
		mcpsdk.WithDescription("Query the audit log for recent events, security violations, or aggregate stats."),
		mcpsdk.WithString("action", mcpsdk.Required(), mcpsdk.Enum("events", "violations", "stats")),
		mcpsdk.WithNumber("count", mcpsdk.Description("Number of events to return (default 20).")),
	)
}

func securityHandler(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		count := int(req.GetFloat("count", 20))
		result, err := srv.SecurityQuery(req.GetString("action", ""), count)
		if err != nil {
			return mcpsdk.NewToolResultError(err.Error()), nil
		}
		return jsonToolResult(result)
	}
}

// jsonToolResult marshals payload as the tool's text result.
func jsonToolResult(payload any) (*mcpsdk.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return mcpsdk.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcpsdk.NewToolResultText(string(data)), nil
}

// stringList converts a decoded JSON value (expected []any of strings,
// or a single string) into a []string, tolerating whichever shape the
// MCP client sent.
func stringList(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	case string:
		return []string{vv}
	default:
		return nil
	}
}
