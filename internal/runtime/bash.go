package runtime

import (
	"context"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
)

// NewBash builds the Bash adapter: `sh -c <source>`. Bash has no native
// package manager; InstallPackages uses apk as the base image's system
// package manager.
func NewBash() Adapter {
	return &base{
		lang:           langtype.Bash,
		defaultImage:   "sandbox-bash:base",
		packageManager: "apk",
		buildCommand: func(source string) []string {
			return []string{"sh", "-c", source}
		},
		buildInstall: func(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string) ([]string, error) {
			if len(packages) == 0 {
				return nil, sandboxerr.NewValidation("packages", nil)
			}
			argv := []string{"sh", "-c", "apk update && apk add --no-cache " + joinArgs(packages)}
			return argv, nil
		},
		recipe: func(packages []string) string {
			return "FROM sandbox-bash:base\n"
		},
	}
}

func joinArgs(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}
