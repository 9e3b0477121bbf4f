package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

// NewPython builds the base Python adapter: `python -c <source>`,
// packages installed with `pip install --no-cache-dir`.
func NewPython() Adapter {
	return &base{
		lang:           langtype.Python,
		defaultImage:   "sandbox-python:base",
		packageManager: "pip",
		buildCommand: func(source string) []string {
			return []string{"python", "-c", source}
		},
		buildInstall: func(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string) ([]string, error) {
			argv := []string{"pip", "install", "--no-cache-dir"}
			argv = append(argv, packages...)
			return argv, nil
		},
		recipe: func(packages []string) string {
			var sb strings.Builder
			sb.WriteString("FROM sandbox-python:base\n")
			if len(packages) > 0 {
				fmt.Fprintf(&sb, "RUN pip install --no-cache-dir %s\n", strings.Join(packages, " "))
			}
			return sb.String()
		},
	}
}
