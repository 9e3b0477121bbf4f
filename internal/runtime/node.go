package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

// NewJavaScript builds the JavaScript adapter: `node -e <source>`,
// packages installed with `npm install --no-save`.
func NewJavaScript() Adapter {
	return &base{
		lang:           langtype.JavaScript,
		defaultImage:   "sandbox-javascript:base",
		packageManager: "npm",
		buildCommand: func(source string) []string {
			return []string{"node", "-e", source}
		},
		buildInstall: func(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string) ([]string, error) {
			argv := []string{"npm", "install", "--no-save"}
			argv = append(argv, packages...)
			return argv, nil
		},
		recipe: func(packages []string) string {
			var sb strings.Builder
			sb.WriteString("FROM sandbox-javascript:base\n")
			if len(packages) > 0 {
				fmt.Fprintf(&sb, "RUN npm install --no-save %s\n", strings.Join(packages, " "))
			}
			return sb.String()
		},
	}
}
