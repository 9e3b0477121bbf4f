package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

// NewTypeScript builds the TypeScript adapter: source is written to a
// `.exec-<ts>-<rand>.ts` temp file under /workspace and run through a
// TS-capable runner (`npx tsx`), best-effort deleted on exit.
func NewTypeScript() Adapter {
	return &fileStaged{
		lang:           langtype.TypeScript,
		defaultImage:   "sandbox-typescript:base",
		packageManager: "npm",
		ext:            "ts",
		wrap: func(source string) string {
			return source // TypeScript runs top-level statements directly.
		},
		steps: func(path string) [][]string {
			return [][]string{{"npx", "--yes", "tsx", path}}
		},
		buildInstall: func(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string) ([]string, error) {
			argv := []string{"npm", "install", "--no-save"}
			argv = append(argv, packages...)
			return argv, nil
		},
		recipe: func(packages []string) string {
			var sb strings.Builder
			sb.WriteString("FROM sandbox-typescript:base\n")
			if len(packages) > 0 {
				fmt.Fprintf(&sb, "RUN npm install --no-save %s\n", strings.Join(packages, " "))
			}
			return sb.String()
		},
	}
}
