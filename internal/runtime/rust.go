package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

// compileErrorPrefix distinguishes a Rust compile failure from a runtime
// failure in the returned stderr.
const compileErrorPrefix = "compile error: "

// wrapRust implements the Rust wrap rule: a fragment lacking `fn main()`
// is indented inside one.
func wrapRust(source string) string {
	if strings.Contains(source, "fn main(") {
		return source
	}

	var sb strings.Builder
	sb.WriteString("fn main() {\n")
	for _, line := range strings.Split(source, "\n") {
		sb.WriteString("\t")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

// NewRust builds the Rust adapter: source is written to a `.exec-*.rs`
// temp file, compiled with rustc, then the produced binary is executed;
// both are best-effort deleted on exit.
func NewRust() Adapter {
	return &fileStaged{
		lang:           langtype.Rust,
		defaultImage:   "sandbox-rust:base",
		packageManager: "cargo",
		ext:            "rs",
		wrap:           wrapRust,
		compileErrPfx:  compileErrorPrefix,
		steps: func(path string) [][]string {
			binPath := path + ".bin"
			return [][]string{
				{"rustc", "-O", "-o", binPath, path},
				{binPath},
			}
		},
		buildInstall: func(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string) ([]string, error) {
			if err := ensureCargoManifest(ctx, eng, h); err != nil {
				return nil, err
			}
			// cargo add is invoked once per package.
			cmds := make([]string, 0, len(packages))
			for _, pkg := range packages {
				cmds = append(cmds, "cargo add "+pkg)
			}
			return []string{"sh", "-c", strings.Join(cmds, " && ")}, nil
		},
		recipe: func(packages []string) string {
			var sb strings.Builder
			sb.WriteString("FROM sandbox-rust:base\n")
			for _, pkg := range packages {
				fmt.Fprintf(&sb, "RUN cargo add %s\n", pkg)
			}
			return sb.String()
		},
	}
}

// ensureCargoManifest creates a minimal Cargo.toml under the workspace if
// one doesn't already exist, since `cargo add` requires a manifest.
func ensureCargoManifest(ctx context.Context, eng *engine.Engine, h engine.Handle) error {
	manifest := "[package]\nname = \"sandbox-exec\"\nversion = \"0.1.0\"\nedition = \"2021\"\n"
	manifestPath := "/workspace/Cargo.toml"

	_, err := eng.GetFile(ctx, h, manifestPath)
	if err == nil {
		return nil // manifest already present
	}
	return eng.PutFile(ctx, h, manifestPath, []byte(manifest))
}
