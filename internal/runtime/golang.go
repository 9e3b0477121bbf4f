package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

// knownGoPackagePrefixes maps a dotted call prefix to the standard library
// import path the wrap rule auto-adds when a bare fragment uses it
// without declaring its own imports.
var knownGoPackagePrefixes = []struct {
	prefix string
	path   string
}{
	{"fmt.", "fmt"},
	{"strings.", "strings"},
	{"strconv.", "strconv"},
	{"math.", "math"},
	{"time.", "time"},
	{"sort.", "sort"},
	{"errors.", "errors"},
	{"bytes.", "bytes"},
	{"json.", "encoding/json"},
}

// wrapGo implements the Go wrap rule: a fragment lacking `func main()` is
// indented inside one, wrapped in `package main`, with any standard
// library packages its body references auto-imported.
func wrapGo(source string) string {
	if strings.Contains(source, "func main(") {
		if strings.Contains(source, "package main") {
			return source
		}
		return "package main\n\n" + source
	}

	imports := map[string]bool{}
	for _, known := range knownGoPackagePrefixes {
		if strings.Contains(source, known.prefix) {
			imports[known.path] = true
		}
	}

	var sb strings.Builder
	sb.WriteString("package main\n\n")
	if len(imports) > 0 {
		sb.WriteString("import (\n")
		for path := range imports {
			fmt.Fprintf(&sb, "\t%q\n", path)
		}
		sb.WriteString(")\n\n")
	}
	sb.WriteString("func main() {\n")
	for _, line := range strings.Split(source, "\n") {
		sb.WriteString("\t")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

// NewGo builds the Go adapter: source is written to a `.exec-*.go` temp
// file and run via the toolchain's run-from-source command.
func NewGo() Adapter {
	return &fileStaged{
		lang:           langtype.Go,
		defaultImage:   "sandbox-go:base",
		packageManager: "go",
		ext:            "go",
		wrap:           wrapGo,
		steps: func(path string) [][]string {
			return [][]string{{"go", "run", path}}
		},
		buildInstall: func(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string) ([]string, error) {
			// go get is invoked once per package; the adapter chains them
			// with && so any failure surfaces.
			argv := []string{"sh", "-c", goGetChain(packages)}
			return argv, nil
		},
		recipe: func(packages []string) string {
			var sb strings.Builder
			sb.WriteString("FROM sandbox-go:base\n")
			for _, pkg := range packages {
				fmt.Fprintf(&sb, "RUN go get %s\n", pkg)
			}
			return sb.String()
		},
	}
}

func goGetChain(packages []string) string {
	cmds := make([]string, 0, len(packages))
	for _, pkg := range packages {
		cmds = append(cmds, "go get "+pkg)
	}
	return strings.Join(cmds, " && ")
}
