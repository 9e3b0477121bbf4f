package runtime

import (
	"context"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/security"
)

// wrapFunc wraps a bare code fragment in whatever boilerplate the
// language needs to be runnable as a standalone program (e.g. a missing
// `func main() {}`), returning the source unchanged if it already looks
// like a complete program.
type wrapFunc func(source string) string

// argvFunc builds the argv to run a staged source file at path, e.g.
// compile-then-run for Rust, run-from-source for Go.
type argvFunc func(path string) [][]string // one entry per exec step; all but the last must succeed

// fileStaged is the Adapter implementation for languages that must write
// source to a temp file under /workspace before execution (TypeScript,
// Go, Rust) instead of passing source inline on argv.
type fileStaged struct {
	lang           langtype.Language
	defaultImage   string
	packageManager string
	ext            string
	wrap           wrapFunc
	steps          argvFunc
	buildInstall   installBuilder
	recipe         func(packages []string) string
	compileErrPfx  string // prefix surfaced in stderr on a failed compile step
}

func (f *fileStaged) Language() langtype.Language { return f.lang }
func (f *fileStaged) DefaultImage() string         { return f.defaultImage }
func (f *fileStaged) PackageManager() string       { return f.packageManager }

func (f *fileStaged) Execute(ctx context.Context, eng *engine.Engine, source string, ectx ExecContext) (*engine.ExecResult, error) {
	if err := security.ValidateCode(f.lang, source); err != nil {
		return nil, sandboxerr.NewSecurity(err.Error(), nil)
	}

	wrapped := f.wrap(source)

	path, err := writeTempSource(ctx, eng, ectx.Handle, f.ext, wrapped)
	if err != nil {
		return nil, sandboxerr.NewContainer("write-temp", err)
	}
	defer cleanupTemp(ctx, eng, ectx.Handle, path)

	// Languages with a compile step leave a binary beside the source;
	// best-effort remove it on every exit path, including a timeout.
	if f.compileErrPfx != "" {
		defer cleanupTemp(ctx, eng, ectx.Handle, path+".bin")
	}

	steps := f.steps(path)
	var last *engine.ExecResult

	for i, argv := range steps {
		result, err := eng.Exec(ctx, ectx.Handle, engine.ExecOptions{
			Argv:    argv,
			Timeout: ectx.Timeout,
			Env:     ectx.Env,
			Stdin:   ectx.Stdin,
			Cwd:     cwdOrDefault(ectx.Cwd),
		})
		if err != nil {
			return nil, sandboxerr.NewContainer("exec", err)
		}
		if result.TimedOut {
			return result, &sandboxerr.TimeoutError{TimeoutMs: int(ectx.Timeout.Milliseconds())}
		}

		isCompileStep := i < len(steps)-1
		if isCompileStep && result.ExitCode != 0 {
			result.Stderr = append([]byte(f.compileErrPfx), result.Stderr...)
			return result, nil
		}
		last = result
	}

	return last, nil
}

func (f *fileStaged) InstallPackages(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string, timeout time.Duration) (InstallResult, error) {
	if err := security.ValidatePackages(f.lang, packages); err != nil {
		return InstallResult{}, sandboxerr.NewSecurity(err.Error(), nil)
	}

	argv, err := f.buildInstall(ctx, eng, h, packages)
	if err != nil {
		return InstallResult{}, err
	}

	result, err := eng.Exec(ctx, h, engine.ExecOptions{
		Argv:    argv,
		Timeout: timeout,
		Cwd:     security.WorkspaceRoot,
	})
	if err != nil {
		return InstallResult{}, sandboxerr.NewContainer("install", err)
	}

	if result.ExitCode != 0 {
		return InstallResult{Success: false, Errors: []string{string(result.Stderr)}}, nil
	}
	return InstallResult{Success: true, InstalledPackages: packages}, nil
}

func (f *fileStaged) BuildImageRecipe(packages []string) string {
	return f.recipe(packages)
}
