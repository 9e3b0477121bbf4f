// Package runtime implements the per-language Runtime Adapters: the code
// that translates a source snippet into a container exec and knows how to
// install packages for its language. Each adapter is a plain value with
// injected behavior functions — a tagged union over languages rather than
// a class hierarchy.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/security"
)

// ExecContext carries the per-call execution parameters that don't belong
// to the source code itself.
type ExecContext struct {
	Handle  engine.Handle
	Timeout time.Duration
	Env     map[string]string
	Stdin   []byte
	Cwd     string
}

// InstallResult is the structured outcome of a package install attempt.
type InstallResult struct {
	Success            bool
	Cached             bool
	InstalledPackages  []string
	Errors             []string
}

// Adapter is the behavior every language plugs into the kernel.
type Adapter interface {
	Language() langtype.Language
	DefaultImage() string
	PackageManager() string

	// Execute validates source with the Security Gate, translates it
	// into a container command, and runs it via the Engine Adapter.
	Execute(ctx context.Context, eng *engine.Engine, source string, ectx ExecContext) (*engine.ExecResult, error)

	// InstallPackages validates the package list with the Security Gate
	// and runs the language's native package-manager install inside the
	// container identified by h.
	InstallPackages(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string, timeout time.Duration) (InstallResult, error)

	// BuildImageRecipe produces a text recipe for an external image
	// builder (not required at runtime).
	BuildImageRecipe(packages []string) string
}

// commandBuilder turns validated source into the argv to exec.
type commandBuilder func(source string) []string

// installBuilder turns a validated package list into the argv to exec for
// an install, given whatever staging (e.g. writing a manifest file) it
// needs first.
type installBuilder func(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string) ([]string, error)

// base implements the ambient parts of Adapter (security-gate check,
// engine exec, error translation) shared by every language; each concrete
// adapter supplies its own commandBuilder/installBuilder.
type base struct {
	lang           langtype.Language
	defaultImage   string
	packageManager string
	buildCommand   commandBuilder
	buildInstall   installBuilder
	recipe         func(packages []string) string
}

func (b *base) Language() langtype.Language { return b.lang }
func (b *base) DefaultImage() string         { return b.defaultImage }
func (b *base) PackageManager() string       { return b.packageManager }

func (b *base) Execute(ctx context.Context, eng *engine.Engine, source string, ectx ExecContext) (*engine.ExecResult, error) {
	if err := security.ValidateCode(b.lang, source); err != nil {
		return nil, sandboxerr.NewSecurity(err.Error(), nil)
	}

	argv := b.buildCommand(source)

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
	return result, nil
}

func (b *base) InstallPackages(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string, timeout time.Duration) (InstallResult, error) {
	if err := security.ValidatePackages(b.lang, packages); err != nil {
		return InstallResult{}, sandboxerr.NewSecurity(err.Error(), nil)
	}

	argv, err := b.buildInstall(ctx, eng, h, packages)
	if err != nil {
		return InstallResult{}, fmt.Errorf("prepare install: %w", err)
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
		return InstallResult{
			Success: false,
			Cached:  false,
			Errors:  []string{string(result.Stderr)},
		}, nil
	}

	return InstallResult{
		Success:           true,
		Cached:            false,
		InstalledPackages: packages,
	}, nil
}

func (b *base) BuildImageRecipe(packages []string) string {
	return b.recipe(packages)
}

func cwdOrDefault(cwd string) string {
	if cwd == "" {
		return security.WorkspaceRoot
	}
	return cwd
}
