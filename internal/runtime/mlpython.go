package runtime

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/sandboxerr"
)

// mlAllowedPackages is the curated allow-list of numeric/ML libraries the
// ML-Python variant permits installing.
var mlAllowedPackages = map[string]bool{
	"numpy": true, "pandas": true, "scipy": true, "scikit-learn": true,
	"torch": true, "tensorflow": true, "matplotlib": true, "xgboost": true,
	"lightgbm": true, "transformers": true, "jax": true, "jaxlib": true,
}

// MLMetrics is the structured telemetry parsed from well-known tokens in
// stderr: peak memory, model load time, inference time.
type MLMetrics struct {
	PeakMemoryMB    float64
	ModelLoadTimeMs float64
	InferenceTimeMs float64
}

// MLExecResult wraps the underlying exec result with parsed ML telemetry.
type MLExecResult struct {
	*engine.ExecResult
	Metrics MLMetrics
}

// MLOptions configures the preamble of a single ML-Python execution.
type MLOptions struct {
	DeterministicSeed *int64
	VerboseLogging    bool
}

var (
	peakMemoryPattern = regexp.MustCompile(`(?m)^PEAK_MEMORY_MB=([0-9.]+)$`)
	modelLoadPattern  = regexp.MustCompile(`(?m)^MODEL_LOAD_MS=([0-9.]+)$`)
	inferencePattern  = regexp.MustCompile(`(?m)^INFERENCE_MS=([0-9.]+)$`)
)

// MLPython composes the base Python adapter with an overridden image,
// deterministic-seed/verbose-logging preamble injection, a curated
// install allow-list, and telemetry parsing. This is composition over
// the base Python adapter, not inheritance: ExecuteML delegates to it
// after prepending a preamble (Execute delegates without one), and
// InstallPackages delegates to it after checking the package list
// against the ML allow-list.
type MLPython struct {
	python Adapter
	image  string
}

// NewMLPython builds the ML-Python adapter.
func NewMLPython() *MLPython {
	return &MLPython{
		python: NewPython(),
		image:  "sandbox-python-ml:base",
	}
}

func (m *MLPython) Language() langtype.Language { return langtype.Python }
func (m *MLPython) DefaultImage() string         { return m.image }
func (m *MLPython) PackageManager() string       { return m.python.PackageManager() }

// Execute runs source with no preamble, for callers going through the
// plain Adapter interface. Callers that want the seed/verbose preamble
// and parsed telemetry should use ExecuteML instead.
func (m *MLPython) Execute(ctx context.Context, eng *engine.Engine, source string, ectx ExecContext) (*engine.ExecResult, error) {
	return m.python.Execute(ctx, eng, source, ectx)
}

// ExecuteML runs source with the ML preamble and returns parsed telemetry
// alongside the normal exec result.
func (m *MLPython) ExecuteML(ctx context.Context, eng *engine.Engine, source string, ectx ExecContext, opts MLOptions) (*MLExecResult, error) {
	wrapped := mlPreamble(opts) + source

	result, err := m.python.Execute(ctx, eng, wrapped, ectx)
	if err != nil {
		return nil, err
	}

	return &MLExecResult{
		ExecResult: result,
		Metrics:    parseMLMetrics(string(result.Stderr)),
	}, nil
}

func mlPreamble(opts MLOptions) string {
	var sb strings.Builder
	if opts.DeterministicSeed != nil {
		fmt.Fprintf(&sb, "import random\nrandom.seed(%d)\n", *opts.DeterministicSeed)
		sb.WriteString("try:\n\timport numpy as _np\n\t_np.random.seed(")
		fmt.Fprintf(&sb, "%d)\n", *opts.DeterministicSeed)
		sb.WriteString("except ImportError:\n\tpass\n")
	}
	if opts.VerboseLogging {
		sb.WriteString("import logging\nlogging.basicConfig(level=logging.DEBUG)\n")
	}
	return sb.String()
}

func parseMLMetrics(stderr string) MLMetrics {
	var m MLMetrics
	if match := peakMemoryPattern.FindStringSubmatch(stderr); match != nil {
		m.PeakMemoryMB, _ = strconv.ParseFloat(match[1], 64)
	}
	if match := modelLoadPattern.FindStringSubmatch(stderr); match != nil {
		m.ModelLoadTimeMs, _ = strconv.ParseFloat(match[1], 64)
	}
	if match := inferencePattern.FindStringSubmatch(stderr); match != nil {
		m.InferenceTimeMs, _ = strconv.ParseFloat(match[1], 64)
	}
	return m
}

// InstallPackages restricts installs to the curated ML allow-list before
// delegating to the base Python adapter's install protocol.
func (m *MLPython) InstallPackages(ctx context.Context, eng *engine.Engine, h engine.Handle, packages []string, timeout time.Duration) (InstallResult, error) {
	for _, pkg := range packages {
		name := strings.SplitN(pkg, "==", 2)[0]
		if !mlAllowedPackages[name] {
			return InstallResult{}, sandboxerr.NewSecurity(fmt.Sprintf("package %q is not on the ML allow-list", name), nil)
		}
	}
	return m.python.InstallPackages(ctx, eng, h, packages, timeout)
}

func (m *MLPython) BuildImageRecipe(packages []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FROM %s\n", m.image)
	if len(packages) > 0 {
		fmt.Fprintf(&sb, "RUN pip install --no-cache-dir %s\n", strings.Join(packages, " "))
	}
	return sb.String()
}

var _ Adapter = (*MLPython)(nil)
