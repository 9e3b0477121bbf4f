package runtime

import (
	"strings"
	"testing"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

func TestWrapGoAddsPackageMainAndImports(t *testing.T) {
	wrapped := wrapGo(`fmt.Println("hi")`)

	if !strings.Contains(wrapped, "package main") {
		t.Errorf("wrapped source missing package main:\n%s", wrapped)
	}
	if !strings.Contains(wrapped, `"fmt"`) {
		t.Errorf("wrapped source missing auto-detected fmt import:\n%s", wrapped)
	}
	if !strings.Contains(wrapped, "func main() {") {
		t.Errorf("wrapped source missing func main:\n%s", wrapped)
	}
}

func TestWrapGoLeavesCompleteProgramAlone(t *testing.T) {
	source := "package main\n\nfunc main() {}\n"
	wrapped := wrapGo(source)

	if wrapped != source {
		t.Errorf("wrapGo modified a complete program: %q", wrapped)
	}
}

func TestWrapGoAddsPackageMainWhenOnlyMainFuncPresent(t *testing.T) {
	source := "func main() {\n\tprintln(\"hi\")\n}\n"
	wrapped := wrapGo(source)

	if !strings.HasPrefix(wrapped, "package main") {
		t.Errorf("expected package main prefix, got: %q", wrapped)
	}
}

func TestWrapRustWrapsBareFragment(t *testing.T) {
	wrapped := wrapRust(`println!("hi");`)

	if !strings.Contains(wrapped, "fn main() {") {
		t.Errorf("wrapped source missing fn main:\n%s", wrapped)
	}
}

func TestWrapRustLeavesCompleteProgramAlone(t *testing.T) {
	source := "fn main() {\n    println!(\"hi\");\n}\n"
	wrapped := wrapRust(source)

	if wrapped != source {
		t.Errorf("wrapRust modified a complete program: %q", wrapped)
	}
}

func TestMLPreambleIncludesSeedWhenSet(t *testing.T) {
	seed := int64(42)
	preamble := mlPreamble(MLOptions{DeterministicSeed: &seed})

	if !strings.Contains(preamble, "random.seed(42)") {
		t.Errorf("preamble missing seed setup:\n%s", preamble)
	}
	if !strings.Contains(preamble, "_np.random.seed(42)") {
		t.Errorf("preamble missing numpy seed setup:\n%s", preamble)
	}
}

func TestMLPreambleEmptyWithoutOptions(t *testing.T) {
	if got := mlPreamble(MLOptions{}); got != "" {
		t.Errorf("expected empty preamble, got %q", got)
	}
}

func TestMLPreambleIncludesVerboseLogging(t *testing.T) {
	preamble := mlPreamble(MLOptions{VerboseLogging: true})
	if !strings.Contains(preamble, "logging.basicConfig") {
		t.Errorf("preamble missing verbose logging setup:\n%s", preamble)
	}
}

func TestParseMLMetricsExtractsAllTokens(t *testing.T) {
	stderr := "loading model...\nPEAK_MEMORY_MB=512.5\nMODEL_LOAD_MS=230\nsome other line\nINFERENCE_MS=12.75\n"
	metrics := parseMLMetrics(stderr)

	if metrics.PeakMemoryMB != 512.5 {
		t.Errorf("PeakMemoryMB = %v, want 512.5", metrics.PeakMemoryMB)
	}
	if metrics.ModelLoadTimeMs != 230 {
		t.Errorf("ModelLoadTimeMs = %v, want 230", metrics.ModelLoadTimeMs)
	}
	if metrics.InferenceTimeMs != 12.75 {
		t.Errorf("InferenceTimeMs = %v, want 12.75", metrics.InferenceTimeMs)
	}
}

func TestParseMLMetricsZeroWhenAbsent(t *testing.T) {
	metrics := parseMLMetrics("no telemetry here\n")
	if metrics != (MLMetrics{}) {
		t.Errorf("expected zero metrics, got %+v", metrics)
	}
}

func TestMLPythonInstallPackagesRejectsNonAllowlisted(t *testing.T) {
	ml := NewMLPython()
	_, err := ml.InstallPackages(nil, nil, "", []string{"requests"}, 0)
	if err == nil {
		t.Fatal("expected error for non-allowlisted package, got nil")
	}
}

func TestMLPythonDefaultImageDiffersFromBasePython(t *testing.T) {
	ml := NewMLPython()
	base := NewPython()

	if ml.DefaultImage() == base.DefaultImage() {
		t.Errorf("ML-Python should use a distinct image, both are %q", ml.DefaultImage())
	}
}

func TestRegistryResolvesBaseLanguages(t *testing.T) {
	reg := NewRegistry()

	for _, lang := range []langtype.Language{langtype.Python, langtype.JavaScript, langtype.TypeScript, langtype.Go, langtype.Rust, langtype.Bash} {
		adapter, err := reg.Resolve(lang, false)
		if err != nil {
			t.Errorf("Resolve(%s, false) returned error: %v", lang, err)
			continue
		}
		if adapter.Language() != lang {
			t.Errorf("Resolve(%s, false).Language() = %s", lang, adapter.Language())
		}
	}
}

func TestRegistryResolvesMLPythonOnlyForPython(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Resolve(langtype.Go, true); err == nil {
		t.Error("expected error resolving ML variant for go, got nil")
	}

	adapter, err := reg.Resolve(langtype.Python, true)
	if err != nil {
		t.Fatalf("Resolve(python, true) returned error: %v", err)
	}
	if adapter.DefaultImage() != reg.MLPython().DefaultImage() {
		t.Error("Resolve(python, true) did not return the ML-Python adapter")
	}
}
