// Package security implements the stateless Security Gate: code pattern
// validation, package validation, path sanitization, volume-mount
// validation, and hardening-descriptor construction. Every validator here
// is pure and side-effect free; callers translate a non-nil error into a
// sandboxerr.SecurityError at the tool boundary.
package security

import (
	"fmt"
	"regexp"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

// patternRule pairs a compiled regex with the human-readable reason shown
// in the resulting error and audit entry.
type patternRule struct {
	pattern *regexp.Regexp
	reason  string
}

// codeBlocklists holds, per language, the advisory lexical denylist.
// These are pattern-based only; they complement rather than replace the
// kernel-level controls in the hardening descriptor.
var codeBlocklists = map[langtype.Language][]patternRule{
	langtype.Python: {
		{regexp.MustCompile(`\bimport\s+os\b`), "import of os"},
		{regexp.MustCompile(`\bimport\s+subprocess\b`), "import of subprocess"},
		{regexp.MustCompile(`\bimport\s+sys\b`), "import of sys"},
		{regexp.MustCompile(`\b__import__\s*\(`), "use of __import__"},
		{regexp.MustCompile(`\beval\s*\(`), "use of eval"},
		{regexp.MustCompile(`\bexec\s*\(`), "use of exec"},
		{regexp.MustCompile(`\bcompile\s*\(`), "use of compile"},
		{regexp.MustCompile(`open\s*\([^)]*['"]w['"]`), "file open in write mode"},
		{regexp.MustCompile(`open\s*\([^)]*['"]a['"]`), "file open in append mode"},
		{regexp.MustCompile(`\.system\s*\(`), "use of os.system"},
		{regexp.MustCompile(`\.popen\s*\(`), "use of os.popen"},
	},
	langtype.JavaScript: {
		{regexp.MustCompile(`require\s*\(\s*['"]child_process['"]`), "require of child_process"},
		{regexp.MustCompile(`require\s*\(\s*['"]fs['"]`), "require of fs"},
		{regexp.MustCompile(`\bimport\b[^;]*['"]child_process['"]`), "import of child_process"},
		{regexp.MustCompile(`\bimport\b[^;]*['"]fs['"]`), "import of fs"},
		{regexp.MustCompile(`\beval\s*\(`), "use of eval"},
		{regexp.MustCompile(`\bFunction\s*\(`), "use of Function constructor"},
		{regexp.MustCompile(`process\.exit\s*\(`), "use of process.exit"},
		{regexp.MustCompile(`process\.kill\s*\(`), "use of process.kill"},
	},
	langtype.Go: {
		{regexp.MustCompile(`"os/exec"`), "import of os/exec"},
		{regexp.MustCompile(`"syscall"`), "import of syscall"},
		{regexp.MustCompile(`"unsafe"`), "import of unsafe"},
		{regexp.MustCompile(`\bexec\.Command\s*\(`), "use of exec.Command"},
	},
	langtype.Rust: {
		{regexp.MustCompile(`use\s+std::process`), "use of std::process"},
		{regexp.MustCompile(`use\s+std::os`), "use of std::os"},
		{regexp.MustCompile(`Command::`), "use of Command::"},
		{regexp.MustCompile(`unsafe\s*\{`), "use of unsafe block"},
	},
	langtype.Bash: {
		{regexp.MustCompile(`rm\s+-rf\s+/`), "rm -rf /"},
		{regexp.MustCompile(`dd\s+if=`), "raw disk write via dd"},
		{regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&?\s*\}\s*;?\s*:`), "fork bomb"},
		{regexp.MustCompile(`mkfs\.\w+`), "filesystem format command"},
		{regexp.MustCompile(`curl\s+[^|]*\|\s*sh`), "curl piped into sh"},
		{regexp.MustCompile(`wget\s+[^|]*\|\s*sh`), "wget piped into sh"},
	},
}

func init() {
	// TypeScript shares JavaScript's import-surface concerns.
	codeBlocklists[langtype.TypeScript] = codeBlocklists[langtype.JavaScript]
}

// ValidateCode checks source against the per-language pattern blocklist.
// It returns a descriptive error naming the matched rule, or nil if the
// source is clean. The check is advisory only — complementing, not
// replacing, the syscall filter in the hardening descriptor.
func ValidateCode(lang langtype.Language, source string) error {
	rules, ok := codeBlocklists[lang]
	if !ok {
		return nil
	}
	for _, rule := range rules {
		if rule.pattern.MatchString(source) {
			return fmt.Errorf("dangerous pattern detected: %s", rule.reason)
		}
	}
	return nil
}
