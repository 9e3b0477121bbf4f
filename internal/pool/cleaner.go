package pool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
)

// cleanerTimeout bounds how long the cleaner script may run before the
// container is considered unresponsive and retired.
const cleanerTimeout = 10 * time.Second

// cleanerScript is the security-critical post-release scrub run before a
// container goes back into the pool. It wipes the workspace (including
// dotfiles), empties /tmp and /var/tmp, deletes shell/REPL history,
// package-manager caches, Python byte-code caches, and any SysV IPC
// segments owned by uid 1000, and recreates /workspace with mode 0755.
// It does not unset or filter any environment variables. It prints a
// count of surviving workspace entries so the
// caller can log an incomplete clean without retiring the container on
// that basis alone.
const cleanerScript = `
set -f
rm -rf /workspace/* /workspace/.[!.]* /workspace/..?* 2>/dev/null
rm -rf /tmp/* /tmp/.[!.]* 2>/dev/null
rm -rf /var/tmp/* /var/tmp/.[!.]* 2>/dev/null
rm -f /root/.bash_history /root/.python_history /root/.node_repl_history 2>/dev/null
rm -rf /root/.cache/pip /root/.npm /root/.cargo/registry/cache /root/.cache/go-build 2>/dev/null
find / -xdev -type d -name "__pycache__" -exec rm -rf {} + 2>/dev/null
find / -xdev -type f -name "*.pyc" -delete 2>/dev/null
ipcs -m 2>/dev/null | awk '$3 == 1000 {print $2}' | xargs -r -n1 ipcrm -m 2>/dev/null
ipcs -s 2>/dev/null | awk '$3 == 1000 {print $2}' | xargs -r -n1 ipcrm -s 2>/dev/null
ipcs -q 2>/dev/null | awk '$3 == 1000 {print $2}' | xargs -r -n1 ipcrm -q 2>/dev/null
mkdir -p /workspace
chmod 0755 /workspace
find /workspace -mindepth 1 | wc -l
`

// RunCleaner executes the cleaner script inside h and returns an error
// if the script itself fails to run or exits non-zero; a cleaner that
// errors retires the container. An incomplete clean (non-empty
// workspace after the scrub) is reported via the returned leftoverCount
// but is not itself an error.
func RunCleaner(ctx context.Context, eng *engine.Engine, h engine.Handle) (leftoverCount int, err error) {
	cleanCtx, cancel := context.WithTimeout(ctx, cleanerTimeout)
	defer cancel()

	result, err := eng.Exec(cleanCtx, h, engine.ExecOptions{
		Argv:    []string{"sh", "-c", cleanerScript},
		Timeout: cleanerTimeout,
	})
	if err != nil {
		return 0, fmt.Errorf("cleaner exec: %w", err)
	}
	if result.TimedOut {
		return 0, fmt.Errorf("cleaner timed out after %s", cleanerTimeout)
	}
	if result.ExitCode != 0 {
		return 0, fmt.Errorf("cleaner exited %d: %s", result.ExitCode, string(result.Stderr))
	}

	count, convErr := strconv.Atoi(strings.TrimSpace(string(result.Stdout)))
	if convErr != nil {
		return 0, fmt.Errorf("cleaner: parse leftover count from %q: %w", result.Stdout, convErr)
	}
	return count, nil
}
