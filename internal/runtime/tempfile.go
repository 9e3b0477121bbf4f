package runtime

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/security"
)

// tempName builds a temp-file name under the workspace root with an
// embedded timestamp and random suffix, e.g.
// "/workspace/.exec-20260806120000-a1b2c3d4.ts". Adapters that need a
// scratch file (TypeScript, Go, Rust) use this instead of /tmp, because
// /tmp may be mounted noexec in strict mode.
func tempName(ext string) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%s/.exec-%s-%s.%s",
		security.WorkspaceRoot, time.Now().UTC().Format("20060102150405"), hex.EncodeToString(suffix), ext)
}

// writeTempSource stages source at a fresh temp path inside the
// container.
func writeTempSource(ctx context.Context, eng *engine.Engine, h engine.Handle, ext, source string) (string, error) {
	path := tempName(ext)
	if err := eng.PutFile(ctx, h, path, []byte(source)); err != nil {
		return "", fmt.Errorf("write temp source %s: %w", path, err)
	}
	return path, nil
}

// cleanupTemp best-effort removes a temp file; failures are swallowed, not
// propagated, since cleanup is not on the critical path of the caller's
// result.
func cleanupTemp(ctx context.Context, eng *engine.Engine, h engine.Handle, path string) {
	_, _ = eng.Exec(ctx, h, engine.ExecOptions{
		Argv:    []string{"rm", "-f", path},
		Timeout: 5 * time.Second,
	})
}
