package security

import "strings"

// envAllowlist names environment variables that are safe to pass through
// into a sandboxed container.
var envAllowlist = map[string]bool{
	"PATH": true, "LANG": true, "LANGUAGE": true, "LC_ALL": true,
	"TERM": true, "HOME": true, "PYTHONPATH": true, "NODE_ENV": true,
	"GOPATH": true, "GOROOT": true, "CARGO_HOME": true, "RUSTUP_HOME": true,
}

// envBlocklist names variables that must never be passed through, even if
// a caller tries to smuggle them in via the allowlist (belt-and-suspenders).
var envBlocklist = map[string]bool{
	"LD_PRELOAD": true, "LD_LIBRARY_PATH": true, "DOCKER_HOST": true,
	"KUBECONFIG": true, "AWS_ACCESS_KEY_ID": true, "AWS_SECRET_ACCESS_KEY": true,
	"GOOGLE_APPLICATION_CREDENTIALS": true,
}

// ScrubEnvironment filters a caller-supplied environment map down to the
// allowlisted, non-blocklisted subset. Non-allowlisted keys are dropped
// silently; the caller's container never sees them.
func ScrubEnvironment(env map[string]string) map[string]string {
	scrubbed := make(map[string]string, len(env))
	for key, val := range env {
		k := strings.ToUpper(key)
		if envBlocklist[k] {
			continue
		}
		if envAllowlist[k] {
			scrubbed[key] = val
		}
	}
	return scrubbed
}
