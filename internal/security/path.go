package security

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// WorkspaceRoot is the fixed root under which every container-side path
// must resolve.
const WorkspaceRoot = "/workspace"

const maxPercentDecodeIterations = 3

// SanitizePath validates and normalizes a caller-supplied container-side
// path. It decodes percent-encoding up to three iterations (to defeat
// double/triple encoding such as %252e%252e), rejects traversal sequences
// in the decoded string, and requires the result to equal WorkspaceRoot or
// begin with WorkspaceRoot + "/". The traversal checks apply to the fully
// decoded string, not the original, so a caller cannot smuggle ".." past
// them by encoding it.
func SanitizePath(raw string) (string, error) {
	if strings.Contains(raw, "\x00") {
		return "", fmt.Errorf("path contains a null byte")
	}

	decoded := raw
	for i := 0; i < maxPercentDecodeIterations; i++ {
		next, err := url.QueryUnescape(decoded)
		if err != nil {
			// Not valid percent-encoding (or already fully decoded); stop.
			break
		}
		if next == decoded {
			break
		}
		decoded = next
	}

	if strings.Contains(decoded, "\x00") {
		return "", fmt.Errorf("decoded path contains a null byte")
	}

	for _, part := range strings.Split(decoded, "/") {
		switch part {
		case "..":
			return "", fmt.Errorf("path %q contains a traversal component", raw)
		case ".":
			return "", fmt.Errorf("path %q contains a lone '.' component", raw)
		}
	}

	clean := path.Clean(decoded)
	if !strings.HasPrefix(clean, "/") {
		clean = WorkspaceRoot + "/" + clean
	}
	clean = path.Clean(clean)

	if clean != WorkspaceRoot && !strings.HasPrefix(clean, WorkspaceRoot+"/") {
		return "", fmt.Errorf("path %q escapes workspace root %q", raw, WorkspaceRoot)
	}

	return clean, nil
}

// ValidateDeletePath additionally rejects deletion of the workspace root
// itself.
func ValidateDeletePath(raw string) (string, error) {
	clean, err := SanitizePath(raw)
	if err != nil {
		return "", err
	}
	if clean == WorkspaceRoot {
		return "", fmt.Errorf("cannot delete workspace root %q", WorkspaceRoot)
	}
	return clean, nil
}

// ValidateWritePath additionally rejects writing to the workspace root
// directory itself (writes must target a file under it).
func ValidateWritePath(raw string) (string, error) {
	clean, err := SanitizePath(raw)
	if err != nil {
		return "", err
	}
	if clean == WorkspaceRoot {
		return "", fmt.Errorf("cannot write to workspace root %q (it is a directory)", WorkspaceRoot)
	}
	return clean, nil
}

// hostSystemPrefixes are host directories that must never be bind-mounted
// into a sandbox container.
var hostSystemPrefixes = []string{
	"/etc", "/proc", "/sys", "/dev", "/var", "/usr", "/bin", "/sbin",
	"/lib", "/lib32", "/lib64", "/root", "/home", "/boot", "/opt", "/run",
	"/srv", "/mnt", "/media",
}

// EngineSocketPath is the well-known Docker-compatible engine socket; it
// must never be bind-mounted into a sandbox container.
const EngineSocketPath = "/var/run/docker.sock"

// containerMountRoots are the only container-side prefixes a volume mount
// may target.
var containerMountRoots = []string{WorkspaceRoot, "/data"}

// ValidateVolumeMount checks a host path / container path bind-mount pair
// against the system-directory denylist and the container-side mount-root
// allowlist.
func ValidateVolumeMount(hostPath, containerPath string) error {
	cleanHost := path.Clean(hostPath)
	if cleanHost == EngineSocketPath {
		return fmt.Errorf("mount of engine socket %q is not allowed", EngineSocketPath)
	}
	for _, prefix := range hostSystemPrefixes {
		if cleanHost == prefix || strings.HasPrefix(cleanHost, prefix+"/") {
			return fmt.Errorf("host path %q is under restricted system directory %q", hostPath, prefix)
		}
	}

	cleanContainer := path.Clean(containerPath)
	allowed := false
	for _, root := range containerMountRoots {
		if cleanContainer == root || strings.HasPrefix(cleanContainer, root+"/") {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("container path %q is not under an allowed mount root %v", containerPath, containerMountRoots)
	}

	return nil
}
