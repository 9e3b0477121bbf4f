package security

import (
	"testing"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

func TestValidateCodeBlocksDangerousPatterns(t *testing.T) {
	cases := []struct {
		lang langtype.Language
		src  string
	}{
		{langtype.Python, "import os\nprint(os.listdir('/'))"},
		{langtype.Python, "eval('1+1')"},
		{langtype.JavaScript, "require('child_process').exec('ls')"},
		{langtype.Go, `import "os/exec"`},
		{langtype.Rust, "use std::process;"},
		{langtype.Bash, "rm -rf /"},
	}
	for _, c := range cases {
		if err := ValidateCode(c.lang, c.src); err == nil {
			t.Errorf("ValidateCode(%s, %q) = nil, want error", c.lang, c.src)
		}
	}
}

func TestValidateCodeAllowsCleanSource(t *testing.T) {
	if err := ValidateCode(langtype.Python, "print(2 + 2)"); err != nil {
		t.Fatalf("ValidateCode() = %v, want nil", err)
	}
}

func TestValidatePackagesRejectsBlockedIdentifiers(t *testing.T) {
	if err := ValidatePackages(langtype.Python, []string{"os"}); err == nil {
		t.Fatal("expected error for blocked identifier os")
	}
}

func TestValidatePackagesRejectsShellInjection(t *testing.T) {
	if err := ValidatePackages(langtype.Python, []string{"requests; rm -rf /"}); err == nil {
		t.Fatal("expected error for shell metacharacters")
	}
}

func TestValidatePackagesRejectsGitURL(t *testing.T) {
	if err := ValidatePackages(langtype.JavaScript, []string{"git+https://example.com/pkg.git"}); err == nil {
		t.Fatal("expected error for git+ URL")
	}
}

func TestValidatePackagesStripsVersionSpecifiers(t *testing.T) {
	if err := ValidatePackages(langtype.Python, []string{"requests==2.31.0"}); err != nil {
		t.Fatalf("ValidatePackages() = %v, want nil", err)
	}
}

func TestValidatePackagesAllowsScopedNPMPackage(t *testing.T) {
	if err := ValidatePackages(langtype.JavaScript, []string{"@angular/core@16.0.0"}); err != nil {
		t.Fatalf("ValidatePackages() = %v, want nil", err)
	}
}

func TestSanitizePathRejectsTraversal(t *testing.T) {
	cases := []string{"..", "/etc/passwd", "%2e%2e/x", "%252e%252e/x"}
	for _, raw := range cases {
		if _, err := SanitizePath(raw); err == nil {
			t.Errorf("SanitizePath(%q) = nil, want error", raw)
		}
	}
}

func TestSanitizePathAcceptsWorkspaceRelative(t *testing.T) {
	got, err := SanitizePath("script.py")
	if err != nil {
		t.Fatalf("SanitizePath() = %v, want nil", err)
	}
	want := WorkspaceRoot + "/script.py"
	if got != want {
		t.Fatalf("SanitizePath() = %q, want %q", got, want)
	}
}

func TestValidateDeletePathRejectsRoot(t *testing.T) {
	if _, err := ValidateDeletePath(WorkspaceRoot); err == nil {
		t.Fatal("expected error deleting workspace root")
	}
}

func TestValidateVolumeMountRejectsDockerSocket(t *testing.T) {
	if err := ValidateVolumeMount(EngineSocketPath, "/workspace"); err == nil {
		t.Fatal("expected error mounting docker socket")
	}
}

func TestValidateVolumeMountRejectsSystemDir(t *testing.T) {
	if err := ValidateVolumeMount("/etc/passwd", "/workspace/passwd"); err == nil {
		t.Fatal("expected error mounting /etc")
	}
}

func TestValidateVolumeMountRejectsNonWorkspaceContainerPath(t *testing.T) {
	if err := ValidateVolumeMount("/home/user/project", "/root"); err == nil {
		t.Fatal("expected error for container path outside /workspace or /data")
	}
}

func TestBuildDescriptorAppliesPerLanguageExtras(t *testing.T) {
	d := BuildDescriptor(LevelStrict, langtype.Python, nil)
	if len(d.Syscalls.ExtraAllow) == 0 {
		t.Fatal("expected SysV IPC extras for python")
	}
	if len(d.Syscalls.Deny) == 0 {
		t.Fatal("expected non-empty denylist")
	}
}

func TestScrubEnvironmentDropsBlockedAndUnknown(t *testing.T) {
	in := map[string]string{
		"PATH":       "/usr/bin",
		"LD_PRELOAD": "/evil.so",
		"SOME_SECRET": "x",
	}
	out := ScrubEnvironment(in)
	if _, ok := out["LD_PRELOAD"]; ok {
		t.Fatal("LD_PRELOAD should be scrubbed")
	}
	if _, ok := out["SOME_SECRET"]; ok {
		t.Fatal("non-allowlisted var should be scrubbed")
	}
	if out["PATH"] != "/usr/bin" {
		t.Fatal("PATH should pass through")
	}
}
