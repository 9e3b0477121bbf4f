package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

// versionSpecifiers are stripped from a package spec before validating the
// base package name, mirroring pip/npm/cargo specifier syntax.
var versionSpecifiers = []string{"==", ">=", "<=", "!=", "~=", "@"}

// blockedIdentifiers names base package tokens that must never be
// installed for a given language, because they shadow or are the standard
// library module the code validator already blocks importing directly.
var blockedIdentifiers = map[langtype.Language]map[string]bool{
	langtype.Python:     {"os": true, "subprocess": true, "sys": true},
	langtype.JavaScript:  {"child_process": true, "fs": true},
	langtype.TypeScript:  {"child_process": true, "fs": true},
	langtype.Go:          {"os/exec": true, "syscall": true, "unsafe": true},
	langtype.Rust:        {"std": true},
	langtype.Bash:        {},
}

// nameCharset is the allowed character class for a base package name, per
// language ecosystem. All are conservative supersets of the real registry
// naming rules.
var nameCharset = map[langtype.Language]*regexp.Regexp{
	langtype.Python:     regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`),
	langtype.JavaScript:  regexp.MustCompile(`^(@[A-Za-z0-9_.\-]+/)?[A-Za-z0-9_.\-]+$`),
	langtype.TypeScript:  regexp.MustCompile(`^(@[A-Za-z0-9_.\-]+/)?[A-Za-z0-9_.\-]+$`),
	langtype.Go:          regexp.MustCompile(`^[A-Za-z0-9_.\-/]+$`),
	langtype.Rust:        regexp.MustCompile(`^[A-Za-z0-9_\-]+$`),
	langtype.Bash:        regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`),
}

const maxPackageSpecLength = 200

// disallowedSubstrings catch shell metacharacters, remote refs, and local
// paths that have no business inside a package spec.
var disallowedSubstrings = []string{
	"git+", "://", "..", ";", "|", "&", "$", "`", "\n", "\r",
}

// ValidatePackages checks a (language, package-spec-list) pair against the
// package validator rules for that language. It returns the first
// violation found, or nil if every spec is acceptable.
func ValidatePackages(lang langtype.Language, specs []string) error {
	charset, ok := nameCharset[lang]
	if !ok {
		return fmt.Errorf("no package validator registered for language %q", lang)
	}
	blocked := blockedIdentifiers[lang]

	for _, spec := range specs {
		if len(spec) > maxPackageSpecLength {
			return fmt.Errorf("package spec %q exceeds maximum length %d", spec, maxPackageSpecLength)
		}
		if strings.Contains(spec, "\x00") {
			return fmt.Errorf("package spec %q contains a null byte", spec)
		}
		for _, bad := range disallowedSubstrings {
			if strings.Contains(spec, bad) {
				return fmt.Errorf("package spec %q contains disallowed sequence %q", spec, bad)
			}
		}
		if strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
			return fmt.Errorf("package spec %q looks like a local path", spec)
		}

		base := stripVersionSpecifier(spec)
		base = stripExtras(base)

		if blocked[strings.ToLower(base)] {
			return fmt.Errorf("package %q is a blocked identifier for %s", base, lang)
		}

		if !charset.MatchString(base) {
			return fmt.Errorf("package name %q contains characters not allowed for %s", base, lang)
		}
	}
	return nil
}

// stripVersionSpecifier removes a trailing version constraint such as
// "requests==2.31.0" or "left-pad@1.3.0", returning the bare base name.
// A leading "@" opens an npm scope ("@angular/core@16.0.0") and is kept.
func stripVersionSpecifier(spec string) string {
	cut := len(spec)
	for _, sep := range versionSpecifiers {
		from := 0
		if sep == "@" && strings.HasPrefix(spec, "@") {
			from = 1
		}
		if idx := strings.Index(spec[from:], sep); idx >= 0 && from+idx < cut {
			cut = from + idx
		}
	}
	return spec[:cut]
}

// stripExtras removes a trailing "[extras]" suffix (e.g. "requests[socks]").
func stripExtras(spec string) string {
	if idx := strings.IndexByte(spec, '['); idx >= 0 {
		return spec[:idx]
	}
	return spec
}
