package cache

import (
	"testing"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

func TestKeyIsOrderIndependent(t *testing.T) {
	a := Key(langtype.Python, []string{"numpy", "pandas"})
	b := Key(langtype.Python, []string{"pandas", "numpy"})

	if a != b {
		t.Errorf("Key should be order-independent: %q != %q", a, b)
	}
}

func TestKeyDiffersByLanguage(t *testing.T) {
	a := Key(langtype.Python, []string{"left-pad"})
	b := Key(langtype.JavaScript, []string{"left-pad"})

	if a == b {
		t.Error("Key should differ across languages for the same package name")
	}
}

func TestTagUsesFirst12HexChars(t *testing.T) {
	key := Key(langtype.Go, []string{"golang.org/x/time"})
	tag := Tag(langtype.Go, key)

	want := "sandbox-cache-go:" + key[:12]
	if tag != want {
		t.Errorf("Tag() = %q, want %q", tag, want)
	}
}

func TestHitRateZeroWhenNoRequests(t *testing.T) {
	s := Stats{}
	if s.HitRate() != 0 {
		t.Errorf("HitRate() = %v, want 0", s.HitRate())
	}
}

func TestHitRateComputation(t *testing.T) {
	s := Stats{Hits: 3, Misses: 1}
	if got := s.HitRate(); got != 0.75 {
		t.Errorf("HitRate() = %v, want 0.75", got)
	}
}

func TestHasCacheTagRecognizesPrefix(t *testing.T) {
	if !hasCacheTag([]string{"sandbox-cache-python:abc123"}) {
		t.Error("expected sandbox-cache-python:abc123 to be recognized as a cache tag")
	}
	if hasCacheTag([]string{"ubuntu:22.04"}) {
		t.Error("expected ubuntu:22.04 not to be recognized as a cache tag")
	}
}

func TestHasCacheTagDoesNotMatchBaseImages(t *testing.T) {
	if hasCacheTag([]string{"sandbox-python:base"}) {
		t.Error("expected sandbox-python:base (a runtime base image) not to be recognized as a cache tag")
	}
}

func TestLangFromTagsExtractsLanguage(t *testing.T) {
	if got := langFromTags([]string{"sandbox-cache-rust:deadbeefcafe"}); got != "rust" {
		t.Errorf("langFromTags() = %q, want rust", got)
	}
}
