package runtime

import (
	"fmt"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

// Registry resolves a language (and an optional ML variant flag for
// Python) to its Adapter. It is built once at startup and is read-only
// thereafter, so no locking is needed.
type Registry struct {
	byLanguage map[langtype.Language]Adapter
	mlPython   *MLPython
}

// NewRegistry builds the registry with the standard set of adapters.
func NewRegistry() *Registry {
	return &Registry{
		byLanguage: map[langtype.Language]Adapter{
			langtype.Python:     NewPython(),
			langtype.JavaScript: NewJavaScript(),
			langtype.TypeScript: NewTypeScript(),
			langtype.Go:         NewGo(),
			langtype.Rust:       NewRust(),
			langtype.Bash:       NewBash(),
		},
		mlPython: NewMLPython(),
	}
}

// Resolve returns the adapter for lang, or the ML-Python adapter when
// lang is Python and ml is true.
func (r *Registry) Resolve(lang langtype.Language, ml bool) (Adapter, error) {
	if ml {
		if lang != langtype.Python {
			return nil, fmt.Errorf("ml variant is only available for python, got %s", lang)
		}
		return r.mlPython, nil
	}

	adapter, ok := r.byLanguage[lang]
	if !ok {
		return nil, fmt.Errorf("no runtime adapter registered for language %q", lang)
	}
	return adapter, nil
}

// MLPython returns the ML-Python adapter directly, for callers that need
// ExecuteML's telemetry-bearing result rather than the plain Adapter
// interface.
func (r *Registry) MLPython() *MLPython {
	return r.mlPython
}

// Languages returns every language with a registered base adapter.
func (r *Registry) Languages() []langtype.Language {
	langs := make([]langtype.Language, 0, len(r.byLanguage))
	for l := range r.byLanguage {
		langs = append(langs, l)
	}
	return langs
}
