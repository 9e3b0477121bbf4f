// Package cache implements the Package Cache: image-backed memoization
// of package installs keyed by language and the sorted package set, so
// a repeated install skips the runtime adapter entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/engine"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/runtime"
)

// cacheTagPrefix distinguishes cache-managed images from any other
// image present in the engine, notably the "sandbox-<lang>:base" images
// the runtime adapters and session store create containers from.
const cacheTagPrefix = "sandbox-cache-"

// Result is the outcome of an install-through-cache call.
type Result struct {
	Success  bool
	Cached   bool
	Packages []string
	Errors   []string
}

// Stats summarizes cache effectiveness.
type Stats struct {
	TotalTaggedImages int
	Hits              int
	Misses            int
	CacheBytes        int64
}

// HitRate returns hits/(hits+misses), or 0 if nothing has been recorded.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache commits a container as a tagged image the first time a package
// set is installed for a language, and short-circuits the runtime
// adapter on every subsequent identical request.
type Cache struct {
	mu   sync.Mutex
	eng  *engine.Engine
	hits int
	miss int
}

// New builds a Cache bound to eng.
func New(eng *engine.Engine) *Cache {
	return &Cache{eng: eng}
}

// Key computes sha256(language || json(sorted(packages))) as hex.
func Key(lang langtype.Language, packages []string) string {
	sorted := append([]string{}, packages...)
	sort.Strings(sorted)

	payload, _ := json.Marshal(sorted)
	h := sha256.New()
	h.Write([]byte(lang))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Tag derives the image tag for a given language and cache key.
func Tag(lang langtype.Language, key string) string {
	prefix := key
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	return fmt.Sprintf("%s%s:%s", cacheTagPrefix, lang, prefix)
}

// Install looks up the image tag for (lang, packages); on a hit it
// records the hit and returns without touching h. On a miss it
// delegates the install to doInstall, and on success commits h under the
// derived tag so future requests for the same package set hit.
func (c *Cache) Install(ctx context.Context, h engine.Handle, lang langtype.Language, packages []string, doInstall func() (runtime.InstallResult, error)) (Result, error) {
	key := Key(lang, packages)
	tag := Tag(lang, key)

	images, err := c.eng.ListImages(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("cache: list images: %w", err)
	}
	if engine.HasTag(images, tag) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return Result{Success: true, Cached: true, Packages: packages}, nil
	}

	c.mu.Lock()
	c.miss++
	c.mu.Unlock()

	installResult, err := doInstall()
	if err != nil {
		return Result{}, err
	}
	if !installResult.Success {
		return Result{Success: false, Cached: false, Errors: installResult.Errors}, nil
	}

	if err := c.eng.CommitImage(ctx, h, tag); err != nil {
		return Result{}, fmt.Errorf("cache: commit image %s: %w", tag, err)
	}

	return Result{Success: true, Cached: false, Packages: installResult.InstalledPackages}, nil
}

// Stats reports hit/miss counters and the current tagged-image count.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	images, err := c.eng.ListImages(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: list images: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Hits: c.hits, Misses: c.miss}
	for _, img := range images {
		if hasCacheTag(img.Tags) {
			stats.TotalTaggedImages++
			stats.CacheBytes += int64(img.SizeMB * 1024 * 1024)
		}
	}
	return stats, nil
}

// Prune keeps the keepPerLanguage most recently created cache images per
// language and destroys the rest.
func (c *Cache) Prune(ctx context.Context, keepPerLanguage int) error {
	images, err := c.eng.ListImages(ctx)
	if err != nil {
		return fmt.Errorf("cache: list images: %w", err)
	}

	byLang := map[string][]engine.ImageSummary{}
	for _, img := range images {
		if !hasCacheTag(img.Tags) {
			continue
		}
		lang := langFromTags(img.Tags)
		byLang[lang] = append(byLang[lang], img)
	}

	var lastErr error
	for _, imgs := range byLang {
		sort.Slice(imgs, func(i, j int) bool { return imgs[i].Created > imgs[j].Created })
		if len(imgs) <= keepPerLanguage {
			continue
		}
		for _, stale := range imgs[keepPerLanguage:] {
			if err := c.eng.RemoveImage(ctx, stale.ID, true); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// Clear removes every image whose tag bears the cache prefix. A full
// clear is atomic per-image but not across images: a failure removing
// one image does not prevent attempts on the rest.
func (c *Cache) Clear(ctx context.Context) error {
	images, err := c.eng.ListImages(ctx)
	if err != nil {
		return fmt.Errorf("cache: list images: %w", err)
	}

	var lastErr error
	for _, img := range images {
		if !hasCacheTag(img.Tags) {
			continue
		}
		if err := c.eng.RemoveImage(ctx, img.ID, true); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func hasCacheTag(tags []string) bool {
	for _, t := range tags {
		if strings.HasPrefix(t, cacheTagPrefix) {
			return true
		}
	}
	return false
}

func langFromTags(tags []string) string {
	for _, t := range tags {
		if !strings.HasPrefix(t, cacheTagPrefix) {
			continue
		}
		rest := strings.TrimPrefix(t, cacheTagPrefix)
		if idx := strings.Index(rest, ":"); idx >= 0 {
			return rest[:idx]
		}
	}
	return ""
}
