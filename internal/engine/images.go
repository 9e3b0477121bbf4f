package engine

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
)

// ImageSummary is the subset of engine image metadata the cache needs.
type ImageSummary struct {
	ID      string
	Tags    []string
	SizeMB  float64
	Created int64
}

// CommitImage commits the container identified by h to a new image under
// tag.
func (e *Engine) CommitImage(ctx context.Context, h Handle, tag string) error {
	_, err := e.client.ContainerCommit(ctx, string(h), container.CommitOptions{Reference: tag})
	if err != nil {
		return fmt.Errorf("commit container %s to %s: %w", h, tag, err)
	}
	return nil
}

// ListImages lists every image known to the engine.
func (e *Engine) ListImages(ctx context.Context) ([]ImageSummary, error) {
	summaries, err := e.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	out := make([]ImageSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, ImageSummary{
			ID:      s.ID,
			Tags:    s.RepoTags,
			SizeMB:  float64(s.Size) / (1024 * 1024),
			Created: s.Created,
		})
	}
	return out, nil
}

// HasTag reports whether any listed image carries the given tag.
func HasTag(images []ImageSummary, tag string) bool {
	for _, img := range images {
		for _, t := range img.Tags {
			if t == tag {
				return true
			}
		}
	}
	return false
}

// RemoveImage removes an image by id or tag.
func (e *Engine) RemoveImage(ctx context.Context, idOrTag string, force bool) error {
	_, err := e.client.ImageRemove(ctx, idOrTag, image.RemoveOptions{Force: force})
	if err != nil {
		if isNotRunningOrNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove image %s: %w", idOrTag, err)
	}
	return nil
}
