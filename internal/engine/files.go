package engine

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/docker/docker/api/types/container"
)

// PutFile writes data to path inside the container, wrapping it in a
// single-entry tar stream as the engine's CopyToContainer API requires.
func (e *Engine) PutFile(ctx context.Context, h Handle, containerPath string, data []byte) error {
	dir := path.Dir(containerPath)
	name := path.Base(containerPath)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write tar payload: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}

	if err := e.client.CopyToContainer(ctx, string(h), dir, &buf, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copy to container: %w", err)
	}
	return nil
}

// GetFile reads the contents of a single file from the container via a
// tar stream.
func (e *Engine) GetFile(ctx context.Context, h Handle, containerPath string) ([]byte, error) {
	reader, _, err := e.client.CopyFromContainer(ctx, string(h), containerPath)
	if err != nil {
		return nil, fmt.Errorf("copy from container: %w", err)
	}
	defer reader.Close()

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("file %s not found in tar stream", containerPath)
		}
		if err != nil {
			return nil, fmt.Errorf("read tar header: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read tar payload: %w", err)
		}
		return data, nil
	}
}
