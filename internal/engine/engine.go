// Package engine is the Engine Adapter: a narrow abstraction over a
// Docker-compatible container runtime. It is the only package in the
// kernel that imports the Docker SDK; every other component talks to a
// container through this interface.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/docker/docker/client"
)

// Handle identifies a container by its engine-assigned id.
type Handle string

// Engine wraps a Docker-compatible client with the narrow surface the
// sandbox kernel needs: create/start/stop/pause/unpause/remove, exec with
// demuxed streams, tar-based file put/get, image commit/list/remove, and
// stats.
type Engine struct {
	client *client.Client
	logger *log.Logger

	maxStdoutBytes int
	maxStderrBytes int
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the default stdout logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithOutputCaps overrides the default 10MiB stdout / 5MiB stderr caps.
func WithOutputCaps(stdoutBytes, stderrBytes int) Option {
	return func(e *Engine) {
		e.maxStdoutBytes = stdoutBytes
		e.maxStderrBytes = stderrBytes
	}
}

const (
	defaultMaxStdoutBytes = 10 * 1024 * 1024
	defaultMaxStderrBytes = 5 * 1024 * 1024
)

// New connects to the local Docker-compatible engine using the standard
// environment variables (DOCKER_HOST, DOCKER_CERT_PATH, ...), negotiating
// the API version against whatever daemon is listening.
func New(opts ...Option) (*Engine, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	e := &Engine{
		client:         dockerClient,
		logger:         log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lmsgprefix),
		maxStdoutBytes: defaultMaxStdoutBytes,
		maxStderrBytes: defaultMaxStderrBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Ping checks connectivity to the engine daemon.
func (e *Engine) Ping(ctx context.Context) bool {
	_, err := e.client.Ping(ctx)
	if err != nil {
		e.logger.Printf("ping failed: %v", err)
		return false
	}
	return true
}

// Close releases the underlying client's resources.
func (e *Engine) Close() error {
	return e.client.Close()
}

// isNotRunningOrNotFound collapses engine responses for a container that
// is already stopped/removed, so Start/Stop/Remove behave idempotently.
func isNotRunningOrNotFound(err error) bool {
	if err == nil {
		return false
	}
	if client.IsErrNotFound(err) {
		return true
	}
	msg := err.Error()
	for _, sub := range []string{"is not running", "already started", "already paused", "is not paused", "is already stopped"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
