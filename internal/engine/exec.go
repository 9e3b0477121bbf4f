package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// ExecOptions configures a single exec call.
type ExecOptions struct {
	Argv    []string
	Timeout time.Duration
	Env     map[string]string
	Stdin   []byte
	Cwd     string
}

// ExecResult is the outcome of an exec call.
type ExecResult struct {
	Stdout     []byte
	Stderr     []byte
	ExitCode   int
	Duration   time.Duration
	TimedOut   bool
	Truncated  bool
}

const truncationMarker = "\n...[output truncated]\n"

// Exec runs argv inside the container identified by h, demuxing stdout and
// stderr from the engine's multiplexed stream and capping each to the
// Engine's configured maximum (with a truncation marker appended when the
// cap is hit). The timeout is enforced by closing the exec stream and
// reporting TimedOut when the deadline elapses before completion.
func (e *Engine) Exec(ctx context.Context, h Handle, opts ExecOptions) (*ExecResult, error) {
	execCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	envSlice := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	execCfg := container.ExecOptions{
		Cmd:          opts.Argv,
		Env:          envSlice,
		WorkingDir:   opts.Cwd,
		AttachStdin:  len(opts.Stdin) > 0,
		AttachStdout: true,
		AttachStderr: true,
	}

	created, err := e.client.ContainerExecCreate(execCtx, string(h), execCfg)
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	attach, err := e.client.ContainerExecAttach(execCtx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attach.Close()

	if len(opts.Stdin) > 0 {
		go func() {
			attach.Conn.Write(opts.Stdin)
			attach.CloseWrite()
		}()
	}

	start := time.Now()

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutCapped := newCappedWriter(&stdoutBuf, e.maxStdoutBytes)
	stderrCapped := newCappedWriter(&stderrBuf, e.maxStderrBytes)

	demuxDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(stdoutCapped, stderrCapped, attach.Reader)
		demuxDone <- copyErr
	}()

	result := &ExecResult{}

	select {
	case <-execCtx.Done():
		attach.Close()
		e.client.ContainerExecInspect(context.Background(), created.ID) //nolint:errcheck
		result.TimedOut = true
		result.Duration = time.Since(start)
		result.Stdout = finalize(stdoutCapped)
		result.Stderr = finalize(stderrCapped)
		result.Truncated = stdoutCapped.truncated || stderrCapped.truncated
		result.ExitCode = -1
		return result, nil
	case demuxErr := <-demuxDone:
		if demuxErr != nil && demuxErr != io.EOF {
			return nil, fmt.Errorf("demux exec stream: %w", demuxErr)
		}
	}

	inspect, err := e.client.ContainerExecInspect(execCtx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec: %w", err)
	}

	result.Duration = time.Since(start)
	result.Stdout = finalize(stdoutCapped)
	result.Stderr = finalize(stderrCapped)
	result.Truncated = stdoutCapped.truncated || stderrCapped.truncated
	result.ExitCode = inspect.ExitCode
	return result, nil
}

// cappedWriter caps the number of bytes written to the underlying buffer,
// recording whether the cap was hit so a truncation marker can be
// appended by finalize.
type cappedWriter struct {
	buf       *bytes.Buffer
	max       int
	written   int
	truncated bool
}

func newCappedWriter(buf *bytes.Buffer, max int) *cappedWriter {
	return &cappedWriter{buf: buf, max: max}
}

func (c *cappedWriter) Write(p []byte) (int, error) {
	if c.written >= c.max {
		c.truncated = true
		return len(p), nil
	}
	remaining := c.max - c.written
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.written = c.max
		c.truncated = true
		return len(p), nil
	}
	n, err := c.buf.Write(p)
	c.written += n
	return len(p), err
}

func finalize(c *cappedWriter) []byte {
	if !c.truncated {
		return c.buf.Bytes()
	}
	return append(c.buf.Bytes(), []byte(truncationMarker)...)
}
