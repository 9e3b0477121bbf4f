package engine

import (
	"context"
	"fmt"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/security"
	"github.com/docker/docker/api/types/container"
)

// Mount describes a single bind mount, already validated by the Security
// Gate's volume-mount validator.
type Mount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// CreateSpec describes the container to create.
type CreateSpec struct {
	Image       string
	Language    langtype.Language
	Env         map[string]string
	Binds       []Mount
	GPU         bool
	NetworkMode string // defaults to "none" (isolated) when empty
	Hardening   security.Descriptor
}

// CreateContainer creates, but does not start, a container.
func (e *Engine) CreateContainer(ctx context.Context, spec CreateSpec) (Handle, error) {
	envSlice := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	cfg := &container.Config{
		Image:      spec.Image,
		Env:        envSlice,
		WorkingDir: security.WorkspaceRoot,
		User:       fmt.Sprintf("%d:%d", spec.Hardening.RunAsUID, spec.Hardening.RunAsGID),
		Tty:        false,
	}

	hostCfg := applyHardening(spec)

	resp, err := e.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	return Handle(resp.ID), nil
}

// Start starts a container. Already-started is collapsed to success.
func (e *Engine) Start(ctx context.Context, h Handle) error {
	if err := e.client.ContainerStart(ctx, string(h), container.StartOptions{}); err != nil {
		if isNotRunningOrNotFound(err) {
			return nil
		}
		return fmt.Errorf("start container %s: %w", h, err)
	}
	return nil
}

// Stop stops a container. Not-running is collapsed to success.
func (e *Engine) Stop(ctx context.Context, h Handle) error {
	if err := e.client.ContainerStop(ctx, string(h), container.StopOptions{}); err != nil {
		if isNotRunningOrNotFound(err) {
			return nil
		}
		return fmt.Errorf("stop container %s: %w", h, err)
	}
	return nil
}

// Pause pauses a container. Already-paused is collapsed to success.
func (e *Engine) Pause(ctx context.Context, h Handle) error {
	if err := e.client.ContainerPause(ctx, string(h)); err != nil {
		if isNotRunningOrNotFound(err) {
			return nil
		}
		return fmt.Errorf("pause container %s: %w", h, err)
	}
	return nil
}

// Unpause resumes a paused container. Not-paused is collapsed to success.
func (e *Engine) Unpause(ctx context.Context, h Handle) error {
	if err := e.client.ContainerUnpause(ctx, string(h)); err != nil {
		if isNotRunningOrNotFound(err) {
			return nil
		}
		return fmt.Errorf("unpause container %s: %w", h, err)
	}
	return nil
}

// Remove removes a container. Not-found is collapsed to success.
func (e *Engine) Remove(ctx context.Context, h Handle, force bool) error {
	if err := e.client.ContainerRemove(ctx, string(h), container.RemoveOptions{Force: force}); err != nil {
		if isNotRunningOrNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove container %s: %w", h, err)
	}
	return nil
}

// applyHardening translates a hardening descriptor and the caller's bind
// mounts into a Docker HostConfig.
func applyHardening(spec CreateSpec) *container.HostConfig {
	d := spec.Hardening

	networkMode := spec.NetworkMode
	if networkMode == "" {
		networkMode = "none"
	}

	binds := make([]string, 0, len(spec.Binds))
	for _, m := range spec.Binds {
		entry := m.HostPath + ":" + m.ContainerPath
		if m.ReadOnly {
			entry += ":ro"
		}
		binds = append(binds, entry)
	}

	capDrop := []string{}
	capAdd := []string{}
	if d.Capabilities.DropAll {
		capDrop = append(capDrop, "ALL")
		capAdd = append(capAdd, d.Capabilities.ReAdd...)
	}

	tmpfs := map[string]string{}
	if d.ReadOnlyRootFS {
		for _, p := range d.TmpfsWritablePaths {
			tmpfs[p] = ""
		}
	}

	hc := &container.HostConfig{
		NetworkMode: container.NetworkMode(networkMode),
		Binds:       binds,
		Resources: container.Resources{
			Memory:    int64(d.MemoryMB) * 1024 * 1024,
			NanoCPUs:  int64(d.CPUQuota * 1e9),
			PidsLimit: int64PtrOrNil(d.PIDLimit),
			Ulimits:   buildUlimits(d.Ulimits),
		},
		CapDrop:        capDrop,
		CapAdd:         capAdd,
		SecurityOpt:    buildSecurityOpt(d),
		ReadonlyRootfs: d.ReadOnlyRootFS,
		Tmpfs:          tmpfs,
	}

	if spec.GPU {
		hc.Resources.DeviceRequests = []container.DeviceRequest{
			{Count: -1, Capabilities: [][]string{{"gpu"}}},
		}
	}

	return hc
}

func int64PtrOrNil(limit int) *int64 {
	if limit <= 0 {
		return nil
	}
	v := int64(limit)
	return &v
}

func buildUlimits(u security.Ulimits) []*container.Ulimit {
	limits := []*container.Ulimit{}
	if u.OpenFiles > 0 {
		limits = append(limits, &container.Ulimit{Name: "nofile", Soft: int64(u.OpenFiles), Hard: int64(u.OpenFiles)})
	}
	if u.UserProcs > 0 {
		limits = append(limits, &container.Ulimit{Name: "nproc", Soft: int64(u.UserProcs), Hard: int64(u.UserProcs)})
	}
	limits = append(limits, &container.Ulimit{Name: "core", Soft: 0, Hard: 0})
	return limits
}

func buildSecurityOpt(d security.Descriptor) []string {
	opts := []string{}
	if d.NoNewPrivileges {
		opts = append(opts, "no-new-privileges:true")
	}
	// The seccomp profile JSON is generated from d.Syscalls by the image
	// builder collaborator (out of scope); here we reference it by the
	// conventional profile name the builder emits per level.
	opts = append(opts, fmt.Sprintf("seccomp=sandbox-%s.json", d.Level))
	return opts
}
