package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docker/docker/api/types/container"
)

// Stats is the subset of engine resource-usage stats the sandbox surfaces.
type Stats struct {
	CPUMs        int64
	PeakMemoryMB float64
	DiskReadMB   float64
	DiskWriteMB  float64
}

// Stats reads a one-shot resource snapshot for the container.
func (e *Engine) Stats(ctx context.Context, h Handle) (Stats, error) {
	resp, err := e.client.ContainerStats(ctx, string(h), false)
	if err != nil {
		return Stats{}, fmt.Errorf("stats container %s: %w", h, err)
	}
	defer resp.Body.Close()

	var raw container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Stats{}, fmt.Errorf("decode stats: %w", err)
	}

	var diskRead, diskWrite uint64
	for _, entry := range raw.BlkioStats.IoServiceBytesRecursive {
		switch entry.Op {
		case "Read", "read":
			diskRead += entry.Value
		case "Write", "write":
			diskWrite += entry.Value
		}
	}

	return Stats{
		CPUMs:        int64(raw.CPUStats.CPUUsage.TotalUsage / 1e6),
		PeakMemoryMB: float64(raw.MemoryStats.MaxUsage) / (1024 * 1024),
		DiskReadMB:   float64(diskRead) / (1024 * 1024),
		DiskWriteMB:  float64(diskWrite) / (1024 * 1024),
	}, nil
}
