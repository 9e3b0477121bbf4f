// Package config loads sandboxd's environment-variable tunables with
// typed defaults, no configuration framework involved.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/Pit-CL/mcp-multilang-sandbox/internal/security"
)

// Config holds every environment-tunable setting read at startup.
type Config struct {
	LogLevel         string
	PoolMinIdle      int
	PoolMaxActive    int
	CacheMaxSizeGB   float64
	CachePrunePerLang int
	SessionJanitorInterval time.Duration
	HardeningLevel   security.Level
	HardeningConfigPath string
	AuditLogDir      string
	AuditRingCapacity int
	RateLimitPerMinute int
	DockerSocketPath string
}

// Default returns the baseline configuration before environment
// overrides are applied.
func Default() Config {
	return Config{
		LogLevel:               "info",
		PoolMinIdle:            2,
		PoolMaxActive:          20,
		CacheMaxSizeGB:         10,
		CachePrunePerLang:      5,
		SessionJanitorInterval: time.Minute,
		HardeningLevel:         security.LevelStandard,
		HardeningConfigPath:    "",
		AuditLogDir:            "",
		AuditRingCapacity:      1000,
		RateLimitPerMinute:     60,
		DockerSocketPath:       "/var/run/docker.sock",
	}
}

// Load builds a Config from Default() overridden by any recognized
// environment variables.
func Load() Config {
	cfg := Default()

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v, ok := envInt("POOL_MIN_IDLE"); ok {
		cfg.PoolMinIdle = v
	}
	if v, ok := envInt("POOL_MAX_ACTIVE"); ok {
		cfg.PoolMaxActive = v
	}
	if v, ok := envFloat("CACHE_MAX_SIZE_GB"); ok {
		cfg.CacheMaxSizeGB = v
	}
	if v, ok := envInt("CACHE_PRUNE_PER_LANGUAGE"); ok {
		cfg.CachePrunePerLang = v
	}
	if v, ok := envDuration("SESSION_JANITOR_INTERVAL"); ok {
		cfg.SessionJanitorInterval = v
	}
	if v := os.Getenv("HARDENING_LEVEL"); v != "" {
		cfg.HardeningLevel = security.Level(v)
	}
	if v := os.Getenv("HARDENING_CONFIG_PATH"); v != "" {
		cfg.HardeningConfigPath = v
	}
	if v := os.Getenv("AUDIT_LOG_DIR"); v != "" {
		cfg.AuditLogDir = v
	}
	if v, ok := envInt("AUDIT_RING_CAPACITY"); ok {
		cfg.AuditRingCapacity = v
	}
	if v, ok := envInt("RATE_LIMIT_PER_MINUTE"); ok {
		cfg.RateLimitPerMinute = v
	}
	if v := os.Getenv("DOCKER_SOCKET_PATH"); v != "" {
		cfg.DockerSocketPath = v
	}

	return cfg
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
