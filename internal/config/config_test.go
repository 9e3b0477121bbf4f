package config

import (
	"os"
	"testing"
)

func TestLoadUsesDefaultsWhenUnset(t *testing.T) {
	os.Unsetenv("POOL_MIN_IDLE")
	os.Unsetenv("LOG_LEVEL")

	cfg := Load()
	want := Default()

	if cfg.PoolMinIdle != want.PoolMinIdle {
		t.Errorf("PoolMinIdle = %d, want default %d", cfg.PoolMinIdle, want.PoolMinIdle)
	}
	if cfg.LogLevel != want.LogLevel {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, want.LogLevel)
	}
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	os.Setenv("POOL_MIN_IDLE", "7")
	os.Setenv("CACHE_MAX_SIZE_GB", "25.5")
	os.Setenv("LOG_LEVEL", "debug")
	defer func() {
		os.Unsetenv("POOL_MIN_IDLE")
		os.Unsetenv("CACHE_MAX_SIZE_GB")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg := Load()

	if cfg.PoolMinIdle != 7 {
		t.Errorf("PoolMinIdle = %d, want 7", cfg.PoolMinIdle)
	}
	if cfg.CacheMaxSizeGB != 25.5 {
		t.Errorf("CacheMaxSizeGB = %v, want 25.5", cfg.CacheMaxSizeGB)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadIgnoresMalformedIntOverride(t *testing.T) {
	os.Setenv("POOL_MAX_ACTIVE", "not-a-number")
	defer os.Unsetenv("POOL_MAX_ACTIVE")

	cfg := Load()
	want := Default()

	if cfg.PoolMaxActive != want.PoolMaxActive {
		t.Errorf("PoolMaxActive = %d, want default %d on malformed input", cfg.PoolMaxActive, want.PoolMaxActive)
	}
}
