package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"financeprovider/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 2, cfg.Health.DegradedThreshold)
	require.Equal(t, 5, cfg.Health.UnavailableThreshold)
	require.Equal(t, 5*time.Minute, cfg.Health.CoolDown)
	require.Equal(t, 15*time.Minute, cfg.Health.AuthCoolDown)
	require.Equal(t, 15*time.Second, cfg.Cache.QuoteTTL)
	require.Equal(t, 24*time.Hour, cfg.Cache.CompanyTTL)

	require.True(t, cfg.Sources["yahoo"].Enabled)
	require.Equal(t, 1, cfg.Sources["yahoo"].Priority)
	require.Equal(t, 2, cfg.Sources["polygon"].Priority)
	require.Equal(t, 3, cfg.Sources["secdata"].Priority)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
log_level: debug
sources:
  polygon:
    enabled: true
    priority: 2
    api_key: file-key
fetch:
  max_retries: 1
  backoff_initial: 250ms
cache:
  quote_ttl: 30s
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "file-key", cfg.Sources["polygon"].APIKey)
	require.Equal(t, 1, cfg.Fetch.MaxRetries)
	require.Equal(t, 250*time.Millisecond, cfg.Fetch.BackoffInitial)
	require.Equal(t, 30*time.Second, cfg.Cache.QuoteTTL)
	// Untouched keys keep their defaults.
	require.Equal(t, time.Hour, cfg.Cache.HistoryTTL)
	require.True(t, cfg.Sources["yahoo"].Enabled)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FINPROV_SOURCES_POLYGON_API_KEY", "env-key")
	t.Setenv("FINPROV_LOG_LEVEL", "warn")

	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, "env-key", cfg.Sources["polygon"].APIKey)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestDuplicatePriorityRejected(t *testing.T) {
	path := writeConfig(t, `
sources:
  yahoo:
    enabled: true
    priority: 1
  polygon:
    enabled: true
    priority: 1
`)
	_, err := config.Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "priority")
}

func TestDisabledSourcesDoNotConflict(t *testing.T) {
	path := writeConfig(t, `
sources:
  yahoo:
    enabled: true
    priority: 1
  polygon:
    enabled: false
    priority: 1
  secdata:
    enabled: false
    priority: 1
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Sources["polygon"].Enabled)
}

func TestNoSourcesEnabledRejected(t *testing.T) {
	path := writeConfig(t, `
sources:
  yahoo:
    enabled: false
  polygon:
    enabled: false
  secdata:
    enabled: false
`)
	_, err := config.Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no sources enabled")
}

func TestUnknownLogLevelRejected(t *testing.T) {
	_, err := config.Load(writeConfig(t, "log_level: verbose\n"))
	require.Error(t, err)
}

func TestMissingExplicitFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
