package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateExportNeedsNoDatabase(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "export"
	cfg.Database = DatabaseConfig{}
	assert.NoError(t, cfg.Validate())

	cfg.Mode = "ingest"
	assert.Error(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "scan"

[ingest]
interval = "90s"

[scanner]
min_net_gain = 42
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, 90*time.Second, cfg.Ingest.Interval.Duration)
	assert.Equal(t, int64(42), cfg.Scanner.MinNetGain)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.guildwars2.com/v2", cfg.GW2.BaseURL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TPBOT_MODE", "catalog")
	t.Setenv("TPBOT_DATABASE_PASSWORD", "hunter2")
	t.Setenv("TPBOT_INGEST_INTERVAL", "30s")
	t.Setenv("TPBOT_REDIS_ENABLED", "false")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "catalog", cfg.Mode)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, 30*time.Second, cfg.Ingest.Interval.Duration)
	assert.False(t, cfg.Redis.Enabled)
}
