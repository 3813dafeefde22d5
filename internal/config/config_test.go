package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":9000\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "https://api.stackstasker.com", cfg.Marketplace.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.MarketplaceTimeout())
	assert.Equal(t, 30*time.Second, cfg.OpenInterval())
	assert.Equal(t, 45*time.Second, cfg.AgentInterval())
	assert.Equal(t, 60*time.Second, cfg.WatchedInterval())
	assert.Equal(t, filepath.Join(dir, "wallets"), cfg.Wallets.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  address: ":8080"
marketplace:
  base_url: "http://localhost:3999"
  timeout_seconds: 5
poll:
  open_interval_seconds: 10
  agent_interval_seconds: 20
  watched_interval_seconds: 30
wallets:
  dir: keys
log:
  level: debug
  format: text
  rotate:
    enabled: true
    max_size_mb: 5
    max_backups: 3
    max_age_days: 14
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "http://localhost:3999", cfg.Marketplace.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.MarketplaceTimeout())
	assert.Equal(t, 10*time.Second, cfg.OpenInterval())
	assert.Equal(t, 20*time.Second, cfg.AgentInterval())
	assert.Equal(t, 30*time.Second, cfg.WatchedInterval())
	// Relative wallet dir resolves against the config file's directory.
	assert.Equal(t, filepath.Join(dir, "keys"), cfg.Wallets.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Log.Rotate.Enabled)
	assert.Equal(t, 5, cfg.Log.Rotate.MaxSizeMB)
	assert.Equal(t, 3, cfg.Log.Rotate.MaxBackups)
	assert.Equal(t, 14, cfg.Log.Rotate.MaxAgeDays)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":4455", cfg.Server.Address)
	assert.Equal(t, filepath.Join(".", "wallets"), cfg.Wallets.Dir)
}
