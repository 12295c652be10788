package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, time.Hour, cfg.Retention)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 1000, cfg.HistoryCap)
	assert.Equal(t, 50, cfg.JoinHistory)
	assert.Equal(t, 16, cfg.TokenBytes)
	assert.Equal(t, "kick", cfg.Backpressure)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	yaml := []byte("mode: debug\nport: 9000\nretention: 30m\nhistory_cap: 10\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))
	t.Setenv("RELAY_PORT", "9100")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9100, cfg.Port, "env wins over file")
	assert.Equal(t, 30*time.Minute, cfg.Retention)
	assert.Equal(t, 10, cfg.HistoryCap)
}

func TestLoadUsesConfigEnv(t *testing.T) {
	t.Setenv("CONFIG_ENV", "does-not-exist")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	bad := *cfg
	bad.Port = 0
	bad.Retention = 0
	bad.TokenBytes = 4
	bad.Backpressure = "ignore"
	err = bad.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "port 0 out of range")
	assert.ErrorContains(t, err, "retention must be positive")
	assert.ErrorContains(t, err, "token_bytes 4")
	assert.ErrorContains(t, err, `backpressure must be kick or drop, got "ignore"`)

	t.Setenv("RELAY_SEND_BURST", "0")
	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "send_burst")
}
