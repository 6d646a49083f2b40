package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 224, cfg.Models.ImageSize)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 50.0, cfg.Gatekeeper.MinBrightness)
	assert.Equal(t, 220.0, cfg.Gatekeeper.MaxBrightness)
	assert.Equal(t, 0.30, cfg.Gatekeeper.DenyThreshold)
	assert.False(t, cfg.Gatekeeper.FailOpen)
	assert.Equal(t, 40.0, cfg.Verdict.MinScore)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("GATEKEEPER_DENY_THRESHOLD", "0.45")
	t.Setenv("GATEKEEPER_FAIL_OPEN", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 0.45, cfg.Gatekeeper.DenyThreshold)
	assert.True(t, cfg.Gatekeeper.FailOpen)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("verdict:\n  min_score: 55\ngatekeeper:\n  allowlist: [leaf, tomato]\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 55.0, cfg.Verdict.MinScore)
	assert.Equal(t, []string{"leaf", "tomato"}, cfg.Gatekeeper.AllowlistKeywords)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_InvalidStorage(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_TYPE", "ftp")

	_, err := Load("")
	assert.Error(t, err)
}
