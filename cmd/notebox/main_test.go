// ABOUTME: Tests for CLI helpers: config resolution, secret generation, logging
// ABOUTME: Uses t.Setenv and temp dirs; no server is started

package main

import (
	"bytes"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/notebox/internal/config"
)

func TestGenerateSecret(t *testing.T) {
	a, err := generateSecret()
	require.NoError(t, err)
	b, err := generateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.GreaterOrEqual(t, len(a), config.MinSecretLength)
}

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("NOTEBOX_CONFIG", "")
	t.Setenv("NOTEBOX_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "(defaults)", path)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
}

func TestLoadConfig_ExplicitMissingFileFails(t *testing.T) {
	t.Setenv("NOTEBOX_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, _, err := loadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_FromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notebox.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[auth]
jwt_secret = "0123456789abcdef0123456789abcdef"

[logging]
level = "debug"
`), 0644))
	t.Setenv("NOTEBOX_CONFIG", path)

	cfg, got, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	logger.With("component", "test").WithGroup("req").Info("hello", "status", 200)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INF hello")
	assert.Contains(t, out, " component=test")
	assert.NotContains(t, out, "req.component")
	assert.Contains(t, out, "req.status=200")
	assert.NotContains(t, out, "hidden")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
