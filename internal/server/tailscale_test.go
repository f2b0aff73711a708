// ABOUTME: Tests for tailnet listener configuration that need no tailnet
// ABOUTME: Covers state dir and auth key resolution, node setup, and mode selection

package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/notebox/internal/config"
)

func TestResolveTailscaleStateDir(t *testing.T) {
	dir, err := resolveTailscaleStateDir("/srv/notebox/ts")
	require.NoError(t, err)
	assert.Equal(t, "/srv/notebox/ts", dir)

	home := t.TempDir()
	t.Setenv("HOME", home)
	dir, err = resolveTailscaleStateDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "notebox", "tailscale"), dir)
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "tskey-env")

	key, err := resolveTailscaleAuthKey("tskey-config")
	require.NoError(t, err)
	assert.Equal(t, "tskey-config", key)

	key, err = resolveTailscaleAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)

	t.Setenv("TS_AUTHKEY", "")
	_, err = resolveTailscaleAuthKey("")
	assert.ErrorContains(t, err, "TS_AUTHKEY")
}

func TestNewTailnetNode(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")
	stateDir := filepath.Join(t.TempDir(), "state")

	node, err := newTailnetNode(config.TailscaleConfig{
		Hostname:  "notes",
		StateDir:  stateDir,
		AuthKey:   "tskey-abc",
		Ephemeral: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "notes", node.Hostname)
	assert.Equal(t, stateDir, node.Dir)
	assert.Equal(t, "tskey-abc", node.AuthKey)
	assert.True(t, node.Ephemeral)

	info, err := os.Stat(stateDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// No key means no state dir is created
	missing := filepath.Join(t.TempDir(), "never")
	_, err = newTailnetNode(config.TailscaleConfig{Hostname: "notes", StateDir: missing})
	require.Error(t, err)
	_, statErr := os.Stat(missing)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTailnetMode(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.TailscaleConfig
		want    tailnetMode
		addr    string
		wantURL string
	}{
		{"plain", config.TailscaleConfig{}, tailnetHTTP, ":80", "http://notes.tail1234.ts.net"},
		{"https", config.TailscaleConfig{HTTPS: true}, tailnetHTTPS, ":443", "https://notes.tail1234.ts.net"},
		{"funnel", config.TailscaleConfig{Funnel: true}, tailnetFunnel, ":443", "https://notes.tail1234.ts.net"},
		{"funnel wins", config.TailscaleConfig{Funnel: true, HTTPS: true}, tailnetFunnel, ":443", "https://notes.tail1234.ts.net"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode := tailnetModeFor(tt.cfg)
			assert.Equal(t, tt.want, mode)
			assert.Equal(t, tt.addr, mode.addr())
			assert.Equal(t, tt.wantURL, mode.url("notes.tail1234.ts.net."))
		})
	}

	assert.Empty(t, tailnetHTTP.url(""))
}
