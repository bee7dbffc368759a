package main

import (
	"bytes"
	"flag"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/notificationd/internal/config"
)

func TestParseArgsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg-home")
	opts, err := parseArgs(nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cfg-home/notificationd/config.json", opts.configPath)
	assert.Empty(t, opts.client)
	assert.False(t, opts.noHistory)
}

func TestParseArgsRejectsPositional(t *testing.T) {
	_, err := parseArgs([]string{"extra"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseArgsHelp(t *testing.T) {
	var out bytes.Buffer
	_, err := parseArgs([]string{"-h"}, &out)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, out.String(), "-client")
}

func TestFlagsOverrideConfig(t *testing.T) {
	opts, err := parseArgs([]string{
		"--bind", "127.0.0.1:7000",
		"--websocket", "127.0.0.1:7001",
		"--login", "ops@desk",
		"--sink", "notify-send",
		"--no-history",
		"--no-consume",
		"--no-reconnect",
		"--log-level", "debug",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	opts.apply(cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:7000", cfg.Bind)
	assert.Equal(t, "127.0.0.1:7001", cfg.WebSocketBind)
	assert.Equal(t, "ops@desk", cfg.Client.Login)
	assert.Equal(t, "notify-send", cfg.Client.Sink)
	assert.False(t, cfg.History.Enabled)
	assert.False(t, cfg.Client.Consume)
	assert.False(t, cfg.Client.Reconnect)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestControlSocketPrefersConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Control.SocketPath = filepath.Join(t.TempDir(), "ctl.sock")
	assert.Equal(t, cfg.Control.SocketPath, controlSocket(cfg))
}

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, run([]string{"--config", path, "--bind", "127.0.0.1:7100", "--write-config"}))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7100", cfg.Bind)
}
