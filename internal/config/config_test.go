package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/notificationd/internal/logger"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvLogLevel, EnvLogPath, EnvBind, EnvDBPath} {
		t.Setenv(key, "")
	}
	t.Setenv("XDG_STATE_HOME", "/tmp/state-test")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/config-test")
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)
	cfg := DefaultConfig()

	assert.Equal(t, "0.0.0.0:6606", cfg.Bind)
	assert.True(t, cfg.DefaultConsume)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/state-test/notificationd/history.sqlite3", cfg.History.Path)
	assert.Equal(t, 100, cfg.History.Limit)
	assert.True(t, cfg.Control.Enabled)
	assert.Equal(t, "terminal", cfg.Client.Sink)
	assert.True(t, cfg.Client.Consume)
	assert.Equal(t, logger.LevelInfo, cfg.Level())
	assert.NoError(t, cfg.Validate())
}

func TestGetConfigPath(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, "/tmp/config-test/notificationd/config.json", GetConfigPath())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadJSONOverridesOnlyGivenFields(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"bind": "127.0.0.1:7000",
		"default_consume": false,
		"history": {"enabled": false},
		"log_level": "debug"
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Bind)
	assert.False(t, cfg.DefaultConsume)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 100, cfg.History.Limit)
	assert.Equal(t, logger.LevelDebug, cfg.Level())
	assert.Equal(t, 1024, cfg.MaxConnections)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bind: "[::1]:6606"
websocket_bind: "127.0.0.1:6607"
client:
  sink: notify-send
  login: ops@desk
history:
  limit: 25
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "[::1]:6606", cfg.Bind)
	assert.Equal(t, "127.0.0.1:6607", cfg.WebSocketBind)
	assert.Equal(t, "notify-send", cfg.Client.Sink)
	assert.Equal(t, "ops@desk", cfg.Client.Login)
	assert.True(t, cfg.Client.Reconnect)
	assert.Equal(t, 25, cfg.History.Limit)
	assert.True(t, cfg.History.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBind, "127.0.0.1:9999")
	t.Setenv(EnvDBPath, "/var/lib/notificationd/db.sqlite3")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogPath, "/var/log/notificationd.log")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Bind)
	assert.Equal(t, "/var/lib/notificationd/db.sqlite3", cfg.History.Path)
	assert.Equal(t, logger.LevelWarn, cfg.Level())
	assert.Equal(t, "/var/log/notificationd.log", cfg.LogPath)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	for name, content := range map[string]string{
		"broken.json": `{"bind": `,
		"bind.json":   `{"bind": "no-port"}`,
		"sink.json":   `{"client": {"sink": "pager"}}`,
		"ws.yaml":     `websocket_bind: nope`,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := Load(path)
		assert.Error(t, err, name)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	for _, name := range []string{"out.json", "out.yml"} {
		path := filepath.Join(t.TempDir(), "nested", name)

		cfg := DefaultConfig()
		cfg.Bind = "127.0.0.1:1234"
		cfg.Client.Login = "me@here"
		require.NoError(t, cfg.Save(path))

		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, cfg, loaded, name)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level": "info"}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })
	}()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level": "debug"}`), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, logger.LevelDebug, cfg.Level())
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
