package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codefionn/notificationd/internal/consts"
	"github.com/codefionn/notificationd/internal/display"
	"github.com/codefionn/notificationd/internal/logger"
)

// Environment variables that override the configuration file
const (
	EnvLogLevel = "NOTIFICATIOND_LOG_LEVEL"
	EnvLogPath  = "NOTIFICATIOND_LOG_PATH"
	EnvBind     = "NOTIFICATIOND_BIND"
	EnvDBPath   = "NOTIFICATIOND_DB_PATH"
)

// HistoryConfig configures notification persistence
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
	Limit   int    `json:"limit" yaml:"limit"` // default HISTORY size
}

// ControlConfig configures the control socket
type ControlConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	SocketPath string `json:"socket_path,omitempty" yaml:"socket_path,omitempty"` // empty: derived from the uid
}

// ClientConfig configures the forwarding client run mode
type ClientConfig struct {
	Login     string `json:"login,omitempty" yaml:"login,omitempty"` // empty: <user>@<host>
	Consume   bool   `json:"consume" yaml:"consume"`
	Sink      string `json:"sink" yaml:"sink"` // terminal or notify-send
	Reconnect bool   `json:"reconnect" yaml:"reconnect"`
}

// Config represents the daemon configuration
type Config struct {
	Bind           string        `json:"bind" yaml:"bind"`
	WebSocketBind  string        `json:"websocket_bind,omitempty" yaml:"websocket_bind,omitempty"`
	MaxConnections int           `json:"max_connections" yaml:"max_connections"`
	SendQueueSize  int           `json:"send_queue_size" yaml:"send_queue_size"`
	DefaultConsume bool          `json:"default_consume" yaml:"default_consume"`
	History        HistoryConfig `json:"history" yaml:"history"`
	Control        ControlConfig `json:"control" yaml:"control"`
	Client         ClientConfig  `json:"client" yaml:"client"`
	LogLevel       string        `json:"log_level" yaml:"log_level"` // debug, info, warn, error, none
	LogPath        string        `json:"log_path,omitempty" yaml:"log_path,omitempty"`
	PIDFile        string        `json:"pid_file,omitempty" yaml:"pid_file,omitempty"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, consts.AppName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", consts.AppName)
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, consts.AppName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", consts.AppName)
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, consts.AppName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", consts.AppName)
	default:
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, consts.AppName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", consts.AppName)
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Bind:           consts.DefaultBind,
		MaxConnections: consts.DefaultMaxConnections,
		SendQueueSize:  consts.DefaultSendQueueSize,
		DefaultConsume: true,
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(defaultStateDir(), "history.sqlite3"),
			Limit:   consts.DefaultHistoryLimit,
		},
		Control: ControlConfig{
			Enabled: true,
		},
		Client: ClientConfig{
			Consume:   true,
			Sink:      display.SinkTerminal,
			Reconnect: true,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from path. A missing file yields the defaults;
// .yaml and .yml files are parsed as YAML, everything else as JSON.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil {
		// Unmarshal into default config (overrides only provided fields)
		if isYAML(path) {
			err = yaml.Unmarshal(data, config)
		} else {
			err = json.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return config, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogPath)); v != "" {
		c.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBind)); v != "" {
		c.Bind = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		c.History.Path = v
	}
}

// Validate fills zero values with defaults and rejects unusable settings
func (c *Config) Validate() error {
	if c.Bind == "" {
		c.Bind = consts.DefaultBind
	}
	if _, _, err := net.SplitHostPort(c.Bind); err != nil {
		return fmt.Errorf("bind %q: %w", c.Bind, err)
	}
	if c.WebSocketBind != "" {
		if _, _, err := net.SplitHostPort(c.WebSocketBind); err != nil {
			return fmt.Errorf("websocket_bind %q: %w", c.WebSocketBind, err)
		}
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = consts.DefaultMaxConnections
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = consts.DefaultSendQueueSize
	}
	if c.History.Limit <= 0 {
		c.History.Limit = consts.DefaultHistoryLimit
	}
	if c.History.Enabled && c.History.Path == "" {
		c.History.Path = filepath.Join(defaultStateDir(), "history.sqlite3")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.Client.Sink {
	case "":
		c.Client.Sink = display.SinkTerminal
	case display.SinkTerminal, display.SinkNotifySend:
	default:
		return fmt.Errorf("unknown client sink %q", c.Client.Sink)
	}
	return nil
}

// Level returns the parsed log level
func (c *Config) Level() logger.Level {
	return logger.ParseLevel(c.LogLevel)
}

// Save saves configuration to file, as YAML for .yaml/.yml paths
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
