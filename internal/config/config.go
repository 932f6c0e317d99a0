// Package config handles the XDG configuration directory, file paths and
// client settings.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"taskboard/internal/logging"
	"taskboard/internal/session"
)

const (
	// AppName is the application directory name.
	AppName = "taskboard"

	// SessionFile is the stored session filename.
	SessionFile = "session.json"

	// SettingsFile is the optional settings filename.
	SettingsFile = "config.yaml"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Settings are the client settings from config.yaml and the environment.
	Settings Settings

	// Stdin is the input stream for prompts and the board session.
	Stdin io.Reader

	// Logger is the structured logger for this run.
	Logger *logging.Logger

	store *session.Store
}

// Settings are the tunable client settings.
type Settings struct {
	// APIURL is the REST base URL.
	APIURL string `mapstructure:"api_url"`

	// WSURL is the WebSocket endpoint of the message bus.
	WSURL string `mapstructure:"ws_url"`

	// Topic is the task notification topic.
	Topic string `mapstructure:"topic"`

	// PageSize is the number of tasks per page.
	PageSize int `mapstructure:"page_size"`

	// RequestTimeout bounds every REST call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// ReconnectDelay is the fixed pause between bus reconnect attempts.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`

	// RefreshCoalesce is the window in which push notifications collapse
	// into one refetch.
	RefreshCoalesce time.Duration `mapstructure:"refresh_coalesce"`

	// NotifyBell rings the terminal bell on push notifications.
	NotifyBell bool `mapstructure:"notify_bell"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		APIURL:          "http://localhost:8080",
		WSURL:           "ws://localhost:8080/ws/websocket",
		Topic:           "/topic/tasks",
		PageSize:        12,
		RequestTimeout:  30 * time.Second,
		ReconnectDelay:  5 * time.Second,
		RefreshCoalesce: 250 * time.Millisecond,
	}
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/taskboard or $HOME/.config/taskboard.
// Settings start at their defaults; call LoadSettings to read config.yaml
// and the environment.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{
		Dir:      dir,
		Settings: DefaultSettings(),
		Stdin:    os.Stdin,
		Logger:   logging.NopLogger(),
	}, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// SessionPath returns the path to the stored session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// SettingsPath returns the path to the optional settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// Session returns the session store backed by SessionPath.
// The same store is returned for the lifetime of the Config.
func (c *Config) Session() *session.Store {
	if c.store == nil {
		c.store = session.NewStore(session.NewFileStorage(c.SessionPath()))
	}
	return c.store
}

// SetSession replaces the session store (tests use an in-memory store).
func (c *Config) SetSession(store *session.Store) {
	c.store = store
}

// Log returns the configured logger, or a no-op logger.
func (c *Config) Log() *logging.Logger {
	if c.Logger == nil {
		return logging.NopLogger()
	}
	return c.Logger
}

// Input returns the configured input stream, or an empty reader.
func (c *Config) Input() io.Reader {
	if c.Stdin == nil {
		return strings.NewReader("")
	}
	return c.Stdin
}
