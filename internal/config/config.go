// Package config loads orchestrator configuration from latch.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	latcherr "github.com/latch-ci/latch/internal/errors"
)

// Duration is a time.Duration that can be unmarshaled from TOML strings
// like "30m", "90s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
	// File, when set, mirrors log output to this path (relative to the
	// base directory).
	File string `toml:"file"`
}

// StoreConfig holds run store settings.
type StoreConfig struct {
	// Dir is where runs are persisted. Terminal runs move to an
	// archive/ subdirectory beneath it.
	Dir string `toml:"dir"`
}

// ServerConfig holds webhook/schedule source settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// ScheduleRef is the ref attached to schedule events, which have no
	// natural ref of their own.
	ScheduleRef string `toml:"schedule_ref"`
	// ScheduleInterval is how often the schedule source checks its cron
	// triggers. Minute granularity is the contract; shorter intervals
	// only matter for tests.
	ScheduleInterval Duration `toml:"schedule_interval"`
}

// ToolsConfig names the external collaborators managed actions invoke.
// All of them are opaque subprocesses as far as latch is concerned.
type ToolsConfig struct {
	Shell      string `toml:"shell"`       // shell for run: steps
	Linter     string `toml:"linter"`      // pre-commit style linter
	TestDriver string `toml:"test_driver"` // tox style packaging/test driver
	EnvManager string `toml:"env_manager"` // environment provisioner
}

// RunnerConfig holds job execution settings.
type RunnerConfig struct {
	// StepTimeout bounds a single step. Zero means no bound.
	StepTimeout Duration `toml:"step_timeout"`
}

// Config is the top-level latch configuration.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Store   StoreConfig   `toml:"store"`
	Server  ServerConfig  `toml:"server"`
	Tools   ToolsConfig   `toml:"tools"`
	Runner  RunnerConfig  `toml:"runner"`
}

// Default returns the configuration used when no latch.toml exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
		Store: StoreConfig{
			Dir: ".latch/runs",
		},
		Server: ServerConfig{
			Addr:             ":8080",
			ScheduleRef:      "refs/heads/main",
			ScheduleInterval: Duration(time.Minute),
		},
		Tools: ToolsConfig{
			Shell:      "sh",
			Linter:     "pre-commit",
			TestDriver: "tox",
			EnvManager: "conda",
		},
		Runner: RunnerConfig{
			StepTimeout: Duration(30 * time.Minute),
		},
	}
}

// Load reads latch.toml from baseDir, applying defaults for anything
// unset. A missing file is not an error.
func Load(baseDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(baseDir, "latch.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, latcherr.Newf(latcherr.CodeConfigReadError, "decoding %s", path).WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return latcherr.Newf(latcherr.CodeConfigInvalidValue, "invalid log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return latcherr.Newf(latcherr.CodeConfigInvalidValue, "invalid log format %q", c.Logging.Format)
	}
	if c.Tools.Shell == "" {
		return latcherr.New(latcherr.CodeConfigInvalidValue, "tools.shell must not be empty")
	}
	if c.Runner.StepTimeout < 0 {
		return latcherr.New(latcherr.CodeConfigInvalidValue, "runner.step_timeout must not be negative")
	}
	if c.Server.ScheduleInterval < 0 {
		return latcherr.New(latcherr.CodeConfigInvalidValue, "server.schedule_interval must not be negative")
	}
	return nil
}

// LogFile returns the absolute log file path, or "" when file logging
// is disabled.
func (c *Config) LogFile(baseDir string) string {
	if c.Logging.File == "" {
		return ""
	}
	if filepath.IsAbs(c.Logging.File) {
		return c.Logging.File
	}
	return filepath.Join(baseDir, c.Logging.File)
}

// StoreDir returns the absolute run store directory.
func (c *Config) StoreDir(baseDir string) string {
	if filepath.IsAbs(c.Store.Dir) {
		return c.Store.Dir
	}
	return filepath.Join(baseDir, c.Store.Dir)
}
