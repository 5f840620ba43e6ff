package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Transcription contains settings for the remote speech-to-text service.
type Transcription struct {
	// BaseURL is the startup default. A URL saved at runtime through
	// `clipdraft gateway set` takes precedence.
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Research contains settings for the research and drafting service.
type Research struct {
	// Provider selects the wire protocol: "service" speaks the plain research
	// contract, "perplexity" speaks chat completions.
	Provider       string `toml:"provider"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Dispatch contains worker pool and execution token settings.
type Dispatch struct {
	Workers         int    `toml:"workers"`
	QueueSize       int    `toml:"queue_size"`
	TokenBackend    string `toml:"token_backend"`
	TokenTTLSeconds int    `toml:"token_ttl_seconds"`

	// SweepIntervalSeconds is how often resting items that are not queued
	// are handed back to the workers.
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// Redis contains the optional Redis connection used for distributed
// execution tokens and the transition feed.
type Redis struct {
	URL          string `toml:"url"`
	Stream       string `toml:"stream"`
	StreamMaxLen int64  `toml:"stream_max_len"`
	KeyPrefix    string `toml:"key_prefix"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Drafted        bool   `toml:"drafted"`
	Failures       bool   `toml:"failures"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipdraft.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Transcription: speech-to-text gateway endpoint and timeout
//   - Research: research/drafting gateway provider, credentials, timeout
//   - Dispatch: worker pool size, queue bound, execution token backend
//   - Redis: optional shared token store and transition stream
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Research      Research      `toml:"research"`
	Dispatch      Dispatch      `toml:"dispatch"`
	Redis         Redis         `toml:"redis"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipdraft.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file backing the item store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "clipdraft.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "clipdraft.lock")
}

// PIDPath returns the file holding the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "clipdraft.pid")
}

// LogPath returns the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "clipdraft.log")
}

// TranscriptionTimeout returns the bounded duration for one transcription call.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutSeconds) * time.Second
}

// ResearchTimeout returns the bounded duration for one research call.
func (c *Config) ResearchTimeout() time.Duration {
	return time.Duration(c.Research.TimeoutSeconds) * time.Second
}

// TokenTTL returns how long a distributed execution token survives without release.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Dispatch.TokenTTLSeconds) * time.Second
}

// SweepInterval returns the period of the resting item sweep.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Dispatch.SweepIntervalSeconds) * time.Second
}

// RedisEnabled reports whether a Redis connection is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.URL) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
