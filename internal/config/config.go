// Package config loads client configuration from a YAML file plus environment
// overrides. A .env file next to the config is honored when present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultBaseURL      = "http://127.0.0.1:8000/chat"
	DefaultPollInterval = 3 * time.Second
	DefaultHTTPTimeout  = 30 * time.Second
)

// Config holds all client settings.
type Config struct {
	// BaseURL is the chat API root, without trailing slash.
	BaseURL string
	// PollInterval is the thread refresh cadence.
	PollInterval time.Duration
	// HTTPTimeout bounds a single request.
	HTTPTimeout time.Duration
	// StateDir is where the local key-value store lives.
	StateDir string
	// DownloadDir receives attachment downloads.
	DownloadDir string
	// MetricsAddr, when set, serves prometheus metrics in watch mode.
	MetricsAddr string
}

// DefaultStateDir resolves the per-user state directory, honoring
// XDG_CONFIG_HOME like the rest of the CLI ecosystem does.
func DefaultStateDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "chatclient")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "chatclient")
}

// Load reads the YAML file at path (optional), then applies CHAT_* environment
// variables on top. Missing file is not an error; malformed file is.
func Load(path string) (*Config, error) {
	cfg := &Config{
		BaseURL:      DefaultBaseURL,
		PollInterval: DefaultPollInterval,
		HTTPTimeout:  DefaultHTTPTimeout,
		StateDir:     DefaultStateDir(),
		DownloadDir:  ".",
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			var raw rawConfig
			if err := yaml.Unmarshal(b, &raw); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			raw.apply(cfg)
			// a .env next to the config file may hold the server URL
			_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
		case os.IsNotExist(err):
		default:
			return nil, err
		}
	}
	cfg.applyEnv()

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	return cfg, nil
}

// rawConfig is the on-disk shape; durations are strings ("5s") or bare
// integer seconds.
type rawConfig struct {
	BaseURL      string `yaml:"base_url"`
	PollInterval string `yaml:"poll_interval"`
	HTTPTimeout  string `yaml:"http_timeout"`
	StateDir     string `yaml:"state_dir"`
	DownloadDir  string `yaml:"download_dir"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

func (r rawConfig) apply(c *Config) {
	if r.BaseURL != "" {
		c.BaseURL = r.BaseURL
	}
	if d, ok := parseDuration(r.PollInterval); ok {
		c.PollInterval = d
	}
	if d, ok := parseDuration(r.HTTPTimeout); ok {
		c.HTTPTimeout = d
	}
	if r.StateDir != "" {
		c.StateDir = r.StateDir
	}
	if r.DownloadDir != "" {
		c.DownloadDir = r.DownloadDir
	}
	if r.MetricsAddr != "" {
		c.MetricsAddr = r.MetricsAddr
	}
}

func parseDuration(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, true
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CHAT_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("CHAT_POLL_INTERVAL"); v != "" {
		if d, ok := parseDuration(v); ok {
			c.PollInterval = d
		}
	}
	if v := os.Getenv("CHAT_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("CHAT_DOWNLOAD_DIR"); v != "" {
		c.DownloadDir = v
	}
	if v := os.Getenv("CHAT_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
}
