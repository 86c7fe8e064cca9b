// Package config loads CanvasFlow configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all CanvasFlow configuration.
type Config struct {
	// Canvas instance to sync from. Empty means auto-detect from open tabs.
	CanvasURL string `yaml:"canvas_url"`

	Browser       BrowserConfig       `yaml:"browser"`
	Sync          SyncConfig          `yaml:"sync"`
	Notifications NotificationsConfig `yaml:"notifications"`
	LLM           LLMConfig           `yaml:"llm"`
	Storage       StorageConfig       `yaml:"storage"`
}

// BrowserConfig configures the Chrome connection.
type BrowserConfig struct {
	// DevTools websocket URL of an already-running Chrome. Empty launches one.
	DebuggerURL string `yaml:"debugger_url"`
	Headless    bool   `yaml:"headless"`
	// How long to wait for a freshly opened Canvas tab to become ready.
	OpenTabTimeout time.Duration `yaml:"open_tab_timeout"`
}

// SyncConfig configures the sync coordinator.
type SyncConfig struct {
	// Upper bound for a single slice fetch.
	SliceTimeout time.Duration `yaml:"slice_timeout"`
	// Automatic refresh cadence for the watch loop. Zero disables.
	AutoRefresh time.Duration `yaml:"auto_refresh"`
	// Fan-out limit for per-course assignment fetches.
	CourseFetchLimit int `yaml:"course_fetch_limit"`
}

// NotificationsConfig configures the notification engine.
type NotificationsConfig struct {
	Enabled bool `yaml:"enabled"`
	// minimal, balanced, or aggressive.
	Frequency  string `yaml:"frequency"`
	QuietStart string `yaml:"quiet_start"`
	QuietEnd   string `yaml:"quiet_end"`
}

// LLMConfig configures the model backends.
type LLMConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	GeminiAPIKey string        `yaml:"gemini_api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxTokens    int           `yaml:"max_tokens"`
}

// StorageConfig configures the durable cache.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// Default returns the configuration defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Browser: BrowserConfig{
			Headless:       false,
			OpenTabTimeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			SliceTimeout:     30 * time.Second,
			AutoRefresh:      30 * time.Minute,
			CourseFetchLimit: 4,
		},
		Notifications: NotificationsConfig{
			Enabled:    false,
			Frequency:  "balanced",
			QuietStart: "22:00",
			QuietEnd:   "08:00",
		},
		LLM: LLMConfig{
			BaseURL:   "https://models.github.ai/inference",
			Timeout:   2 * time.Minute,
			MaxTokens: 1500,
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(home, ".canvasflow", "canvasflow.db"),
		},
	}
}

// Load reads the config file at path, applies defaults for unset fields,
// then applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CANVASFLOW_CANVAS_URL"); v != "" {
		c.CanvasURL = v
	}
	if v := os.Getenv("CANVASFLOW_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("CANVASFLOW_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("GITHUB_MODELS_TOKEN"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.GeminiAPIKey = v
	}
}

// Validate rejects values the rest of the system cannot work with.
func (c *Config) Validate() error {
	switch c.Notifications.Frequency {
	case "minimal", "balanced", "aggressive":
	default:
		return fmt.Errorf("invalid notification frequency %q", c.Notifications.Frequency)
	}
	if _, err := ParseClock(c.Notifications.QuietStart); err != nil {
		return fmt.Errorf("quiet_start: %w", err)
	}
	if _, err := ParseClock(c.Notifications.QuietEnd); err != nil {
		return fmt.Errorf("quiet_end: %w", err)
	}
	if c.Sync.CourseFetchLimit < 1 {
		return fmt.Errorf("course_fetch_limit must be >= 1, got %d", c.Sync.CourseFetchLimit)
	}
	return nil
}

// Clock is a minutes-since-midnight wall-clock time.
type Clock int

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return Clock(h*60 + m), nil
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int { return int(c) }
