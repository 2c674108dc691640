package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all visualsoal configuration.
type Config struct {
	// Gemini API configuration
	Gemini GeminiConfig `yaml:"gemini"`

	// Persisted history
	History HistoryConfig `yaml:"history"`

	// Locale of user-facing messages (id, en)
	Locale string `yaml:"locale"`

	// HTTP bridge for browser renderers
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// GeminiConfig configures the two generation stages.
type GeminiConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	TextModel   string  `yaml:"text_model"`
	ImageModel  string  `yaml:"image_model"`
	Temperature float32 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// HistoryConfig selects and configures the history backend.
type HistoryConfig struct {
	Backend  string `yaml:"backend"` // file, sqlite, bolt, memory
	Path     string `yaml:"path"`    // directory (file) or database file (sqlite, bolt)
	Driver   string `yaml:"driver"`  // sqlite3 (mattn) or sqlite (modernc)
	Key      string `yaml:"key"`
	Capacity int    `yaml:"capacity"`
}

// ServerConfig configures the HTTP bridge.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Valid values for enumerated settings.
var (
	ValidBackends = []string{"file", "sqlite", "bolt", "memory"}
	ValidDrivers  = []string{"sqlite3", "sqlite"}
	ValidLocales  = []string{"id", "en"}
)

const (
	DefaultTextModel   = "gemini-3-flash-preview"
	DefaultImageModel  = "gemini-2.5-flash-image"
	DefaultHistoryKey  = "visual_soal_history_v1"
	DefaultCapacity    = 50
	DefaultTemperature = 0.3
)

// DataDir returns ~/.visualsoal, falling back to ./.visualsoal.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".visualsoal"
	}
	return filepath.Join(home, ".visualsoal")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			TextModel:   DefaultTextModel,
			ImageModel:  DefaultImageModel,
			Temperature: DefaultTemperature,
			Timeout:     "120s",
		},
		History: HistoryConfig{
			Backend:  "file",
			Path:     filepath.Join(DataDir(), "history"),
			Driver:   "sqlite3",
			Key:      DefaultHistoryKey,
			Capacity: DefaultCapacity,
		},
		Locale: "id",
		Server: ServerConfig{
			Addr: "127.0.0.1:8088",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Return defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyZeroDefaults()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry an API key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// API_KEY is what the hosted build injected; GEMINI_API_KEY wins when both are set.
	if key := os.Getenv("API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if v := os.Getenv("VISUALSOAL_HISTORY_BACKEND"); v != "" {
		c.History.Backend = v
	}
	if v := os.Getenv("VISUALSOAL_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("VISUALSOAL_LOCALE"); v != "" {
		c.Locale = v
	}
}

// applyZeroDefaults fills settings a partial file left empty.
func (c *Config) applyZeroDefaults() {
	if c.Gemini.TextModel == "" {
		c.Gemini.TextModel = DefaultTextModel
	}
	if c.Gemini.ImageModel == "" {
		c.Gemini.ImageModel = DefaultImageModel
	}
	if c.History.Key == "" {
		c.History.Key = DefaultHistoryKey
	}
	if c.History.Capacity == 0 {
		c.History.Capacity = DefaultCapacity
	}
	if c.History.Driver == "" {
		c.History.Driver = "sqlite3"
	}
	c.History.Path = expandHome(c.History.Path)
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

// GetTimeout returns the Gemini call timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gemini.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// Validate validates the settings every command needs.
func (c *Config) Validate() error {
	if !contains(ValidBackends, c.History.Backend) {
		return fmt.Errorf("invalid history backend: %s (valid: %v)", c.History.Backend, ValidBackends)
	}
	if c.History.Backend == "sqlite" && !contains(ValidDrivers, c.History.Driver) {
		return fmt.Errorf("invalid sqlite driver: %s (valid: %v)", c.History.Driver, ValidDrivers)
	}
	if c.History.Backend != "memory" && c.History.Path == "" {
		return fmt.Errorf("history path is required for the %s backend", c.History.Backend)
	}
	if c.History.Capacity < 1 {
		return fmt.Errorf("history capacity must be positive, got %d", c.History.Capacity)
	}
	if !contains(ValidLocales, c.Locale) {
		return fmt.Errorf("invalid locale: %s (valid: %v)", c.Locale, ValidLocales)
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", c.Gemini.Temperature)
	}
	return nil
}

// ValidateGeneration additionally requires credentials for the Gemini API.
func (c *Config) ValidateGeneration() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("Gemini API key not configured (set GEMINI_API_KEY or gemini.api_key)")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
