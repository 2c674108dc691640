package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"API_KEY", "GEMINI_API_KEY", "VISUALSOAL_HISTORY_BACKEND", "VISUALSOAL_HISTORY_PATH", "VISUALSOAL_LOCALE"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Gemini.TextModel != "gemini-3-flash-preview" {
		t.Errorf("expected TextModel=gemini-3-flash-preview, got %s", cfg.Gemini.TextModel)
	}
	if cfg.Gemini.ImageModel != "gemini-2.5-flash-image" {
		t.Errorf("expected ImageModel=gemini-2.5-flash-image, got %s", cfg.Gemini.ImageModel)
	}
	if cfg.Gemini.Temperature != 0.3 {
		t.Errorf("expected Temperature=0.3, got %v", cfg.Gemini.Temperature)
	}
	if cfg.History.Capacity != 50 || cfg.History.Key != "visual_soal_history_v1" {
		t.Errorf("unexpected history defaults: %+v", cfg.History)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Gemini.APIKey = "test-key"
	cfg.History.Backend = "sqlite"
	cfg.History.Driver = "sqlite"
	cfg.Locale = "en"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Gemini.APIKey != "test-key" {
		t.Errorf("expected APIKey=test-key, got %s", loaded.Gemini.APIKey)
	}
	if loaded.History.Backend != "sqlite" || loaded.History.Driver != "sqlite" {
		t.Errorf("unexpected history config: %+v", loaded.History)
	}
	if loaded.Locale != "en" {
		t.Errorf("expected Locale=en, got %s", loaded.Locale)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.History.Backend != "file" {
		t.Errorf("expected default backend, got %s", cfg.History.Backend)
	}
}

func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("locale: en\nhistory:\n  backend: memory\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gemini.TextModel != DefaultTextModel || cfg.History.Capacity != DefaultCapacity {
		t.Errorf("defaults lost on partial file: %+v", cfg)
	}
	if cfg.History.Backend != "memory" || cfg.Locale != "en" {
		t.Errorf("file values not applied: %+v", cfg)
	}
}

func TestConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("gemini: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "hosted-key")
	t.Setenv("VISUALSOAL_HISTORY_BACKEND", "bolt")
	t.Setenv("VISUALSOAL_LOCALE", "en")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	if cfg.Gemini.APIKey != "hosted-key" {
		t.Errorf("expected APIKey=hosted-key, got %s", cfg.Gemini.APIKey)
	}
	if cfg.History.Backend != "bolt" || cfg.Locale != "en" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	cfg.applyEnvOverrides()
	if cfg.Gemini.APIKey != "gemini-key" {
		t.Errorf("GEMINI_API_KEY should take precedence, got %s", cfg.Gemini.APIKey)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateGeneration(); err == nil {
		t.Error("expected validation error for missing API key")
	}

	cfg.Gemini.APIKey = "test-key"
	if err := cfg.ValidateGeneration(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}

	cfg.History.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid backend")
	}

	cfg = DefaultConfig()
	cfg.History.Backend = "sqlite"
	cfg.History.Driver = "pgx"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid driver")
	}

	cfg = DefaultConfig()
	cfg.Locale = "fr"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid locale")
	}

	cfg = DefaultConfig()
	cfg.History.Capacity = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative capacity")
	}
}

func TestConfig_GetTimeout(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.GetTimeout().Seconds() != 120 {
		t.Errorf("expected 120s, got %v", cfg.GetTimeout())
	}
	cfg.Gemini.Timeout = "not-a-duration"
	if cfg.GetTimeout().Seconds() != 120 {
		t.Errorf("expected fallback 120s, got %v", cfg.GetTimeout())
	}
	cfg.Gemini.Timeout = "45s"
	if cfg.GetTimeout().Seconds() != 45 {
		t.Errorf("expected 45s, got %v", cfg.GetTimeout())
	}
}
