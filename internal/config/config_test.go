package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
defaults:
  quality: 70
  size_ratio: 0.5
  thread_count: 2
storage:
  backend: memory
backend:
  timeout: 5s
analysis:
  supported_extensions: ["JPG", "png"]
locale:
  language: sv
logging:
  level: debug
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Defaults.Quality != 70 || cfg.Defaults.SizeRatio != 0.5 || cfg.Defaults.ThreadCount != 2 {
		t.Errorf("defaults = %+v", cfg.Defaults)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("storage backend = %q", cfg.Storage.Backend)
	}
	if cfg.Backend.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Backend.Timeout)
	}
	if got := strings.Join(cfg.Analysis.SupportedExtensions, ","); got != ".jpg,.png" {
		t.Errorf("extensions = %s", got)
	}
	if cfg.CollationTag().String() != "sv" {
		t.Errorf("collation tag = %v", cfg.CollationTag())
	}
	// Untouched sections keep their defaults.
	if cfg.Server.Port != 8080 || cfg.Analysis.ThumbnailSize != 64 {
		t.Errorf("server port = %d, thumbnail = %d", cfg.Server.Port, cfg.Analysis.ThumbnailSize)
	}
}

func TestLoadConfigExtensionList(t *testing.T) {
	narrowed, err := LoadConfig(writeConfig(t, "analysis:\n  supported_extensions: [png]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(narrowed.Analysis.SupportedExtensions, ","); got != ".png" {
		t.Errorf("narrowed extensions = %s, want .png", got)
	}

	unset, err := LoadConfig(writeConfig(t, "defaults:\n  quality: 60\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join(DefaultConfig().Analysis.SupportedExtensions, ",")
	if got := strings.Join(unset.Analysis.SupportedExtensions, ","); got != want {
		t.Errorf("default extensions = %s, want %s", got, want)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "defaults:\n  quality: 70\n")
	t.Setenv("IMAGE_COMPRESSOR_DEFAULTS_QUALITY", "40")
	t.Setenv("IMAGE_COMPRESSOR_STORAGE_BACKEND", "none")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Defaults.Quality != 40 {
		t.Errorf("quality = %v, want 40", cfg.Defaults.Quality)
	}
	if cfg.Storage.Backend != "none" {
		t.Errorf("storage = %q", cfg.Storage.Backend)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for an explicit missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mut     func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"quality", func(c *Config) { c.Defaults.Quality = 120 }, true},
		{"ratio", func(c *Config) { c.Defaults.SizeRatio = -0.1 }, true},
		{"storage", func(c *Config) { c.Storage.Backend = "s3" }, true},
		{"remote without url", func(c *Config) { c.Backend.Mode = "remote"; c.Backend.URL = "" }, true},
		{"mode", func(c *Config) { c.Backend.Mode = "grpc" }, true},
		{"port", func(c *Config) { c.Server.Port = 0 }, true},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"language", func(c *Config) { c.Locale.Language = "not a tag!" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mut(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNormalises(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults.ThreadCount = 0
	cfg.Storage.Backend = "REDIS"
	cfg.Analysis.ThumbnailSize = -1
	cfg.Locale.Language = ""
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Defaults.ThreadCount != 4 || cfg.Storage.Backend != "redis" || cfg.Analysis.ThumbnailSize != 64 || cfg.Locale.Language != "und" {
		t.Errorf("not normalised: %+v", cfg)
	}
}

func TestSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults.OutputFolder = "/out"
	s := cfg.Settings()
	if s.Quality != 85 || s.SizeRatio != 0.8 || s.ThreadCount != 4 || s.OutputFolder != "/out" {
		t.Errorf("settings = %+v", s)
	}
}
