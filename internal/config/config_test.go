package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IshaanNene/newsgoat/internal/types"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"zero concurrency", func(c *Config) { c.Engine.Concurrency = 0 }, "engine.concurrency"},
		{"negative delay", func(c *Config) { c.Engine.PolitenessDelay = -time.Second }, "engine.politeness_delay"},
		{"unknown extractor", func(c *Config) { c.Extractor.Type = "python" }, "extractor.type"},
		{"command without binary", func(c *Config) { c.Extractor.Type = "command" }, "extractor.command"},
		{"zero body length", func(c *Config) { c.Normalize.MaxBodyLength = 0 }, "normalize.max_body_length"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "postgres" }, "storage.type"},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"redis without addr", func(c *Config) {
			c.Storage.Redis.Enabled = true
			c.Storage.Redis.Addr = ""
		}, "storage.redis.addr"},
		{"enabled source without url", func(c *Config) {
			c.Sources[SourceAntiwar] = SourceConfig{Enabled: true}
		}, "sources.antiwar.url"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			ce, ok := err.(*types.ConfigError)
			if !ok {
				t.Fatalf("expected *types.ConfigError, got %T", err)
			}
			if ce.Key != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, ce.Key)
			}
		})
	}
}

func TestDisabledSourceNeedsNoURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources[SourceYouTube] = SourceConfig{Enabled: false}
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled source must not be validated: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "newsgoat.yaml")
	content := `
engine:
  concurrency: 2
  politeness_delay: 3s
storage:
  type: memory
sources:
  antiwar:
    enabled: false
  youtube:
    enabled: true
    channels: ["UC123", "UC456"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.PolitenessDelay != 3*time.Second {
		t.Errorf("expected 3s delay, got %s", cfg.Engine.PolitenessDelay)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected memory storage, got %q", cfg.Storage.Type)
	}
	if cfg.SourceEnabled(SourceAntiwar) {
		t.Error("antiwar should be disabled by file")
	}
	yt := cfg.Source(SourceYouTube)
	if !yt.Enabled || len(yt.Channels) != 2 {
		t.Errorf("youtube not loaded from file: %+v", yt)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Source(SourceForbes).MinWorth != 9900 {
		t.Errorf("expected forbes default min_worth 9900, got %v", cfg.Source(SourceForbes).MinWorth)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NEWSGOAT_SOURCES_FORBES400_ENABLED", "false")
	t.Setenv("NEWSGOAT_NORMALIZE_MAX_BODY_LENGTH", "500")

	cfg, err := Load(filepath.Join("testdata", "missing-but-optional.yaml"))
	if err == nil {
		t.Fatal("an explicit missing config path should fail")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceEnabled(SourceForbes) {
		t.Error("env should disable forbes400")
	}
	if cfg.Normalize.MaxBodyLength != 500 {
		t.Errorf("expected max body 500 from env, got %d", cfg.Normalize.MaxBodyLength)
	}
}

func TestValidateURL(t *testing.T) {
	good := []string{"https://www.antiwar.com/latest.php", "http://localhost:8080/x"}
	bad := []string{"", "ftp://example.com", "/relative/path", "https://"}
	for _, u := range good {
		if err := ValidateURL(u); err != nil {
			t.Errorf("%q should be valid: %v", u, err)
		}
	}
	for _, u := range bad {
		if err := ValidateURL(u); err == nil {
			t.Errorf("%q should be invalid", u)
		}
	}
}
