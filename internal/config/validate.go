package config

import (
	"net/url"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// Validate checks the configuration for invalid values. Every failure is a
// *types.ConfigError, which aborts the run.
func Validate(cfg *Config) error {
	if cfg.Engine.Concurrency < 1 {
		return types.NewConfigError("engine.concurrency", "must be >= 1, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.Concurrency > 64 {
		return types.NewConfigError("engine.concurrency", "must be <= 64, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.PolitenessDelay < 0 {
		return types.NewConfigError("engine.politeness_delay", "must be >= 0")
	}
	if cfg.Engine.RunTimeout < 0 {
		return types.NewConfigError("engine.run_timeout", "must be >= 0")
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return types.NewConfigError("fetcher.request_timeout", "must be > 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return types.NewConfigError("fetcher.max_retries", "must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return types.NewConfigError("fetcher.max_body_size", "must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return types.NewConfigError("fetcher.max_redirects", "must be >= 0")
	}

	switch cfg.Extractor.Type {
	case "command":
		if cfg.Extractor.Command == "" {
			return types.NewConfigError("extractor.command", "required when extractor.type is 'command'")
		}
	case "readability", "browser":
	default:
		return types.NewConfigError("extractor.type", "must be command, readability or browser, got %q", cfg.Extractor.Type)
	}
	if cfg.Extractor.Timeout <= 0 {
		return types.NewConfigError("extractor.timeout", "must be > 0")
	}

	if cfg.Normalize.MaxBodyLength < 1 {
		return types.NewConfigError("normalize.max_body_length", "must be >= 1, got %d", cfg.Normalize.MaxBodyLength)
	}

	switch cfg.Storage.Type {
	case "sqlite", "jsonl":
		if cfg.Storage.Path == "" {
			return types.NewConfigError("storage.path", "required for storage type %q", cfg.Storage.Type)
		}
	case "mongo":
		if cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Database == "" || cfg.Storage.Mongo.Collection == "" {
			return types.NewConfigError("storage.mongo", "uri, database and collection are required")
		}
	case "memory":
	default:
		return types.NewConfigError("storage.type", "%q is not supported (valid: sqlite, mongo, jsonl, memory)", cfg.Storage.Type)
	}
	if cfg.Storage.Redis.Enabled && cfg.Storage.Redis.Addr == "" {
		return types.NewConfigError("storage.redis.addr", "required when redis cache is enabled")
	}

	for name, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		if err := ValidateURL(src.URL); err != nil {
			return &types.ConfigError{Key: "sources." + name + ".url", Err: err}
		}
		if src.MaxItems < 0 {
			return types.NewConfigError("sources."+name+".max_items", "must be >= 0")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return types.NewConfigError("logging.level", "must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return types.NewConfigError("logging.format", "must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return types.NewConfigError("metrics.port", "must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return types.ErrInvalidURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return types.NewConfigError("", "URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return types.NewConfigError("", "URL must have a host")
	}
	return nil
}
