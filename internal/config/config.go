package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for newsgoat.
type Config struct {
	Engine    EngineConfig            `mapstructure:"engine"    yaml:"engine"`
	Fetcher   FetcherConfig           `mapstructure:"fetcher"   yaml:"fetcher"`
	Extractor ExtractorConfig         `mapstructure:"extractor" yaml:"extractor"`
	Normalize NormalizeConfig         `mapstructure:"normalize" yaml:"normalize"`
	Regions   RegionsConfig           `mapstructure:"regions"   yaml:"regions"`
	Storage   StorageConfig           `mapstructure:"storage"   yaml:"storage"`
	Sources   map[string]SourceConfig `mapstructure:"sources"   yaml:"sources"`
	Logging   LoggingConfig           `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig           `mapstructure:"metrics"   yaml:"metrics"`
	Schedule  ScheduleConfig          `mapstructure:"schedule"  yaml:"schedule"`
}

// EngineConfig controls the orchestrator.
type EngineConfig struct {
	Concurrency     int           `mapstructure:"concurrency"      yaml:"concurrency"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay" yaml:"politeness_delay"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"      yaml:"run_timeout"`
	UserAgents      []string      `mapstructure:"user_agents"      yaml:"user_agents"`
}

// FetcherConfig controls outbound HTTP.
type FetcherConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"       yaml:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"       yaml:"retry_delay"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// ExtractorConfig selects how bodies of pages that are not natively parsed
// get extracted.
type ExtractorConfig struct {
	Type    string        `mapstructure:"type"    yaml:"type"` // command, readability, browser
	Command string        `mapstructure:"command" yaml:"command"`
	Args    []string      `mapstructure:"args"    yaml:"args"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// NormalizeConfig bounds normalized text.
type NormalizeConfig struct {
	MaxBodyLength int `mapstructure:"max_body_length" yaml:"max_body_length"`
}

// RegionsConfig points at the precomputed keyphrase table.
type RegionsConfig struct {
	KeyphraseFile string `mapstructure:"keyphrase_file" yaml:"keyphrase_file"`
	FoldCase      bool   `mapstructure:"fold_case"      yaml:"fold_case"`
}

// StorageConfig controls the dedup/persistence backend.
type StorageConfig struct {
	Type  string      `mapstructure:"type"  yaml:"type"` // mongo, sqlite, jsonl, memory
	Path  string      `mapstructure:"path"  yaml:"path"`
	Mongo MongoConfig `mapstructure:"mongo" yaml:"mongo"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// RedisConfig enables the seen-URL cache in front of the backing store.
type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr    string        `mapstructure:"addr"    yaml:"addr"`
	Key     string        `mapstructure:"key"     yaml:"key"`
	TTL     time.Duration `mapstructure:"ttl"     yaml:"ttl"`
}

// SourceConfig is the per-source enablement flag plus endpoint parameters.
type SourceConfig struct {
	Enabled  bool          `mapstructure:"enabled"   yaml:"enabled"`
	URL      string        `mapstructure:"url"       yaml:"url"`
	MinWorth float64       `mapstructure:"min_worth" yaml:"min_worth"`
	Channels []string      `mapstructure:"channels"  yaml:"channels"`
	MaxItems int           `mapstructure:"max_items" yaml:"max_items"`
	MaxAge   time.Duration `mapstructure:"max_age"   yaml:"max_age"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the status/metrics server used by serve mode.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// ScheduleConfig controls serve mode.
type ScheduleConfig struct {
	Spec string `mapstructure:"spec" yaml:"spec"`
}

// Source names known to the binary.
const (
	SourceAntiwar   = "antiwar"
	SourceForbes    = "forbes400"
	SourceYouTube   = "youtube"
	SourceWikipedia = "wikipedia"
)

// Source returns the configuration for name, or a zero (disabled) value.
func (c *Config) Source(name string) SourceConfig {
	if c.Sources == nil {
		return SourceConfig{}
	}
	return c.Sources[name]
}

// SourceEnabled reports whether name is switched on.
func (c *Config) SourceEnabled(name string) bool {
	return c.Source(name).Enabled
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Concurrency:     4,
			PolitenessDelay: 10 * time.Second,
			RunTimeout:      30 * time.Minute,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Fetcher: FetcherConfig{
			RequestTimeout:  30 * time.Second,
			MaxRetries:      2,
			RetryDelay:      2 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    32,
		},
		Extractor: ExtractorConfig{
			Type:    "readability",
			Timeout: 60 * time.Second,
		},
		Normalize: NormalizeConfig{
			MaxBodyLength: 2000,
		},
		Storage: StorageConfig{
			Type: "sqlite",
			Path: "./newsgoat.db",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "newsgoat",
				Collection: "media",
			},
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "newsgoat:seen",
			},
		},
		Sources: map[string]SourceConfig{
			SourceAntiwar: {
				Enabled:  true,
				URL:      "https://www.antiwar.com/latest.php",
				MaxItems: 60,
			},
			SourceForbes: {
				Enabled:  true,
				URL:      "https://forbes400.onrender.com/api/forbes400/getAllBillionaires",
				MinWorth: 9900,
			},
			SourceYouTube: {
				Enabled: false,
				URL:     "https://www.youtube.com/feeds/videos.xml",
				MaxAge:  48 * time.Hour,
			},
			SourceWikipedia: {
				Enabled:  false,
				URL:      "https://en.wikipedia.org/wiki/Portal:Current_events",
				MaxItems: 40,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Schedule: ScheduleConfig{
			Spec: "@every 1h",
		},
	}
}
