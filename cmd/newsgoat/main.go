package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/engine"
	"github.com/IshaanNene/newsgoat/internal/fetcher"
	"github.com/IshaanNene/newsgoat/internal/observability"
	"github.com/IshaanNene/newsgoat/internal/region"
	"github.com/IshaanNene/newsgoat/internal/scraper"
	"github.com/IshaanNene/newsgoat/internal/storage"
	"github.com/IshaanNene/newsgoat/internal/types"
)

var (
	cfgFile     string
	verbose     bool
	logFormat   string
	storageType string
	storagePath string
	concurrent  int
	delay       string
	onlySources string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsgoat",
		Short: "newsgoat: region-tagged news ingestion",
		Long: `newsgoat pulls items from a fixed set of news sources, strips them to
plain text, tags each with the regions it mentions and stores every URL once.

Sources:
  antiwar     latest-headlines listing (same-day index only)
  forbes400   billionaires API, tagged by country of citizenship
  youtube     channel feeds
  wikipedia   current events portal`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(regionsCmd())
	rootCmd.AddCommand(keyphrasesCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addRunFlags registers the flags shared by run and serve.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&storageType, "storage", "", "storage backend: sqlite, mongo, jsonl, memory")
	cmd.Flags().StringVar(&storagePath, "db", "", "database or file path for sqlite/jsonl storage")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "number of sources scraped in parallel")
	cmd.Flags().StringVar(&delay, "delay", "", "politeness delay before revisiting an origin")
	cmd.Flags().StringVar(&onlySources, "sources", "", "comma-separated sources to run; all others are disabled")
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every enabled source once",
		RunE:  runOnce,
	}
	addRunFlags(cmd)
	return cmd
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	printReport(os.Stdout, report)
	return nil
}

// app holds everything a run needs, built once from the config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *engine.Engine
	gate     *fetcher.Gate
	store    storage.Store
	metrics  *observability.Metrics
	registry *scraper.Registry
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	entries, err := region.Load(cfg.Regions.KeyphraseFile)
	if err != nil {
		return nil, &types.ConfigError{Key: "regions.keyphrase_file", Err: err}
	}
	idx := region.NewBuilder(logger).AddEntries(entries).Build()
	tagger := region.NewTagger(idx, region.TaggerOptions{FoldCase: cfg.Regions.FoldCase})
	lookup := region.NewLookup(entries)

	metrics := observability.NewMetrics(logger)

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	extractor, err := fetcher.NewExtractor(cfg, httpFetcher, logger)
	if err != nil {
		httpFetcher.Close()
		return nil, err
	}
	gate := fetcher.NewGate(httpFetcher, extractor, cfg, logger, fetcher.WithMetrics(metrics))

	store, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		gate.Close()
		return nil, fmt.Errorf("create storage: %w", err)
	}

	registry := scraper.DefaultRegistry(logger)

	eng := engine.New(cfg, logger)
	eng.SetRegistry(registry)
	eng.SetGate(gate)
	eng.SetStore(store)
	eng.SetRegions(tagger, lookup)
	eng.SetMetrics(metrics)

	logger.Info("newsgoat ready",
		"regions", idx.Len(),
		"storage", store.Name(),
		"extractor", extractor.Type(),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		engine:   eng,
		gate:     gate,
		store:    store,
		metrics:  metrics,
		registry: registry,
	}, nil
}

// Close releases the gate and the store.
func (a *app) Close() {
	if err := a.gate.Close(); err != nil {
		a.logger.Error("fetch gate close error", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("storage close error", "error", err)
	}
}

// loadConfig reads, overrides and validates the configuration and builds
// the logger it asks for.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyCLIOverrides(cfg); err != nil {
		return nil, nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg), nil
}

// setupLogger creates a structured logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) error {
	if logFormat != "" {
		cfg.Logging.Format = strings.ToLower(logFormat)
	}
	if storageType != "" {
		cfg.Storage.Type = strings.ToLower(storageType)
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
	}
	if concurrent > 0 {
		cfg.Engine.Concurrency = concurrent
	}
	if delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("invalid --delay %q: %w", delay, err)
		}
		cfg.Engine.PolitenessDelay = d
	}
	if onlySources != "" {
		wanted := make(map[string]bool)
		for _, name := range strings.Split(onlySources, ",") {
			if name = strings.TrimSpace(name); name != "" {
				wanted[name] = true
			}
		}
		for name := range wanted {
			if _, ok := cfg.Sources[name]; !ok {
				return fmt.Errorf("unknown source %q", name)
			}
		}
		for name, src := range cfg.Sources {
			src.Enabled = wanted[name]
			cfg.Sources[name] = src
		}
	}
	return nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("newsgoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Engine:\n")
			fmt.Printf("  Concurrency:       %d\n", cfg.Engine.Concurrency)
			fmt.Printf("  Politeness Delay:  %s\n", cfg.Engine.PolitenessDelay)
			fmt.Printf("  Run Timeout:       %s\n", cfg.Engine.RunTimeout)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Engine.UserAgents))
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Request Timeout:   %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Max Retries:       %d\n", cfg.Fetcher.MaxRetries)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nExtractor:\n")
			fmt.Printf("  Type:              %s\n", cfg.Extractor.Type)
			if cfg.Extractor.Command != "" {
				fmt.Printf("  Command:           %s %s\n", cfg.Extractor.Command, strings.Join(cfg.Extractor.Args, " "))
			}
			fmt.Printf("  Timeout:           %s\n", cfg.Extractor.Timeout)
			fmt.Printf("\nNormalize:\n")
			fmt.Printf("  Max Body Length:   %d\n", cfg.Normalize.MaxBodyLength)
			fmt.Printf("\nRegions:\n")
			keyphrases := cfg.Regions.KeyphraseFile
			if keyphrases == "" {
				keyphrases = "(embedded)"
			}
			fmt.Printf("  Keyphrase File:    %s\n", keyphrases)
			fmt.Printf("  Fold Case:         %v\n", cfg.Regions.FoldCase)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  Path:              %s\n", cfg.Storage.Path)
			fmt.Printf("  Redis Cache:       %v\n", cfg.Storage.Redis.Enabled)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			fmt.Printf("\nSchedule:            %s\n", cfg.Schedule.Spec)
			return nil
		},
	}
	return cmd
}
