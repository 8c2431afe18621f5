package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/newsgoat/internal/api"
	"github.com/IshaanNene/newsgoat/internal/engine"
	"github.com/IshaanNene/newsgoat/internal/types"
)

var (
	serveSchedule string
	servePort     int
	runOnStart    bool
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run sources on a schedule and serve status and metrics",
		RunE:  runServe,
	}
	addRunFlags(cmd)
	cmd.Flags().StringVar(&serveSchedule, "schedule", "", "cron spec or @every duration (overrides schedule.spec)")
	cmd.Flags().IntVar(&servePort, "port", 0, "status server port (overrides metrics.port)")
	cmd.Flags().BoolVar(&runOnStart, "run-now", true, "start a run immediately instead of waiting for the schedule")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if serveSchedule != "" {
		cfg.Schedule.Spec = serveSchedule
	}
	if servePort > 0 {
		cfg.Metrics.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	server := api.NewServer(cfg.Metrics.Port, metricsPath, app.metrics, logger)
	server.SetEngine(app.engine)

	var wg sync.WaitGroup
	fatal := make(chan error, 1)
	runOnce := func() {
		report, err := app.engine.Run(ctx)
		if err != nil {
			if errors.Is(err, engine.ErrAlreadyRunning) {
				logger.Warn("skipping scheduled run, previous run still active")
				return
			}
			logger.Error("run failed", "error", err)
			if types.IsConfigError(err) {
				select {
				case fatal <- err:
				default:
				}
			}
			return
		}
		server.Record(report)
	}
	trigger := func() error {
		if app.engine.GetState() == engine.StateRunning {
			return engine.ErrAlreadyRunning
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			runOnce()
		}()
		return nil
	}
	server.SetTrigger(trigger)

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(cfg.Schedule.Spec, func() { _ = trigger() }); err != nil {
		return &types.ConfigError{Key: "schedule.spec", Err: fmt.Errorf("invalid schedule %q: %w", cfg.Schedule.Spec, err)}
	}

	if err := server.Start(ctx); err != nil {
		return err
	}
	c.Start()
	logger.Info("serving", "schedule", cfg.Schedule.Spec, "port", cfg.Metrics.Port)

	if runOnStart {
		_ = trigger()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-fatal:
	}

	<-c.Stop().Done()
	stop()
	wg.Wait()
	return err
}
