package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"verdict/internal/adapters/config"
	"verdict/internal/adapters/errors/noop"
	"verdict/internal/adapters/errors/sentry"
	"verdict/internal/history"
	"verdict/internal/pipeline"
	"verdict/internal/tracking"
	"verdict/pkg/errors"
	"verdict/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		// A failed evaluation must be visible to the invoking scheduler
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return err
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// The tracking credential is validated before any file or network work
	if err := cfg.Tracking.Validate(); err != nil {
		log.Errorf("startup aborted: %v", err)
		return err
	}

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Tracking client is explicitly constructed and injected, no global state
	recorder := tracking.NewClient(cfg.Tracking)

	deps := pipeline.Deps{Recorder: recorder}
	if cfg.History.DSN != "" {
		hist, err := history.New(cfg.History.DSN)
		if err != nil {
			log.Warnf("evaluation history disabled: %v", err)
		} else {
			defer hist.Close()
			deps.History = hist
		}
	}

	p := pipeline.New(cfg.Paths, cfg.Tracking.Experiment, deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		log.ErrorWithContext(ctx, err, map[string]string{"component": "pipeline"})
		if flushErr := errorTracker.Flush(ctx); flushErr != nil {
			log.Warnf("failed to flush error tracker: %v", flushErr)
		}
		return err
	}

	log.Info("Evaluation run complete")
	return nil
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}
