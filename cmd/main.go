package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/mimic/internal/adapters/input"
	"github.com/okian/mimic/internal/adapters/repository"
	app "github.com/okian/mimic/internal/app"
	"github.com/okian/mimic/internal/config"
	"github.com/okian/mimic/internal/console"
	"github.com/okian/mimic/pkg/logger"
	"github.com/okian/mimic/pkg/metrics"
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		logger.Get().Error(ctx, "mimic exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the service to the console and blocks until the console quits
// or ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	if err := setupLogging(ctx, cfg); err != nil {
		return err
	}
	log := logger.Get()

	store, err := repository.Open(ctx, cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	retryInitial, retryMax := cfg.PersistRetry()
	svc := app.New(store,
		app.WithLogger(log.Named("service")),
		app.WithInputSource(input.NopSource{Logger: log.Named("input")}),
		app.WithOutputSink(input.NewLogSink(log.Named("sink"))),
		app.WithFlushInterval(cfg.FlushInterval()),
		app.WithReplayPause(cfg.ReplayPause()),
		app.WithSampleInterval(cfg.SampleInterval()),
		app.WithStopTimeout(cfg.StopTimeout()),
		app.WithPersistRetry(retryInitial, retryMax),
	)

	metricsCtx, cancelMetrics := context.WithCancel(ctx)
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if cfg.MetricsAddr == "" {
			return
		}
		metrics.RegisterRuntimeCollectors()
		log.Info(ctx, "serving metrics", logger.String("addr", cfg.MetricsAddr))
		if err := metrics.Serve(metricsCtx, cfg.MetricsAddr); err != nil {
			log.Error(ctx, "metrics endpoint failed", logger.Error(err))
		}
	}()

	log.Info(ctx, "mimic ready",
		logger.String("store_backend", cfg.StoreBackend),
		logger.String("store_path", cfg.StorePath),
	)
	runErr := console.New(svc, in, out, console.WithLogger(log.Named("console"))).Run(ctx)

	// Close with a fresh context so the last batch is flushed after a signal.
	closeErr := svc.Close(context.Background())
	cancelMetrics()
	<-metricsDone

	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("shutdown: %w", closeErr)
	}
	log.Info(ctx, "mimic stopped")
	return nil
}

func setupLogging(ctx context.Context, cfg *config.Config) error {
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel),
			logger.Error(err),
		)
		_ = logger.SetLevelString("info")
	}
	return nil
}
