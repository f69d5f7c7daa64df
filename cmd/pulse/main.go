package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/zono819/tickpulse/internal/adapter/gateway"
	"github.com/zono819/tickpulse/internal/domain/entity"
	"github.com/zono819/tickpulse/internal/infrastructure/codec"
	"github.com/zono819/tickpulse/internal/infrastructure/config"
	"github.com/zono819/tickpulse/internal/infrastructure/feed"
	"github.com/zono819/tickpulse/internal/infrastructure/logger"
	"github.com/zono819/tickpulse/internal/infrastructure/metrics"
	"github.com/zono819/tickpulse/internal/infrastructure/simulator"
	"github.com/zono819/tickpulse/internal/infrastructure/stream"
	"github.com/zono819/tickpulse/internal/infrastructure/wsserver"
	"github.com/zono819/tickpulse/internal/usecase"
	"github.com/zono819/tickpulse/internal/usecase/engine"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	os.Exit(realMain())
}

// realMain returns the exit code so deferred cleanup runs before exit
func realMain() int {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tickpulse %s (built: %s)\n", version, buildTime)
		return 0
	}

	// Bootstrap logger until the configured one is ready
	log := logger.New(logger.LevelInfo, os.Stdout)
	logger.SetDefault(log)

	// Load environment variables
	if err := godotenv.Load(*envPath); err != nil {
		log.Debug(".env not loaded (%v), using process environment", err)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("Failed to load config: %v", err)
		return 1
	}

	log, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		logger.Default().Error("Failed to open log output: %v", err)
		return 1
	}
	defer closeLog.Close()
	defer log.Sync()
	logger.SetDefault(log)

	// Create context cancelled on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("tickpulse error: %v", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting %s %s in %s mode (feed: %s, codec: %s)",
		cfg.App.Name, version, cfg.App.Environment, cfg.Feed.Source, cfg.Server.Codec)

	collector := metrics.New(cfg.Metrics.Namespace, cfg.Metrics.AverageWindow)

	eng, err := engine.New(engineConfig(cfg.Engine),
		engine.WithLogger(log),
		engine.WithRecorder(collector),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	wireCodec, err := codec.New(cfg.Server.Codec)
	if err != nil {
		return err
	}
	hub := wsserver.New(wsserver.Config{
		WriteTimeout: cfg.Server.WriteTimeout,
		PingInterval: cfg.Server.PingInterval,
		ReadLimit:    cfg.Server.ReadLimit,
		SendBuffer:   cfg.Server.SendBuffer,
		Binary:       wireCodec.Binary(),
	}, wsserver.WithLogger(log), wsserver.WithRecorder(collector))
	publisher := stream.New(hub, wireCodec, log)
	defer publisher.Close()

	pipeline := usecase.NewPipelineUseCase(newFeed(cfg, log), eng, publisher, usecase.PipelineConfig{
		CommandBuffer: cfg.Engine.CommandBuffer,
		StatsInterval: cfg.Metrics.StatsInterval,
		StopTimeout:   cfg.App.GracePeriod,
	}, usecase.WithPipelineLogger(log), usecase.WithStats(collector))

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, hub)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, collector.Handler())
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","clients":%d}`, hub.Len())
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pipeline.Run(gctx)
	})

	g.Go(func() error {
		log.Info("Stream listening on %s%s", cfg.Server.Addr, cfg.Server.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("stream server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.GracePeriod)
		defer shutdownCancel()
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("tickpulse stopped")
	return nil
}

func newFeed(cfg *config.Config, log *logger.Logger) gateway.TickFeed {
	if cfg.Feed.Source == config.FeedRemote {
		return feed.New(feed.Config{
			WSURL:        cfg.Feed.WSURL,
			BaseURL:      cfg.Feed.BaseURL,
			ReconnectMin: cfg.Feed.ReconnectMin,
			ReconnectMax: cfg.Feed.ReconnectMax,
			Timeout:      cfg.Feed.Timeout,
		}, log)
	}
	return simulator.New(simulator.Config{
		TickInterval: cfg.Simulator.TickInterval,
		Seed:         cfg.Simulator.Seed,
		Symbols:      cfg.Simulator.Symbols,
	}, simulator.WithLogger(log))
}

func engineConfig(c config.EngineConfig) engine.Config {
	return engine.Config{
		Timeframe:      entity.Timeframe(c.Timeframe),
		History1m:      c.History1m,
		History1h:      c.History1h,
		SparklineSize:  c.SparklineSize,
		SparklineEvery: c.SparklineEvery,
		MaxCandles:     c.MaxCandles,
		FlushInterval:  c.FlushInterval,
		Throttle:       c.Throttle,
		DropStaleTicks: c.DropStaleTicks,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger builds the configured logger; output is stdout, stderr or a file path
func newLogger(c config.LogConfig) (*logger.Logger, io.Closer, error) {
	var out io.Writer
	var closer io.Closer = nopCloser{}
	switch c.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out, closer = f, f
	}
	return logger.NewWithFormat(logger.ParseLevel(c.Level), out, logger.Format(c.Format)), closer, nil
}
