package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/zono819/tickpulse/internal/infrastructure/config"
	"github.com/zono819/tickpulse/internal/infrastructure/feedserver"
	"github.com/zono819/tickpulse/internal/infrastructure/logger"
	"github.com/zono819/tickpulse/internal/infrastructure/simulator"
	"github.com/zono819/tickpulse/internal/infrastructure/wsserver"
)

var version = "dev"

func main() {
	os.Exit(realMain())
}

// realMain returns the exit code so deferred cleanup runs before exit
func realMain() int {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file")
	addr := flag.String("addr", "", "listen address (overrides feed_server.addr)")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("feedsim %s\n", version)
		return 0
	}

	// Bootstrap logger until the configured one is ready
	log := logger.New(logger.LevelInfo, os.Stdout)
	logger.SetDefault(log)

	// Load environment variables
	if err := godotenv.Load(*envPath); err != nil {
		log.Debug(".env not loaded (%v), using process environment", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("Failed to load config: %v", err)
		return 1
	}
	if *addr != "" {
		cfg.FeedServer.Addr = *addr
	}

	log = logger.NewWithFormat(logger.ParseLevel(cfg.Log.Level), os.Stdout, logger.Format(cfg.Log.Format))
	defer log.Sync()
	logger.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("feedsim error: %v", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	sim := simulator.New(simulator.Config{
		TickInterval: cfg.Simulator.TickInterval,
		Seed:         cfg.Simulator.Seed,
		Symbols:      cfg.Simulator.Symbols,
	}, simulator.WithLogger(log))

	hub := wsserver.New(wsserver.Config{
		WriteTimeout: cfg.Server.WriteTimeout,
		PingInterval: cfg.Server.PingInterval,
		SendBuffer:   cfg.Server.SendBuffer,
	}, wsserver.WithLogger(log))
	server := feedserver.New(sim, hub, cfg.FeedServer.WSPath, log)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start feed: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.FeedServer.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Feed server listening on %s (ws: %s, tick interval: %s)",
			cfg.FeedServer.Addr, cfg.FeedServer.WSPath, cfg.Simulator.TickInterval)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("feed server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.GracePeriod)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			log.Warn("Feed stop: %v", err)
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
