// Package main provides the deckforge REST API server. It serves deck
// assembly and portfolio analytics over HTTP and runs the scheduled price
// refresh in the background.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramonehamilton/deckforge/internal/api"
	"github.com/ramonehamilton/deckforge/internal/config"
	"github.com/ramonehamilton/deckforge/internal/metrics"
	"github.com/ramonehamilton/deckforge/internal/service"
	"github.com/ramonehamilton/deckforge/internal/version"
)

var (
	configPath  = flag.String("config", "", "Config file path (default: ~/.deckforge/config.toml)")
	addr        = flag.String("addr", "", "Listen address, overrides the config file")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("deckforge-api"))
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	m := metrics.NewEngine()
	svc, err := service.Open(cfg, m, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Error closing service", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	go func() { runErr <- svc.Run(ctx) }()

	server := api.NewServer(api.ConfigFrom(cfg.Server), svc, m, logger)
	if err := server.Start(); err != nil {
		return err
	}
	logger.Info("deckforge API running", "addr", server.Addr(), "version", version.GetVersion())

	select {
	case <-ctx.Done():
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Background service stopped", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	stop()
	logger.Info("API server stopped")
	return nil
}
