// Package main runs the card statistics report server: a REST endpoint
// that generates reports and a WebSocket stream that carries the replies.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramonehamilton/GCG-Companion/internal/api"
	"github.com/ramonehamilton/GCG-Companion/internal/api/websocket"
	"github.com/ramonehamilton/GCG-Companion/internal/app"
	"github.com/ramonehamilton/GCG-Companion/internal/config"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
	"github.com/ramonehamilton/GCG-Companion/internal/version"
)

var (
	configPath = flag.String("config", "", "Config file path (default: ~/.gcg-companion/config.toml)")
	port       = flag.Int("port", 0, "API server port (overrides config)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gcg-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	path := *configPath
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			return err
		}
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(log)
	application, err := app.New(ctx, cfg, log, hub)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("close application", "error", err)
		}
	}()

	timeout, _ := cfg.GetRequestTimeout()
	server := api.NewServer(&api.Config{
		Port:           cfg.Server.Port,
		RequestTimeout: timeout,
	}, api.Dependencies{
		Reports:  application.Service,
		Metrics:  application.Metrics,
		Provider: application.Provider,
		Hub:      hub,
		Logger:   log,
	})
	if err := server.Start(); err != nil {
		return err
	}

	go func() {
		err := config.Watch(ctx, path, application.ApplyConfig, func(err error) {
			log.Warn("config reload failed", "path", path, "error", err)
		})
		if err != nil {
			log.Warn("config watcher stopped", "path", path, "error", err)
		}
	}()

	log.Info("gcg-server running",
		"version", version.GetVersion(),
		"port", cfg.Server.Port,
		"backend", cfg.Snapshot.Backend,
		"renderer", cfg.Report.Renderer,
	)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
