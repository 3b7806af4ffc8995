// Package main generates one card statistics report from the command line.
// Replies are printed to stdout and full-report images are written to disk.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/ramonehamilton/GCG-Companion/internal/app"
	"github.com/ramonehamilton/GCG-Companion/internal/config"
	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
	"github.com/ramonehamilton/GCG-Companion/internal/report"
	"github.com/ramonehamilton/GCG-Companion/internal/stats"
)

var (
	configPath = flag.String("config", "", "Config file path (default: ~/.gcg-companion/config.toml)")
	uid        = flag.String("uid", "", "Player UID (required)")
	server     = flag.String("server", "", "Game server region")
	outDir     = flag.String("out", ".", "Directory for rendered images")
	asJSON     = flag.Bool("json", false, "Print the report as JSON")
)

// The cookie is read from the environment so it stays out of shell history.
const cookieEnv = "GCG_COOKIE"

func main() {
	flag.Parse()

	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gcg-report: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	if *uid == "" {
		flag.Usage()
		return 2, nil
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return 1, err
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return 1, err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log, &printSink{w: os.Stdout})
	if err != nil {
		return 1, err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("close application", "error", err)
		}
	}()

	user := models.UserContext{UID: *uid, Server: *server, Cookie: os.Getenv(cookieEnv)}
	rep, err := application.Service.GetReport(ctx, user)
	if err != nil {
		if stats.IsDataRegression(err) {
			return 3, err
		}
		return 1, err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return 1, err
		}
	}

	if rep.Status != report.StatusOK {
		return 4, nil
	}
	if rep.Mode != report.ModeFull {
		return 0, nil
	}

	images, err := application.Service.RenderAll(ctx, rep)
	if err != nil {
		return 1, err
	}
	ext := ".html"
	if cfg.Report.Renderer == "png" {
		ext = ".png"
	}
	for i, payload := range []*report.RenderPayload{rep.Avatar, rep.Action} {
		if i >= len(images) {
			break
		}
		name := filepath.Join(*outDir, fmt.Sprintf("%s-%s%s", payload.SaveID, payload.RenderType, ext))
		if err := os.WriteFile(name, images[i], 0o644); err != nil {
			return 1, fmt.Errorf("write image: %w", err)
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", name)
	}
	return 0, nil
}

// printSink writes replies to a terminal.
type printSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *printSink) Send(_ context.Context, msg report.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s\n\n", msg.Text)
	return err
}
