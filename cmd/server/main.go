package main

import (
	"context"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sudo-init-do/lexhub/internal/app"
	"github.com/sudo-init-do/lexhub/internal/config"
	"github.com/sudo-init-do/lexhub/internal/logging"
	"github.com/sudo-init-do/lexhub/internal/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize", "err", err)
		os.Exit(1)
	}

	if err := a.StartSweeper(); err != nil {
		logger.Error("failed to schedule completion sweep", "err", err)
		os.Exit(1)
	}

	go shutdown.Graceful(
		[]os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT},
		15*time.Second,
		logger,
		a,
	)

	if err := a.Run(); err != nil {
		logger.Error("http server exited with error", "err", err)
		os.Exit(1)
	}
	logger.Info("http server stopped")
}
