package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sudo-init-do/lexhub/internal/app"
	"github.com/sudo-init-do/lexhub/internal/config"
	"github.com/sudo-init-do/lexhub/internal/logging"
)

// Completes confirmed bookings whose window has passed, once. Useful when the
// server's scheduled sweep is disabled or behind.
func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall time limit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}
	defer func() { _ = a.Shutdown(context.Background()) }()

	n, err := a.Service.CompleteElapsed(ctx)
	if err != nil {
		log.Fatalf("sweep stopped after %d bookings: %v", n, err)
	}
	fmt.Printf("Completed %d elapsed bookings.\n", n)
}
