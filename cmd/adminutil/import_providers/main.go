package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/app"
	"github.com/sudo-init-do/lexhub/internal/config"
	"github.com/sudo-init-do/lexhub/internal/logging"
	"github.com/sudo-init-do/lexhub/internal/provider"
)

// Loads provider profiles from a JSON array into the configured store.
// Existing profiles keep their rating and completion count.
func main() {
	file := flag.String("file", "", "JSON file with an array of providers")
	dryRun := flag.Bool("dry-run", false, "Validate only")
	flag.Parse()

	if *file == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/import_providers -file providers.json [-dry-run]")
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *file, err)
	}
	var providers []provider.Provider
	if err := json.Unmarshal(raw, &providers); err != nil {
		log.Fatalf("failed to decode %s: %v", *file, err)
	}

	for i := range providers {
		p := &providers[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.Availability == "" {
			p.Availability = provider.AvailabilityWorkingHours
		}
		p.Specializations = provider.NormalizeTags(p.Specializations)
		if err := p.Validate(); err != nil {
			log.Fatalf("provider #%d (%s): %v", i, p.DisplayName, err)
		}
	}
	if *dryRun {
		fmt.Printf("%d providers valid.\n", len(providers))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Store == config.StoreMemory {
		log.Fatalf("STORE=memory: nothing would persist, use -dry-run instead")
	}
	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, closer, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = closer.Shutdown(context.Background()) }()

	for _, p := range providers {
		if err := store.SaveProvider(ctx, p); err != nil {
			log.Fatalf("failed to save provider %s: %v", p.ID, err)
		}
	}
	fmt.Printf("Imported %d providers.\n", len(providers))
}
