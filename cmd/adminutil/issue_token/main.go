package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/lexhub/internal/config"
	"github.com/sudo-init-do/lexhub/internal/engagement"
	"github.com/sudo-init-do/lexhub/internal/middleware"
)

// Mints a bearer token signed with JWT_SECRET, for operators and local runs.
func main() {
	user := flag.String("user", "", "Account id (uuid)")
	role := flag.String("role", "client", "client, provider or admin")
	providerID := flag.String("provider", "", "Provider profile id, required for -role provider")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	userID, err := uuid.Parse(*user)
	if err != nil {
		log.Fatalf("usage: go run ./cmd/adminutil/issue_token -user <uuid> -role client|provider|admin [-provider <uuid>]")
	}
	r := engagement.Role(*role)
	if !r.Valid() || r == engagement.RoleSystem {
		log.Fatalf("invalid role %q", *role)
	}

	var prov *uuid.UUID
	if r == engagement.RoleProvider {
		id, err := uuid.Parse(*providerID)
		if err != nil {
			log.Fatalf("-provider must be a uuid for provider tokens")
		}
		prov = &id
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	tok, err := middleware.SignToken([]byte(cfg.JWTSecret), userID, r, prov, *ttl)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(tok)
}
