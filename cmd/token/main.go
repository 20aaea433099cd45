// Command token signs a session token for a back-office user, for local
// development and smoke tests against a running server.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"foundation_site/internal/auth"
	"foundation_site/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	userID := flag.String("user", "", "user id (token subject)")
	email := flag.String("email", "", "user email")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *userID == "" {
		logger.Error("-user is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      *ttl,
	})
	if err != nil {
		logger.Error("failed to configure auth", "error", err)
		os.Exit(1)
	}

	token, err := verifier.Issue(auth.Identity{UserID: *userID, Email: *email})
	if err != nil {
		logger.Error("failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
