// Command tokengen mints a signed auth cookie for a user, optionally creating
// the user record first. It reads the same environment as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cooperative-ai/backend/pkg/config"
	"cooperative-ai/backend/pkg/di"
	"cooperative-ai/backend/pkg/jwt"
	"cooperative-ai/backend/pkg/logger"

	"github.com/google/uuid"
)

func main() {
	userID := flag.String("user", "", "user id to issue the token for (default: new uuid)")
	seed := flag.Bool("seed", false, "create an empty user record if none exists")
	name := flag.String("name", "", "name for a seeded user")
	email := flag.String("email", "", "email for a seeded user")
	expiry := flag.Duration("expiry", 0, "token lifetime (default: JWT_EXPIRY)")
	flag.Parse()

	cfg := config.New()
	log := logger.New(logger.Config{Level: "warn", Output: os.Stderr})

	id := *userID
	if id == "" {
		id = uuid.NewString()
	}

	if *seed {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// The AI provider is not needed to seed users
		if cfg.AI.APIKey == "" {
			cfg.AI.APIKey = "unused"
		}
		container, err := di.Build(ctx, cfg, log)
		if err != nil {
			log.LogError(err, "Failed to connect to the user store")
			os.Exit(1)
		}
		defer func() { _ = container.Close(context.Background()) }()

		_, created, err := container.UserService.EnsureUser(ctx, id, *name, *email)
		if err != nil {
			log.LogError(err, "Failed to seed user", "user_id", id)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "user %s (created=%t)\n", id, created)
	}

	lifetime := cfg.Auth.JWTExpiry
	if *expiry > 0 {
		lifetime = *expiry
	}

	token, err := jwt.NewService(cfg.Auth.JWTSecret, lifetime).GenerateToken(id)
	if err != nil {
		log.LogError(err, "Failed to sign token")
		os.Exit(1)
	}

	fmt.Printf("%s=%s\n", cfg.Auth.CookieName, jwt.NewCookieSigner(cfg.Auth.CookieSecret).CookieValue(token))
}
