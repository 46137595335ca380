package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/vibecodingbible/edge-guard/internal/env"
	"github.com/vibecodingbible/edge-guard/internal/kernel"
	"github.com/vibecodingbible/edge-guard/internal/store"
)

func main() {
	envPath := flag.String("env", ".env", "path to the .env file")
	flag.Parse()

	environment, err := env.Load(*envPath, env.NewValidator())
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(environment.App.LogLevel)
	slog.SetDefault(logger)

	repo := store.NewMemory()
	if environment.App.IsLocal() {
		seed(repo, logger)
	}

	if err := run(environment, logger, repo); err != nil {
		logger.Error("edge-guard stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(environment *env.Environment, logger *slog.Logger, repo *store.Memory) error {
	rt, err := kernel.New(environment, logger, kernel.WithRepository(repo))
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}

	return kernel.RunServer(rt.NewServer())
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// seed registers a demo user so the endpoints can be tried locally.
func seed(repo *store.Memory, logger *slog.Logger) {
	id := uuid.NewString()

	if _, err := repo.UpdateProfile(context.Background(), store.Profile{
		ID:          id,
		Email:       "demo@example.com",
		DisplayName: "Demo",
		Plan:        "free",
	}); err != nil {
		logger.Warn("error seeding demo user", "error", err)
		return
	}

	repo.Grant(store.Grant{UserID: id, ResourceType: "workshop", ResourceID: "*"})

	logger.Info("demo user seeded", "user_id", id)
}
