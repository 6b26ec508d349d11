package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/coinledger/backend/internal/config"
	"github.com/coinledger/backend/internal/database"
	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
	"github.com/coinledger/backend/internal/repository/postgres"
	"github.com/coinledger/backend/internal/services"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(); err != nil {
		slog.Error("migration run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("migration run finished successfully")
}

func run() error {
	config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Open(ctx, database.GetConfig())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	//nolint:errcheck
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	slog.Info("migrations applied")

	return seedAdmin(ctx, postgres.New(db))
}

// seedAdmin creates the bootstrap admin account when ADMIN_USERNAME is set
func seedAdmin(ctx context.Context, users repository.UserStore) error {
	username := strings.ToLower(strings.TrimSpace(viper.GetString("admin.username")))
	password := viper.GetString("admin.password")
	if username == "" {
		slog.Info("no admin seed configured")
		return nil
	}
	if len(password) < 6 {
		return errors.New("ADMIN_PASSWORD must be at least 6 characters")
	}

	hash, err := services.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	err = users.InsertUser(ctx, &models.User{Username: username, PasswordHash: hash, Role: models.RoleAdmin})
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		slog.Info("admin already present", "username", username)
		return nil
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	}

	slog.Info("admin seeded", "username", username)
	return nil
}
