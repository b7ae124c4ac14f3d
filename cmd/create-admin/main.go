package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"eventbooking/internal/config"
	"eventbooking/internal/database"
	"eventbooking/internal/repositories"
	"eventbooking/internal/services"
	"eventbooking/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var username, password string

	flagSet := pflag.NewFlagSet("create-admin", pflag.ContinueOnError)
	flagSet.StringVarP(&username, "username", "u", "", "admin username (default ADMIN_USERNAME)")
	flagSet.StringVarP(&password, "password", "p", "", "admin password (default ADMIN_PASSWORD, generated when neither is set)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if username == "" {
		username = cfg.Admin.Username
	}
	if password == "" {
		password = cfg.Admin.Password
	}
	if username == "" {
		return fmt.Errorf("a username is required (use --username or ADMIN_USERNAME)")
	}
	generated := password == ""
	if generated {
		password, err = utils.GenerateSecureToken(12)
		if err != nil {
			return err
		}
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)

	db, err := database.NewConnection(cfg.Database.Connection())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	auth := services.NewAuthService(
		repositories.NewUserRepository(db.DB),
		utils.NewHasher(utils.DefaultArgon2Params()),
		logger,
	)

	user, err := auth.EnsureAdmin(context.Background(), username, password)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	fmt.Printf("Admin account ready: %s (id %d)\n", user.Username, user.ID)
	if generated {
		fmt.Printf("Generated password: %s\n", password)
	}
	return nil
}
