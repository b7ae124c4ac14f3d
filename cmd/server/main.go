package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"eventbooking/internal/config"
	"eventbooking/internal/database"
	"eventbooking/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var seedFile string
	var skipMigrations bool

	flagSet := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flagSet.StringVar(&seedFile, "seed", "", "semicolon separated events file loaded into an empty events table (overrides SEED_EVENTS_FILE)")
	flagSet.BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations at startup")
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
	if seedFile != "" {
		cfg.Seed.EventsFile = seedFile
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	db, err := database.NewConnection(cfg.Database.Connection())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("database connection established", "driver", db.Dialect)

	if !skipMigrations {
		if err := db.RunMigrations(logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Seed.EventsFile != "" {
		if err := seedEvents(ctx, db, cfg.Seed.EventsFile, logger); err != nil {
			return err
		}
	}

	app := server.NewApp(db, nil, logger)

	if cfg.Admin.Username != "" {
		if _, err := app.Auth.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			return fmt.Errorf("failed to ensure admin account: %w", err)
		}
	}

	return server.New(cfg, app).Run(ctx)
}

func seedEvents(ctx context.Context, db *database.DB, path string, logger *slog.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()

	result, err := database.SeedEvents(ctx, db, file)
	if err != nil {
		return fmt.Errorf("failed to seed events: %w", err)
	}
	if result.AlreadySeeded {
		logger.Info("events table already populated, seed skipped", "file", path)
		return nil
	}
	logger.Info("events seeded", "file", path, "inserted", result.Inserted, "skipped", result.Skipped)
	return nil
}
