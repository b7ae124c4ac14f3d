package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"eventbooking/internal/config"
	"eventbooking/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var file string

	flagSet := pflag.NewFlagSet("seed-events", pflag.ContinueOnError)
	flagSet.StringVarP(&file, "file", "f", "", "events file, one name;venue;day;price;soldTickets;totalTickets record per line")
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
	if file == "" {
		file = cfg.Seed.EventsFile
	}
	if file == "" {
		return fmt.Errorf("no events file given (use --file or SEED_EVENTS_FILE)")
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

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()

	result, err := database.SeedEvents(context.Background(), db, f)
	if err != nil {
		return fmt.Errorf("failed to seed events: %w", err)
	}

	if result.AlreadySeeded {
		logger.Info("events table already populated, nothing loaded", "file", file)
		return nil
	}
	logger.Info("events seeded", "file", file, "inserted", result.Inserted, "skipped", result.Skipped)
	return nil
}
