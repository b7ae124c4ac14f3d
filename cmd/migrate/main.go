package main

import (
	"fmt"
	"os"
	"text/tabwriter"

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
	var status, up bool

	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.BoolVar(&status, "status", false, "show migration status")
	flagSet.BoolVar(&up, "up", false, "run pending migrations")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if !status && !up {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  migrate --status   # show migration status")
		fmt.Fprintln(os.Stderr, "  migrate --up       # run pending migrations")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)

	db, err := database.NewConnection(cfg.Database.Connection())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if up {
		if err := db.RunMigrations(logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Println("All migrations completed successfully!")
	}

	if status {
		migrations, err := db.GetMigrationStatus()
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
		for _, m := range migrations {
			state := "pending"
			if m.Applied {
				state = "applied"
			}
			fmt.Fprintf(w, "%03d\t%s\t%s\n", m.Version, m.Name, state)
		}
		return w.Flush()
	}

	return nil
}
