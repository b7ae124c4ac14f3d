package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"eventbooking/internal/models"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names the SQL flavour behind a connection
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// DB wraps the connection pool together with its dialect
type DB struct {
	*sql.DB
	Dialect Dialect
}

type Config struct {
	Driver   string // "sqlite3" or "postgres"
	URL      string // Full database URL
	Path     string // SQLite database file
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewConnection(config Config) (*DB, error) {
	dialect := Dialect(config.Driver)
	if dialect == "" {
		dialect = SQLite
	}

	var dsn string
	switch dialect {
	case SQLite:
		dsn = sqliteDSN(config)
	case Postgres:
		// Use full URL if available, otherwise construct from components
		if config.URL != "" {
			dsn = config.URL
		} else {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == SQLite {
		// SQLite allows a single writer; one connection serializes all access
		// and keeps in-memory databases alive for the life of the pool.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

func sqliteDSN(config Config) string {
	if config.URL != "" {
		return config.URL
	}
	path := config.Path
	if path == "" {
		path = "event_booking.db"
	}
	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")
	params.Set("_foreign_keys", "on")
	return "file:" + path + "?" + params.Encode()
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// RunMigrations runs all pending database migrations, logging each one
func (db *DB) RunMigrations(logger *slog.Logger) error {
	migrator := NewMigrator(db.DB, db.Dialect, logger)
	return migrator.RunMigrations()
}

// GetMigrationStatus returns the applied state of every known migration
func (db *DB) GetMigrationStatus() ([]MigrationStatus, error) {
	migrator := NewMigrator(db.DB, db.Dialect, nil)
	return migrator.GetMigrationStatus()
}

// WithTx runs fn inside a transaction, committing when fn returns nil
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewStorageError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return models.NewStorageError("commit transaction", err)
	}
	return nil
}
