package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"eventbooking/internal/database"
)

const defaultSessionSecret = "change-me-session-secret-32-bytes!"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Admin    AdminConfig
	Seed     SeedConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
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

type SessionConfig struct {
	Secret string
	Name   string
	MaxAge int // seconds
	Secure bool
}

// AdminConfig is the account ensured at startup when both fields are set
type AdminConfig struct {
	Username string
	Password string
}

type SeedConfig struct {
	EventsFile string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	env := getEnv("ENV", "development")
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "localhost"),
			Env:  env,
		},
		Database: parseDatabaseConfig(),
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", defaultSessionSecret),
			Name:   getEnv("SESSION_NAME", "eventbooking_session"),
			MaxAge: getEnvAsInt("SESSION_MAX_AGE", 86400),
			Secure: getEnvAsBool("SESSION_SECURE", env == "production"),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Seed: SeedConfig{
			EventsFile: getEnv("SEED_EVENTS_FILE", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings that are unsafe or unusable
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case string(database.SQLite), string(database.Postgres):
	default:
		return errors.New("DB_DRIVER must be sqlite3 or postgres")
	}
	if c.Server.Env == "production" && c.Session.Secret == defaultSessionSecret {
		return errors.New("SESSION_SECRET must be set in production")
	}
	if c.Session.MaxAge <= 0 {
		return errors.New("SESSION_MAX_AGE must be positive")
	}
	if (c.Admin.Username == "") != (c.Admin.Password == "") {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Connection converts the database settings for database.NewConnection
func (d DatabaseConfig) Connection() database.Config {
	return database.Config{
		Driver:   d.Driver,
		URL:      d.URL,
		Path:     d.Path,
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		DBName:   d.DBName,
		SSLMode:  d.SSLMode,
	}
}

func parseDatabaseConfig() DatabaseConfig {
	driver := getEnv("DB_DRIVER", string(database.SQLite))

	// Check if DATABASE_URL is provided
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL != "" && driver == string(database.Postgres) {
		return parseDatabaseURL(databaseURL)
	}

	// Fall back to individual environment variables
	return DatabaseConfig{
		Driver:   driver,
		URL:      databaseURL,
		Path:     getEnv("DB_PATH", "event_booking.db"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "event_booking"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func parseDatabaseURL(databaseURL string) DatabaseConfig {
	config := DatabaseConfig{
		Driver: string(database.Postgres),
		URL:    databaseURL,
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		// If parsing fails, return the URL as-is
		return config
	}

	config.Host = u.Hostname()
	if u.Port() != "" {
		config.Port, _ = strconv.Atoi(u.Port())
	} else {
		config.Port = 5432 // Default PostgreSQL port
	}

	if u.User != nil {
		config.User = u.User.Username()
		config.Password, _ = u.User.Password()
	}

	config.DBName = strings.TrimPrefix(u.Path, "/")

	config.SSLMode = u.Query().Get("sslmode")
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
