package db

import (
	"os"

	"github.com/pkg/errors"
)

// ErrNotConfigured means neither DB_DRIVER nor DB_DSN is set; the send log is
// then simply not written.
var ErrNotConfigured = errors.New("send log database is not configured")

// Config holds the send log database settings, read from the environment.
type Config struct {
	Driver string
	DSN    string // Data Source Name (connection string)
}

// Load reads the database settings from the environment. The driver defaults
// to postgres when only a DSN is given.
func Load() (*Config, error) {
	cfg := &Config{
		Driver: os.Getenv("DB_DRIVER"),
		DSN:    os.Getenv("DB_DSN"),
	}

	if cfg.Driver == "" && cfg.DSN == "" {
		return nil, ErrNotConfigured
	}
	if cfg.DSN == "" {
		return nil, errors.New("environment variable DB_DSN is not set")
	}
	if cfg.Driver == "" {
		cfg.Driver = "postgres"
	}
	return cfg, nil
}
