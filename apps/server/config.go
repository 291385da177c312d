package main

import (
	"fmt"
	"strings"
	"time"

	"clocktower-lite/apps/server/internal/dbutil"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration read from the environment.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	// GRPCAddr enables the gRPC health endpoint when set.
	GRPCAddr string `env:"GRPC_ADDR"`

	StorageMode       string `env:"STORAGE_MODE" envDefault:"sqlite"`
	LocalDatabasePath string `env:"LOCAL_DATABASE_PATH"`
	DatabaseURL       string `env:"DATABASE_URL"`

	SessionTTL     time.Duration `env:"AUTH_SESSION_TTL" envDefault:"336h"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`

	// LedgerImportCSV is a legacy match log loaded once at startup.
	LedgerImportCSV string `env:"LEDGER_IMPORT_CSV"`

	TableIdleTTL  time.Duration `env:"TABLE_IDLE_TTL" envDefault:"30m"`
	BluffFallback string        `env:"BLUFF_FALLBACK" envDefault:"N/A"`
}

// loadConfig parses environ, or the process environment when environ is nil.
func loadConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StorageMode = strings.ToLower(strings.TrimSpace(cfg.StorageMode))
	if cfg.StorageMode == "sqlite" && strings.TrimSpace(cfg.LocalDatabasePath) == "" {
		path, err := dbutil.DefaultLocalPath()
		if err != nil {
			return Config{}, fmt.Errorf("resolve local database path: %w", err)
		}
		cfg.LocalDatabasePath = path
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageMode {
	case "memory", "sqlite":
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid STORAGE_MODE %q (supported: memory, sqlite, postgres)", c.StorageMode)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("AUTH_SESSION_TTL must be positive")
	}
	if c.TableIdleTTL <= 0 {
		return fmt.Errorf("TABLE_IDLE_TTL must be positive")
	}
	if strings.TrimSpace(c.BluffFallback) == "" {
		return fmt.Errorf("BLUFF_FALLBACK must not be blank")
	}
	return nil
}
