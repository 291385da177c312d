package auth

import (
	"fmt"
	"strings"
	"time"
)

const (
	ModeMemory   = "memory"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
)

// Options selects and configures an account backend.
type Options struct {
	Mode        string
	SQLitePath  string
	PostgresDSN string
	SessionTTL  time.Duration
}

func normalizeMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", ModeSQLite, "local":
		return ModeSQLite
	case ModeMemory, "mem":
		return ModeMemory
	case ModePostgres, "postgresql", "db":
		return ModePostgres
	default:
		return raw
	}
}

// NewService opens the backend named by opts.Mode and reports the resolved mode.
func NewService(opts Options) (Service, string, error) {
	mode := normalizeMode(opts.Mode)
	switch mode {
	case ModeMemory:
		return NewManager(opts.SessionTTL), mode, nil
	case ModeSQLite:
		m, err := NewSQLiteManager(opts.SQLitePath, opts.SessionTTL)
		if err != nil {
			return nil, mode, fmt.Errorf("open sqlite accounts: %w", err)
		}
		return m, mode, nil
	case ModePostgres:
		m, err := NewPostgresManager(opts.PostgresDSN, opts.SessionTTL)
		if err != nil {
			return nil, mode, fmt.Errorf("open postgres accounts: %w", err)
		}
		return m, mode, nil
	default:
		return nil, mode, fmt.Errorf("invalid storage mode %q (supported: %s, %s, %s)", mode, ModeMemory, ModeSQLite, ModePostgres)
	}
}
