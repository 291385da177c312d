package ledger

import (
	"fmt"
	"strings"
)

// NewService opens the match log for mode (memory, sqlite or postgres).
func NewService(mode, sqlitePath, postgresDSN string) (Service, string, error) {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "memory", "mem":
		return NewMemoryService(), "memory", nil
	case "", "sqlite", "local":
		svc, err := NewSQLiteService(sqlitePath)
		if err != nil {
			return nil, "sqlite", fmt.Errorf("open sqlite ledger: %w", err)
		}
		return svc, "sqlite", nil
	case "postgres", "postgresql", "db":
		svc, err := NewPostgresService(postgresDSN)
		if err != nil {
			return nil, "postgres", fmt.Errorf("open postgres ledger: %w", err)
		}
		return svc, "postgres", nil
	default:
		return nil, m, fmt.Errorf("invalid storage mode %q", mode)
	}
}
