package ledger

import (
	"context"

	"clocktower-lite/apps/server/internal/dbutil"
)

// PostgresService is the match log of a shared deployment.
type PostgresService struct {
	sqlStore
}

func NewPostgresService(dsn string) (*PostgresService, error) {
	db, err := dbutil.OpenPostgres(dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := dbutil.ApplySchema(ctx, db, postgresLedgerSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresService{sqlStore{db: db, numbered: true, isDuplicate: dbutil.IsPostgresUniqueViolation}}, nil
}

var postgresLedgerSchema = []string{
	`
CREATE TABLE IF NOT EXISTS matches (
    id BIGSERIAL PRIMARY KEY,
    match_key TEXT NOT NULL UNIQUE,
    game_id TEXT NOT NULL,
    winner TEXT NOT NULL,
    storyteller TEXT NOT NULL,
    script TEXT NOT NULL,
    recorded_at_ms BIGINT NOT NULL
)`,
	`
CREATE TABLE IF NOT EXISTS match_seats (
    match_id BIGINT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
    seat INTEGER NOT NULL,
    class TEXT NOT NULL,
    username TEXT NOT NULL,
    role TEXT NOT NULL,
    result TEXT NOT NULL CHECK (result IN ('Win', 'Loss')),
    PRIMARY KEY (match_id, seat)
)`,
	`CREATE INDEX IF NOT EXISTS idx_match_seats_username ON match_seats(username)`,
}
