package ledger

import (
	"context"

	"clocktower-lite/apps/server/internal/dbutil"
)

// SQLiteService is the match log of a single-binary deployment.
type SQLiteService struct {
	sqlStore
}

func NewSQLiteService(dbPath string) (*SQLiteService, error) {
	db, err := dbutil.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := dbutil.ApplySchema(ctx, db, sqliteLedgerSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteService{sqlStore{db: db, isDuplicate: dbutil.IsSQLiteUniqueViolation}}, nil
}

var sqliteLedgerSchema = []string{
	`
CREATE TABLE IF NOT EXISTS matches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    match_key TEXT NOT NULL UNIQUE,
    game_id TEXT NOT NULL,
    winner TEXT NOT NULL,
    storyteller TEXT NOT NULL,
    script TEXT NOT NULL,
    recorded_at_ms INTEGER NOT NULL
)`,
	`
CREATE TABLE IF NOT EXISTS match_seats (
    match_id INTEGER NOT NULL,
    seat INTEGER NOT NULL,
    class TEXT NOT NULL,
    username TEXT NOT NULL,
    role TEXT NOT NULL,
    result TEXT NOT NULL CHECK (result IN ('Win', 'Loss')),
    PRIMARY KEY (match_id, seat),
    FOREIGN KEY(match_id) REFERENCES matches(id) ON DELETE CASCADE
)`,
	`CREATE INDEX IF NOT EXISTS idx_match_seats_username ON match_seats(username)`,
}
