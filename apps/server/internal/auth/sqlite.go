package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clocktower-lite/apps/server/internal/dbutil"

	"golang.org/x/crypto/bcrypt"
)

const queryTimeout = 5 * time.Second

// SQLiteManager stores storyteller accounts and sessions in a local sqlite file.
type SQLiteManager struct {
	db         *sql.DB
	sessionTTL time.Duration
}

func NewSQLiteManager(dbPath string, sessionTTL time.Duration) (*SQLiteManager, error) {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	db, err := dbutil.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := dbutil.ApplySchema(ctx, db, sqliteAuthSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteManager{db: db, sessionTTL: sessionTTL}, nil
}

func (m *SQLiteManager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *SQLiteManager) Register(name, password string) (uint64, string, error) {
	if err := validateName(name); err != nil {
		return 0, "", err
	}
	if err := validatePassword(password); err != nil {
		return 0, "", err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	res, err := tx.ExecContext(ctx, `
INSERT INTO storytellers (name_key, display_name, password_hash, spectator, created_at_ms, last_seen_at_ms)
VALUES (?, ?, ?, 0, ?, ?)
`, foldName(name), strings.TrimSpace(name), string(hash), nowMs, nowMs)
	if err != nil {
		if dbutil.IsSQLiteUniqueViolation(err) {
			return 0, "", ErrNameTaken
		}
		return 0, "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", err
	}

	token, err := m.issueSessionTx(ctx, tx, uint64(id), nowMs)
	if err != nil {
		return 0, "", err
	}
	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return uint64(id), token, nil
}

func (m *SQLiteManager) Login(name, password string) (uint64, string, error) {
	key := foldName(name)
	if key == "" || password == "" {
		return 0, "", ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var (
		accountID uint64
		hash      sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
SELECT id, password_hash FROM storytellers WHERE name_key = ? AND spectator = 0
`, key).Scan(&accountID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrInvalidCredentials
	}
	if err != nil {
		return 0, "", err
	}
	if !hash.Valid || bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(password)) != nil {
		return 0, "", ErrInvalidCredentials
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `UPDATE storytellers SET last_seen_at_ms = ? WHERE id = ?`, nowMs, accountID); err != nil {
		return 0, "", err
	}
	token, err := m.issueSessionTx(ctx, tx, accountID, nowMs)
	if err != nil {
		return 0, "", err
	}
	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return accountID, token, nil
}

func (m *SQLiteManager) ResolveSession(token string) (uint64, string, bool) {
	id, name, spectator, ok := m.resolve(token)
	if !ok || spectator {
		return 0, "", false
	}
	return id, name, true
}

// resolve slides the session expiry forward and reports the account behind it.
func (m *SQLiteManager) resolve(token string) (uint64, string, bool, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, "", false, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", false, false
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	res, err := tx.ExecContext(ctx, `
UPDATE storyteller_sessions
SET last_seen_at_ms = ?, expires_at_ms = ?
WHERE token = ? AND revoked_at_ms IS NULL AND expires_at_ms > ?
`, nowMs, nowMs+m.sessionTTL.Milliseconds(), token, nowMs)
	if err != nil {
		return 0, "", false, false
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return 0, "", false, false
	}

	var (
		accountID uint64
		name      string
		spectator bool
	)
	if err := tx.QueryRowContext(ctx, `
SELECT s.account_id, a.display_name, a.spectator
FROM storyteller_sessions AS s
JOIN storytellers AS a ON a.id = s.account_id
WHERE s.token = ?
`, token).Scan(&accountID, &name, &spectator); err != nil {
		return 0, "", false, false
	}
	if err := tx.Commit(); err != nil {
		return 0, "", false, false
	}
	return accountID, name, spectator, true
}

func (m *SQLiteManager) Logout(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	_, _ = m.db.ExecContext(ctx, `
UPDATE storyteller_sessions SET revoked_at_ms = ? WHERE token = ? AND revoked_at_ms IS NULL
`, time.Now().UTC().UnixMilli(), token)
}

func (m *SQLiteManager) ResolveOrCreateSpectator(token string) (uint64, string, string, bool) {
	if id, name, _, ok := m.resolve(token); ok {
		return id, name, strings.TrimSpace(token), true
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	for attempt := 0; attempt < 5; attempt++ {
		id, name, session, err := m.createSpectator(ctx)
		if err == nil {
			return id, name, session, false
		}
		if !dbutil.IsSQLiteUniqueViolation(err) {
			return 0, "", "", false
		}
	}
	return 0, "", "", false
}

func (m *SQLiteManager) createSpectator(ctx context.Context) (uint64, string, string, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", "", err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	name := spectatorName()
	res, err := tx.ExecContext(ctx, `
INSERT INTO storytellers (name_key, display_name, spectator, created_at_ms, last_seen_at_ms)
VALUES (?, ?, 1, ?, ?)
`, foldName(name), name, nowMs, nowMs)
	if err != nil {
		return 0, "", "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", "", err
	}
	token, err := m.issueSessionTx(ctx, tx, uint64(id), nowMs)
	if err != nil {
		return 0, "", "", err
	}
	return uint64(id), name, token, tx.Commit()
}

func (m *SQLiteManager) issueSessionTx(ctx context.Context, tx *sql.Tx, accountID uint64, nowMs int64) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		token := mustToken()
		_, err := tx.ExecContext(ctx, `
INSERT INTO storyteller_sessions (token, account_id, issued_at_ms, expires_at_ms, last_seen_at_ms)
VALUES (?, ?, ?, ?, ?)
`, token, accountID, nowMs, nowMs+m.sessionTTL.Milliseconds(), nowMs)
		if err == nil {
			return token, nil
		}
		if !dbutil.IsSQLiteUniqueViolation(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to generate unique session token")
}

var sqliteAuthSchema = []string{
	`
CREATE TABLE IF NOT EXISTS storytellers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name_key TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT,
    spectator INTEGER NOT NULL DEFAULT 0,
    created_at_ms INTEGER NOT NULL,
    last_seen_at_ms INTEGER NOT NULL
)`,
	`
CREATE TABLE IF NOT EXISTS storyteller_sessions (
    token TEXT PRIMARY KEY,
    account_id INTEGER NOT NULL,
    issued_at_ms INTEGER NOT NULL,
    expires_at_ms INTEGER NOT NULL,
    revoked_at_ms INTEGER,
    last_seen_at_ms INTEGER NOT NULL,
    FOREIGN KEY(account_id) REFERENCES storytellers(id) ON DELETE CASCADE
)`,
	`CREATE INDEX IF NOT EXISTS idx_storyteller_sessions_active ON storyteller_sessions(expires_at_ms, revoked_at_ms)`,
}
