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

// PostgresManager stores storyteller accounts in a shared postgres database.
type PostgresManager struct {
	db         *sql.DB
	sessionTTL time.Duration
}

func NewPostgresManager(dsn string, sessionTTL time.Duration) (*PostgresManager, error) {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	db, err := dbutil.OpenPostgres(dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := dbutil.ApplySchema(ctx, db, postgresAuthSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresManager{db: db, sessionTTL: sessionTTL}, nil
}

func (m *PostgresManager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *PostgresManager) Register(name, password string) (uint64, string, error) {
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

	var accountID uint64
	if err := tx.QueryRowContext(ctx, `
INSERT INTO storytellers (name_key, display_name, password_hash, spectator)
VALUES ($1, $2, $3, FALSE)
RETURNING id
`, foldName(name), strings.TrimSpace(name), string(hash)).Scan(&accountID); err != nil {
		if dbutil.IsPostgresUniqueViolation(err) {
			return 0, "", ErrNameTaken
		}
		return 0, "", err
	}
	token, err := m.issueSessionTx(ctx, tx, accountID)
	if err != nil {
		return 0, "", err
	}
	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return accountID, token, nil
}

func (m *PostgresManager) Login(name, password string) (uint64, string, error) {
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
SELECT id, password_hash FROM storytellers WHERE name_key = $1 AND NOT spectator
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
	if _, err := tx.ExecContext(ctx, `UPDATE storytellers SET last_seen_at = NOW() WHERE id = $1`, accountID); err != nil {
		return 0, "", err
	}
	token, err := m.issueSessionTx(ctx, tx, accountID)
	if err != nil {
		return 0, "", err
	}
	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return accountID, token, nil
}

func (m *PostgresManager) ResolveSession(token string) (uint64, string, bool) {
	id, name, spectator, ok := m.resolve(token)
	if !ok || spectator {
		return 0, "", false
	}
	return id, name, true
}

// resolve slides the session expiry forward and reports the account behind it.
func (m *PostgresManager) resolve(token string) (uint64, string, bool, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, "", false, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var (
		accountID uint64
		name      string
		spectator bool
	)
	err := m.db.QueryRowContext(ctx, `
UPDATE storyteller_sessions AS s
SET last_seen_at = NOW(), expires_at = $2
FROM storytellers AS a
WHERE s.token = $1
  AND s.account_id = a.id
  AND s.revoked_at IS NULL
  AND s.expires_at > NOW()
RETURNING s.account_id, a.display_name, a.spectator
`, token, time.Now().Add(m.sessionTTL)).Scan(&accountID, &name, &spectator)
	if err != nil {
		return 0, "", false, false
	}
	return accountID, name, spectator, true
}

func (m *PostgresManager) Logout(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	_, _ = m.db.ExecContext(ctx, `
UPDATE storyteller_sessions SET revoked_at = NOW() WHERE token = $1 AND revoked_at IS NULL
`, token)
}

func (m *PostgresManager) ResolveOrCreateSpectator(token string) (uint64, string, string, bool) {
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
		if !dbutil.IsPostgresUniqueViolation(err) {
			return 0, "", "", false
		}
	}
	return 0, "", "", false
}

func (m *PostgresManager) createSpectator(ctx context.Context) (uint64, string, string, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", "", err
	}
	defer tx.Rollback()

	name := spectatorName()
	var accountID uint64
	if err := tx.QueryRowContext(ctx, `
INSERT INTO storytellers (name_key, display_name, spectator)
VALUES ($1, $2, TRUE)
RETURNING id
`, foldName(name), name).Scan(&accountID); err != nil {
		return 0, "", "", err
	}
	token, err := m.issueSessionTx(ctx, tx, accountID)
	if err != nil {
		return 0, "", "", err
	}
	return accountID, name, token, tx.Commit()
}

func (m *PostgresManager) issueSessionTx(ctx context.Context, tx *sql.Tx, accountID uint64) (string, error) {
	expiresAt := time.Now().Add(m.sessionTTL)
	for attempt := 0; attempt < 5; attempt++ {
		token := mustToken()
		_, err := tx.ExecContext(ctx, `
INSERT INTO storyteller_sessions (token, account_id, expires_at)
VALUES ($1, $2, $3)
`, token, accountID, expiresAt)
		if err == nil {
			return token, nil
		}
		if !dbutil.IsPostgresUniqueViolation(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to generate unique session token")
}

var postgresAuthSchema = []string{
	`
CREATE TABLE IF NOT EXISTS storytellers (
    id BIGSERIAL PRIMARY KEY,
    name_key TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT,
    spectator BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`
CREATE TABLE IF NOT EXISTS storyteller_sessions (
    token TEXT PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES storytellers(id) ON DELETE CASCADE,
    issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    revoked_at TIMESTAMPTZ,
    last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_storyteller_sessions_active ON storyteller_sessions(expires_at, revoked_at)`,
}
