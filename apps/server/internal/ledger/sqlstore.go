package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"clocktower-lite/grimoire"
)

const queryTimeout = 5 * time.Second

// sqlStore holds the queries shared by the sqlite and postgres backends. Statements are
// written with '?' placeholders and rebound for drivers that number them.
type sqlStore struct {
	db          *sql.DB
	numbered    bool
	isDuplicate func(error) bool
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) RecordMatch(ctx context.Context, m *grimoire.MatchResult) error {
	if err := validateMatch(m); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var matchID int64
	err = tx.QueryRowContext(ctx, s.q(`
INSERT INTO matches (match_key, game_id, winner, storyteller, script, recorded_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id
`), m.Key(), m.GameID, string(m.Winner), m.Storyteller, m.Script, time.Now().UTC().UnixMilli()).Scan(&matchID)
	if err != nil {
		if s.isDuplicate(err) {
			return ErrDuplicateMatch
		}
		return fmt.Errorf("insert match: %w", err)
	}

	for i, row := range rowsOf(m) {
		if _, err := tx.ExecContext(ctx, s.q(`
INSERT INTO match_seats (match_id, seat, class, username, role, result)
VALUES (?, ?, ?, ?, ?, ?)
`), matchID, i, row.Class, row.Username, row.Role, row.Result); err != nil {
			return fmt.Errorf("insert seat %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) RecentMatches(ctx context.Context, limit int) ([]Match, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	idFilter := `SELECT id FROM matches ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		idFilter += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT m.id, m.match_key, m.game_id, m.winner, m.storyteller, m.script, m.recorded_at_ms,
       s.class, s.username, s.role, s.result
FROM matches AS m
JOIN match_seats AS s ON s.match_id = m.id
WHERE m.id IN (`+idFilter+`)
ORDER BY m.id DESC, s.seat ASC
`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Match, 0)
	var lastID int64 = -1
	for rows.Next() {
		var (
			id         int64
			m          Match
			recordedMs int64
			r          Row
		)
		if err := rows.Scan(&id, &m.Key, &m.GameID, &m.Winner, &m.Storyteller, &m.Script, &recordedMs,
			&r.Class, &r.Username, &r.Role, &r.Result); err != nil {
			return nil, err
		}
		if id != lastID {
			m.RecordedAt = time.UnixMilli(recordedMs).UTC()
			out = append(out, m)
			lastID = id
		}
		cur := &out[len(out)-1]
		r.MatchKey = cur.Key
		r.Script = cur.Script
		cur.Rows = append(cur.Rows, r)
	}
	return out, rows.Err()
}

func (s *sqlStore) SearchUsernames(ctx context.Context, query string, limit int) ([]string, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []string{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Folded in Go so non-ASCII names match the same way on every backend.
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT username FROM match_seats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0, MaxSearchResults)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(name), needle) {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	if limit = clampSearchLimit(limit); len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func (s *sqlStore) PlayerRows(ctx context.Context, username string) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT m.match_key, m.script, s.class, s.username, s.role, s.result
FROM match_seats AS s
JOIN matches AS m ON m.id = s.match_id
WHERE s.username = ?
ORDER BY m.id ASC, s.seat ASC
`), username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.MatchKey, &r.Script, &r.Class, &r.Username, &r.Role, &r.Result); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
