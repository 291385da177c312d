package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clocktower-lite/grimoire"
)

const (
	ResultWin  = "Win"
	ResultLoss = "Loss"

	DefaultRecentLimit = 50
	MaxSearchResults   = 10
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateMatch = errors.New("match already recorded")
	ErrInvalidMatch   = errors.New("invalid match")
)

// Row is one persisted seat of a finished game.
type Row struct {
	MatchKey string `json:"match_key"`
	Script   string `json:"script"`
	Class    string `json:"class"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Result   string `json:"result"`
}

func (r Row) Won() bool { return r.Result == ResultWin }

// Match groups the rows of one game in seat order.
type Match struct {
	Key         string    `json:"key"`
	GameID      string    `json:"game_id"`
	Winner      string    `json:"winner"`
	Storyteller string    `json:"storyteller"`
	Script      string    `json:"script"`
	RecordedAt  time.Time `json:"recorded_at"`
	Rows        []Row     `json:"rows"`
}

// Service persists finished games and answers the history and player queries.
type Service interface {
	Close() error
	Ping(ctx context.Context) error

	// RecordMatch stores every seat of m atomically. A key seen before yields ErrDuplicateMatch.
	RecordMatch(ctx context.Context, m *grimoire.MatchResult) error
	// RecentMatches lists games newest first; limit <= 0 returns all of them.
	RecentMatches(ctx context.Context, limit int) ([]Match, error)
	// SearchUsernames matches a case-insensitive substring, sorted, at most limit names.
	SearchUsernames(ctx context.Context, query string, limit int) ([]string, error)
	// PlayerRows returns every row recorded for username, oldest first.
	PlayerRows(ctx context.Context, username string) ([]Row, error)
}

func validateMatch(m *grimoire.MatchResult) error {
	if m == nil || len(m.Seats) == 0 {
		return fmt.Errorf("%w: no seats", ErrInvalidMatch)
	}
	if _, err := grimoire.ParseMatchKey(m.Key()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMatch, err)
	}
	for i, seat := range m.Seats {
		if strings.TrimSpace(seat.Username) == "" {
			return fmt.Errorf("%w: seat %d has no username", ErrInvalidMatch, i)
		}
	}
	return nil
}

func rowsOf(m *grimoire.MatchResult) []Row {
	key := m.Key()
	rows := make([]Row, 0, len(m.Seats))
	for _, seat := range m.Seats {
		rows = append(rows, Row{
			MatchKey: key,
			Script:   m.Script,
			Class:    seat.Class.String(),
			Username: seat.Username,
			Role:     seat.Role,
			Result:   seat.Outcome(),
		})
	}
	return rows
}

func clampSearchLimit(limit int) int {
	if limit <= 0 || limit > MaxSearchResults {
		return MaxSearchResults
	}
	return limit
}
