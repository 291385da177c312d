package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clocktower-lite/grimoire"
)

// MemoryService keeps the match log in process memory.
type MemoryService struct {
	mu      sync.RWMutex
	matches []Match // recording order
	keys    map[string]struct{}
}

func NewMemoryService() *MemoryService {
	return &MemoryService{keys: make(map[string]struct{})}
}

func (s *MemoryService) Close() error { return nil }

func (s *MemoryService) Ping(context.Context) error { return nil }

func (s *MemoryService) RecordMatch(_ context.Context, m *grimoire.MatchResult) error {
	if err := validateMatch(m); err != nil {
		return err
	}
	key := m.Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.keys[key]; dup {
		return ErrDuplicateMatch
	}
	s.keys[key] = struct{}{}
	s.matches = append(s.matches, Match{
		Key:         key,
		GameID:      m.GameID,
		Winner:      string(m.Winner),
		Storyteller: m.Storyteller,
		Script:      m.Script,
		RecordedAt:  time.Now().UTC(),
		Rows:        rowsOf(m),
	})
	return nil
}

func (s *MemoryService) RecentMatches(_ context.Context, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.matches)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Match, 0, n)
	for i := len(s.matches) - 1; i >= 0 && len(out) < n; i-- {
		m := s.matches[i]
		m.Rows = append([]Row(nil), m.Rows...)
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryService) SearchUsernames(_ context.Context, query string, limit int) ([]string, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []string{}, nil
	}

	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, m := range s.matches {
		for _, r := range m.Rows {
			if strings.Contains(strings.ToLower(r.Username), needle) {
				seen[r.Username] = struct{}{}
			}
		}
	}
	s.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	if limit = clampSearchLimit(limit); len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func (s *MemoryService) PlayerRows(_ context.Context, username string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Row, 0)
	for _, m := range s.matches {
		for _, r := range m.Rows {
			if r.Username == username {
				out = append(out, r)
			}
		}
	}
	return out, nil
}
