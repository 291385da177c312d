package lobby

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"clocktower-lite/apps/server/internal/ledger"
	"clocktower-lite/apps/server/internal/table"
	"clocktower-lite/grimoire"
	"clocktower-lite/script"

	"github.com/google/uuid"
)

const defaultResidents = 7

// Lobby manages all live tables
type Lobby struct {
	mu     sync.RWMutex
	tables map[string]*table.Table

	catalog   *script.Catalog
	ledger    ledger.Service
	generator grimoire.Config
	hooks     []table.GameEndHook
}

// New creates a lobby. A nil catalog means the built-in scripts.
func New(catalog *script.Catalog, ledgerService ledger.Service) *Lobby {
	if catalog == nil {
		catalog = script.Builtin()
	}
	return &Lobby{
		tables:  make(map[string]*table.Table),
		catalog: catalog,
		ledger:  ledgerService,
	}
}

func (l *Lobby) Catalog() *script.Catalog { return l.catalog }

// SetGeneratorConfig sets the engine config used by tables created afterwards.
func (l *Lobby) SetGeneratorConfig(cfg grimoire.Config) {
	l.mu.Lock()
	l.generator = cfg
	l.mu.Unlock()
}

// GeneratorConfig returns the engine config handed to new tables.
func (l *Lobby) GeneratorConfig() grimoire.Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.generator
}

// AddGameEndHook registers a hook on every table created afterwards.
func (l *Lobby) AddGameEndHook(hook table.GameEndHook) {
	if hook == nil {
		return
	}
	l.mu.Lock()
	l.hooks = append(l.hooks, hook)
	l.mu.Unlock()
}

// CreateTable opens a table owned by a storyteller.
func (l *Lobby) CreateTable(
	ownerID uint64,
	ownerName string,
	cfg table.TableConfig,
	broadcastFn func(userID uint64, data []byte),
) (*table.Table, error) {
	if cfg.Residents == 0 {
		cfg.Residents = defaultResidents
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tableID := newTableID()
	t, err := table.New(tableID, ownerID, ownerName, cfg, table.Options{
		Catalog:   l.catalog,
		Generator: l.generator,
		Ledger:    l.ledger,
		Broadcast: broadcastFn,
	})
	if err != nil {
		return nil, err
	}
	for _, hook := range l.hooks {
		t.AddGameEndHook(hook)
	}
	l.tables[tableID] = t

	log.Printf("[Lobby] %s (user %d) created table %s", ownerName, ownerID, tableID)
	return t, nil
}

func newTableID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// GetTable returns a table by ID
func (l *Lobby) GetTable(tableID string) *table.Table {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tables[tableID]
}

// ListTables returns the open tables ordered by ID, oldest first.
func (l *Lobby) ListTables() []table.Summary {
	l.mu.RLock()
	tables := make([]*table.Table, 0, len(l.tables))
	for _, t := range l.tables {
		tables = append(tables, t)
	}
	l.mu.RUnlock()

	out := make([]table.Summary, 0, len(tables))
	for _, t := range tables {
		if s := t.Summary(); !s.Closed {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReapIdle stops and forgets tables that are closed or idle for ttl. It returns how many were removed.
func (l *Lobby) ReapIdle(ttl time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, t := range l.tables {
		if !t.IsClosed() && !t.IsIdleFor(ttl) {
			continue
		}
		t.Stop()
		delete(l.tables, id)
		removed++
		log.Printf("[Lobby] Reaped table %s", id)
	}
	return removed
}

// RunReaper calls ReapIdle every interval until ctx is done.
func (l *Lobby) RunReaper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.ReapIdle(ttl)
		}
	}
}

// Close stops every table.
func (l *Lobby) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.tables {
		t.Stop()
		delete(l.tables, id)
	}
}
