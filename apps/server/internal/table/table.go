package table

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"clocktower-lite/apps/server/internal/ledger"
	"clocktower-lite/grimoire"
	"clocktower-lite/script"

	"github.com/google/uuid"
)

// Table is one live grimoire run by a storyteller, driven by an actor goroutine.
type Table struct {
	ID    string
	Owner uint64

	mu        sync.RWMutex
	ownerName string
	config    TableConfig
	catalog   *script.Catalog
	generator *grimoire.Generator
	setup     *grimoire.Setup
	viewers   map[uint64]*Viewer
	games     int
	closed    bool
	stopOnce  sync.Once

	// Event channel for actor pattern
	events chan Event
	done   chan struct{}

	serverSeq  uint64
	emptySince time.Time

	broadcast func(userID uint64, data []byte)
	ledger    ledger.Service
	newGameID func() string

	// Optional callbacks invoked after each game is recorded.
	gameEndHooks []GameEndHook
}

// TableConfig is the storyteller's choice for the next generation.
type TableConfig struct {
	Script    string `json:"script"`
	Residents int    `json:"residents"`
	Travelers int    `json:"travelers"`
}

func (c TableConfig) validate(catalog *script.Catalog) error {
	if _, ok := catalog.Lookup(c.Script); !ok {
		return fmt.Errorf("%w: unknown script %q", ErrInvalidConfig, c.Script)
	}
	if c.Residents < grimoire.MinResidents || c.Residents > grimoire.MaxResidents {
		return fmt.Errorf("%w: residents must be %d-%d", ErrInvalidConfig, grimoire.MinResidents, grimoire.MaxResidents)
	}
	if c.Travelers < 0 || c.Travelers > grimoire.MaxTravelers {
		return fmt.Errorf("%w: travelers must be 0-%d", ErrInvalidConfig, grimoire.MaxTravelers)
	}
	if c.Residents+c.Travelers > grimoire.MaxPlayers {
		return fmt.Errorf("%w: at most %d players", ErrInvalidConfig, grimoire.MaxPlayers)
	}
	return nil
}

// Viewer is a connected account watching the table.
type Viewer struct {
	UserID   uint64
	Name     string
	Online   bool
	LastSeen time.Time
}

// Event types for the actor message queue
type EventType int

const (
	EventJoinTable EventType = iota
	EventLeaveTable
	EventConfigure
	EventGenerate
	EventSetUsername
	EventToggleStatus
	EventClearStatuses
	EventEndGame
	EventReset
	EventConnLost
	EventConnResume
	EventClose
)

// Event represents a message to the table actor
type Event struct {
	Type        EventType
	UserID      uint64
	Name        string
	Config      TableConfig
	Seat        int
	Username    string
	Status      grimoire.Status
	Winner      grimoire.Team
	Storyteller string
	Timestamp   time.Time
	Response    chan error
}

// GameEndInfo is emitted when a finished game has been recorded.
type GameEndInfo struct {
	TableID string
	Game    int
	Result  *grimoire.MatchResult
}

// GameEndHook is a post-settlement callback.
type GameEndHook func(info GameEndInfo)

var (
	ErrTableClosed    = errors.New("table closed")
	ErrNotStoryteller = errors.New("only the storyteller may do this")
	ErrNotJoined      = errors.New("not at this table")
	ErrInvalidConfig  = errors.New("invalid table config")
	ErrInvalidSeat    = errors.New("invalid seat")
)

const (
	offlineViewerTTL = 2 * time.Minute
	recordTimeout    = 5 * time.Second
)

// Options holds the collaborators of a table. Zero values fall back to defaults.
type Options struct {
	Catalog   *script.Catalog
	Generator grimoire.Config
	Ledger    ledger.Service
	Broadcast func(userID uint64, data []byte)
	// NewGameID mints the game id of a match key. Defaults to a UUIDv7.
	NewGameID func() string
}

// New creates a table owned by the storyteller ownerID and starts its actor.
func New(id string, ownerID uint64, ownerName string, cfg TableConfig, opts Options) (*Table, error) {
	if opts.Catalog == nil {
		opts.Catalog = script.Builtin()
	}
	if cfg.Script == "" {
		cfg.Script = opts.Catalog.Default().Name()
	}
	if err := cfg.validate(opts.Catalog); err != nil {
		return nil, err
	}
	gen, err := grimoire.NewGenerator(opts.Generator)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	if opts.Broadcast == nil {
		opts.Broadcast = func(uint64, []byte) {}
	}
	if opts.NewGameID == nil {
		opts.NewGameID = newGameID
	}

	t := &Table{
		ID:         id,
		Owner:      ownerID,
		ownerName:  strings.TrimSpace(ownerName),
		config:     cfg,
		catalog:    opts.Catalog,
		generator:  gen,
		viewers:    make(map[uint64]*Viewer),
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		emptySince: time.Now(),
		broadcast:  opts.Broadcast,
		ledger:     opts.Ledger,
		newGameID:  opts.NewGameID,
	}

	go t.run()

	log.Printf("[Table %s] Created (storyteller=%s script=%s residents=%d travelers=%d)",
		id, t.ownerName, cfg.Script, cfg.Residents, cfg.Travelers)
	return t, nil
}

func newGameID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// run is the main actor loop
func (t *Table) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case event := <-t.events:
			err := t.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
			if event.Type == EventClose && err == nil {
				t.Stop()
			}
		case <-ticker.C:
			t.tick()
		case <-t.done:
			log.Printf("[Table %s] Actor stopped", t.ID)
			return
		}
	}
}

// handleEvent processes a single event
func (t *Table) handleEvent(e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed && e.Type != EventClose {
		return ErrTableClosed
	}

	switch e.Type {
	case EventJoinTable:
		return t.handleJoinTable(e.UserID, e.Name, e.Timestamp)
	case EventLeaveTable:
		return t.handleLeaveTable(e.UserID)
	case EventConnLost:
		return t.handleConnLost(e.UserID, e.Timestamp)
	case EventConnResume:
		return t.handleConnResume(e.UserID, e.Timestamp)
	case EventClose:
		if e.UserID != 0 && e.UserID != t.Owner {
			return ErrNotStoryteller
		}
		return nil
	}

	if e.UserID != t.Owner {
		return ErrNotStoryteller
	}
	switch e.Type {
	case EventConfigure:
		return t.handleConfigure(e.Config)
	case EventGenerate:
		return t.handleGenerate()
	case EventSetUsername:
		return t.handleSetUsername(e.Seat, e.Username)
	case EventToggleStatus:
		return t.handleToggleStatus(e.Seat, e.Status)
	case EventClearStatuses:
		return t.handleClearStatuses(e.Seat)
	case EventEndGame:
		return t.handleEndGame(e.Winner, e.Storyteller)
	case EventReset:
		return t.handleReset()
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (t *Table) handleJoinTable(userID uint64, name string, now time.Time) error {
	if now.IsZero() {
		now = time.Now()
	}
	if userID == t.Owner && t.ownerName != "" {
		name = t.ownerName
	}
	v, exists := t.viewers[userID]
	if !exists {
		v = &Viewer{UserID: userID}
		t.viewers[userID] = v
	}
	v.Name = normalizeName(name, userID)
	v.Online = true
	v.LastSeen = now
	t.updateEmptySinceLocked(now)

	log.Printf("[Table %s] %s joined (user=%d storyteller=%v)", t.ID, v.Name, userID, userID == t.Owner)
	t.sendView(userID)
	return nil
}

func (t *Table) handleLeaveTable(userID uint64) error {
	if _, ok := t.viewers[userID]; !ok {
		return ErrNotJoined
	}
	delete(t.viewers, userID)
	t.updateEmptySinceLocked(time.Now())
	log.Printf("[Table %s] User %d left", t.ID, userID)
	return nil
}

func (t *Table) handleConfigure(cfg TableConfig) error {
	if err := cfg.validate(t.catalog); err != nil {
		return err
	}
	if s, ok := t.catalog.Lookup(cfg.Script); ok {
		cfg.Script = s.Name()
	}
	t.config = cfg
	log.Printf("[Table %s] Configured script=%s residents=%d travelers=%d", t.ID, cfg.Script, cfg.Residents, cfg.Travelers)
	t.broadcastViews()
	return nil
}

// handleGenerate replaces the setup only when generation succeeds.
func (t *Table) handleGenerate() error {
	s, ok := t.catalog.Lookup(t.config.Script)
	if !ok {
		return fmt.Errorf("%w: unknown script %q", ErrInvalidConfig, t.config.Script)
	}
	setup, err := t.generator.Generate(t.config.Residents, t.config.Travelers, s)
	if err != nil {
		log.Printf("[Table %s] Generate failed: %v", t.ID, err)
		return err
	}
	t.setup = setup
	log.Printf("[Table %s] Generated %d seats (all_good=%v distribution=%+v)",
		t.ID, len(setup.Seats), setup.AllGood, setup.Distribution)
	t.broadcastViews()
	return nil
}

func (t *Table) seatLocked(index int) (*grimoire.Seat, error) {
	if t.setup == nil {
		return nil, grimoire.ErrNotGenerated
	}
	if index < 0 || index >= len(t.setup.Seats) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSeat, index)
	}
	return &t.setup.Seats[index], nil
}

func (t *Table) handleSetUsername(index int, username string) error {
	seat, err := t.seatLocked(index)
	if err != nil {
		return err
	}
	seat.Username = strings.TrimSpace(username)
	t.broadcastViews()
	return nil
}

func (t *Table) handleToggleStatus(index int, status grimoire.Status) error {
	seat, err := t.seatLocked(index)
	if err != nil {
		return err
	}
	on := seat.Statuses.Toggle(status)
	log.Printf("[Table %s] Seat %d %s=%v", t.ID, index, status, on)
	t.broadcastViews()
	return nil
}

func (t *Table) handleClearStatuses(index int) error {
	seat, err := t.seatLocked(index)
	if err != nil {
		return err
	}
	seat.Statuses.Clear()
	t.broadcastViews()
	return nil
}

// handleEndGame settles and records the game, then clears the grimoire.
// Any failure leaves the grimoire as it was so the storyteller can fix it.
func (t *Table) handleEndGame(winner grimoire.Team, storyteller string) error {
	if strings.TrimSpace(storyteller) == "" {
		storyteller = t.ownerName
	}
	if err := grimoire.CheckSettle(t.setup, winner, storyteller); err != nil {
		return err
	}
	result, err := grimoire.Settle(t.setup, winner, storyteller, t.newGameID())
	if err != nil {
		return err
	}
	if t.ledger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		err := t.ledger.RecordMatch(ctx, result)
		cancel()
		if err != nil {
			log.Printf("[Table %s] record match %s failed: %v", t.ID, result.Key(), err)
			return fmt.Errorf("record match: %w", err)
		}
	}
	t.games++
	log.Printf("[Table %s] Game %d recorded: %s", t.ID, t.games, result.Key())

	t.broadcastGameEnd(result)
	t.setup = nil
	t.broadcastViews()
	t.dispatchGameEndHooks(result)
	return nil
}

func (t *Table) handleReset() error {
	t.setup = nil
	log.Printf("[Table %s] Grimoire reset", t.ID)
	t.broadcastViews()
	return nil
}

func (t *Table) dispatchGameEndHooks(result *grimoire.MatchResult) {
	if len(t.gameEndHooks) == 0 {
		return
	}
	info := GameEndInfo{TableID: t.ID, Game: t.games, Result: result}
	hooks := append([]GameEndHook(nil), t.gameEndHooks...)
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		go func(cb GameEndHook) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Table %s] game end hook panic: %v", t.ID, r)
				}
			}()
			cb(info)
		}(hook)
	}
}

func (t *Table) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.releaseOfflineViewers(time.Now())
}

func (t *Table) releaseOfflineViewers(now time.Time) {
	for userID, v := range t.viewers {
		if v.Online || userID == t.Owner {
			continue
		}
		if now.Sub(v.LastSeen) < offlineViewerTTL {
			continue
		}
		delete(t.viewers, userID)
		log.Printf("[Table %s] Dropped offline viewer %d after %s", t.ID, userID, offlineViewerTTL)
	}
	t.updateEmptySinceLocked(now)
}

func (t *Table) handleConnLost(userID uint64, ts time.Time) error {
	v := t.viewers[userID]
	if v == nil {
		return nil
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	v.Online = false
	v.LastSeen = ts
	t.updateEmptySinceLocked(ts)
	log.Printf("[Table %s] User %d connection lost", t.ID, userID)
	return nil
}

func (t *Table) handleConnResume(userID uint64, ts time.Time) error {
	v := t.viewers[userID]
	if v == nil {
		return ErrNotJoined
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	v.Online = true
	v.LastSeen = ts
	t.updateEmptySinceLocked(ts)
	t.sendView(userID)
	log.Printf("[Table %s] User %d connection resumed", t.ID, userID)
	return nil
}

// SubmitEvent sends an event to the actor and waits for it to be handled.
func (t *Table) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrTableClosed
	}

	select {
	case t.events <- e:
	case <-t.done:
		return ErrTableClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-t.done:
		select {
		case err := <-e.Response:
			return err
		default:
			return ErrTableClosed
		}
	}
}

// Stop shuts down the table actor
func (t *Table) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Table) stopLocked() {
	t.closed = true
	t.stopOnce.Do(func() {
		close(t.done)
		log.Printf("[Table %s] Closed after %d games", t.ID, t.games)
	})
}

func (t *Table) updateEmptySinceLocked(now time.Time) {
	for _, v := range t.viewers {
		if v.Online {
			t.emptySince = time.Time{}
			return
		}
	}
	if t.emptySince.IsZero() {
		t.emptySince = now
	}
}

func normalizeName(raw string, userID uint64) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return fmt.Sprintf("user_%d", userID)
	}
	return name
}

// IsIdleFor reports whether nobody has been connected for at least ttl.
func (t *Table) IsIdleFor(ttl time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return true
	}
	if t.emptySince.IsZero() {
		return false
	}
	return time.Since(t.emptySince) >= ttl
}

func (t *Table) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// AddGameEndHook registers a post-settlement callback.
func (t *Table) AddGameEndHook(hook GameEndHook) {
	if hook == nil {
		return
	}
	t.mu.Lock()
	t.gameEndHooks = append(t.gameEndHooks, hook)
	t.mu.Unlock()
}

func (t *Table) nextSeq() uint64 {
	t.serverSeq++
	return t.serverSeq
}
