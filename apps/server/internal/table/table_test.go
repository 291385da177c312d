package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"clocktower-lite/apps/server/internal/codec"
	"clocktower-lite/apps/server/internal/ledger"
	"clocktower-lite/grimoire"
	"clocktower-lite/script"
)

const (
	storytellerID = uint64(1)
	spectatorID   = uint64(2)
)

type outbox struct {
	mu   sync.Mutex
	sent map[uint64][]*codec.ServerEnvelope
}

func newOutbox() *outbox {
	return &outbox{sent: make(map[uint64][]*codec.ServerEnvelope)}
}

func (o *outbox) send(userID uint64, data []byte) {
	env, err := codec.DecodeServer(data)
	if err != nil {
		panic(err)
	}
	o.mu.Lock()
	o.sent[userID] = append(o.sent[userID], env)
	o.mu.Unlock()
}

func (o *outbox) last(t *testing.T, userID uint64) *codec.ServerEnvelope {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	msgs := o.sent[userID]
	if len(msgs) == 0 {
		t.Fatalf("no messages sent to user %d", userID)
	}
	return msgs[len(msgs)-1]
}

func (o *outbox) ofType(userID uint64, msgType string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, env := range o.sent[userID] {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

var tinyScript = script.MustNew(script.Definition{
	Name:      "Tiny",
	Townsfolk: []string{"Chef", "Empath", "Monk"},
	Outsider:  []string{"Saint"},
	Minion:    []string{"Poisoner"},
	Demon:     []string{"Imp"},
})

type testTable struct {
	*Table
	out    *outbox
	ledger *ledger.MemoryService
}

func newTestTable(t *testing.T, cfg TableConfig) *testTable {
	t.Helper()
	catalog, err := script.NewCatalog(tinyScript, script.TroubleBrewing)
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	out := newOutbox()
	store := ledger.NewMemoryService()
	games := 0
	tbl, err := New("table_test", storytellerID, "sam", cfg, Options{
		Catalog:   catalog,
		Generator: grimoire.Config{Seed: 7},
		Ledger:    store,
		Broadcast: out.send,
		NewGameID: func() string {
			games++
			return fmt.Sprintf("game%d", games)
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(tbl.Stop)
	tt := &testTable{Table: tbl, out: out, ledger: store}
	tt.submit(t, Event{Type: EventJoinTable, UserID: storytellerID})
	tt.submit(t, Event{Type: EventJoinTable, UserID: spectatorID, Name: "viewer"})
	return tt
}

func (tt *testTable) submit(t *testing.T, e Event) {
	t.Helper()
	if err := tt.SubmitEvent(e); err != nil {
		t.Fatalf("event %d failed: %v", e.Type, err)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cases := []TableConfig{
		{Script: "Nope", Residents: 7},
		{Script: "Tiny", Residents: 4},
		{Script: "Tiny", Residents: 16},
		{Script: "Tiny", Residents: 5, Travelers: 6},
	}
	catalog, _ := script.NewCatalog(tinyScript)
	for _, cfg := range cases {
		if _, err := New("bad", storytellerID, "sam", cfg, Options{Catalog: catalog}); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("config %+v: expected ErrInvalidConfig, got %v", cfg, err)
		}
	}
}

func TestGenerate_StorytellerSeesRolesOthersDoNot(t *testing.T) {
	tt := newTestTable(t, TableConfig{Script: "Tiny", Residents: 5})

	if err := tt.SubmitEvent(Event{Type: EventGenerate, UserID: spectatorID}); !errors.Is(err, ErrNotStoryteller) {
		t.Fatalf("expected ErrNotStoryteller, got %v", err)
	}
	tt.submit(t, Event{Type: EventGenerate, UserID: storytellerID})

	view := tt.GrimoireView()
	if !view.Generated || len(view.Seats) != 5 || len(view.Bluffs) != 3 {
		t.Fatalf("unexpected grimoire view %+v", view)
	}
	if view.Viewers[0] != "sam" || view.Viewers[1] != "viewer" {
		t.Fatalf("unexpected viewers %v", view.Viewers)
	}

	env := tt.out.last(t, storytellerID)
	if env.Type != codec.TypeGrimoire {
		t.Fatalf("storyteller got %q, want grimoire", env.Type)
	}
	var got GrimoireView
	if err := env.Decode(&got); err != nil {
		t.Fatalf("decode grimoire: %v", err)
	}
	if len(got.Seats) != 5 || got.Seats[0].Role == "" {
		t.Fatalf("storyteller view lost roles: %+v", got.Seats)
	}

	env = tt.out.last(t, spectatorID)
	if env.Type != codec.TypeTownSquare {
		t.Fatalf("spectator got %q, want town_square", env.Type)
	}
	seats := env.Payload.GetFields()["seats"].GetListValue().GetValues()
	if len(seats) != 5 {
		t.Fatalf("expected 5 public seats, got %d", len(seats))
	}
	for _, s := range seats {
		fields := s.GetStructValue().GetFields()
		if _, leaked := fields["role"]; leaked {
			t.Fatalf("public seat leaks role: %v", fields)
		}
	}
}

func TestGenerate_FailureKeepsPreviousSetup(t *testing.T) {
	tt := newTestTable(t, TableConfig{Script: "Tiny", Residents: 5})
	tt.submit(t, Event{Type: EventGenerate, UserID: storytellerID})
	before := tt.GrimoireView()

	tt.submit(t, Event{Type: EventConfigure, UserID: storytellerID, Config: TableConfig{Script: "tiny", Residents: 7}})
	err := tt.SubmitEvent(Event{Type: EventGenerate, UserID: storytellerID})
	if !errors.Is(err, grimoire.ErrInsufficientRolePool) {
		t.Fatalf("expected ErrInsufficientRolePool, got %v", err)
	}

	after := tt.GrimoireView()
	if after.Config.Script != "Tiny" || after.Config.Residents != 7 {
		t.Fatalf("expected configure to apply, got %+v", after.Config)
	}
	if len(after.Seats) != len(before.Seats) || after.Seats[0].Role != before.Seats[0].Role {
		t.Fatalf("failed generation replaced the setup")
	}
}

func TestConfigure_RejectsOutOfRangeCounts(t *testing.T) {
	tt := newTestTable(t, TableConfig{Script: "Tiny", Residents: 5})
	err := tt.SubmitEvent(Event{Type: EventConfigure, UserID: storytellerID, Config: TableConfig{Script: "Trouble Brewing", Residents: 15, Travelers: 6}})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if got := tt.GrimoireView().Config; got.Residents != 5 {
		t.Fatalf("rejected configure changed the config: %+v", got)
	}
}

func TestSeatEdits(t *testing.T) {
	tt := newTestTable(t, TableConfig{Script: "Tiny", Residents: 5})
	if err := tt.SubmitEvent(Event{Type: EventSetUsername, UserID: storytellerID, Seat: 0, Username: "ann"}); !errors.Is(err, grimoire.ErrNotGenerated) {
		t.Fatalf("expected ErrNotGenerated, got %v", err)
	}
	tt.submit(t, Event{Type: EventGenerate, UserID: storytellerID})

	tt.submit(t, Event{Type: EventSetUsername, UserID: storytellerID, Seat: 2, Username: "  ann "})
	tt.submit(t, Event{Type: EventToggleStatus, UserID: storytellerID, Seat: 2, Status: grimoire.StatusDead})
	tt.submit(t, Event{Type: EventToggleStatus, UserID: storytellerID, Seat: 2, Status: grimoire.StatusPoisoned})

	square := tt.TownSquareView()
	if square.Seats[2].Username != "ann" || !square.Seats[2].Dead {
		t.Fatalf("unexpected public seat %+v", square.Seats[2])
	}
	seat := tt.GrimoireView().Seats[2]
	if !seat.Statuses.Has(grimoire.StatusPoisoned) {
		t.Fatalf("expected Poisoned on seat 2, got %v", seat.Statuses.Names())
	}

	tt.submit(t, Event{Type: EventClearStatuses, UserID: storytellerID, Seat: 2})
	if got := tt.GrimoireView().Seats[2].Statuses; got != 0 {
		t.Fatalf("expected statuses cleared, got %v", got.Names())
	}

	if err := tt.SubmitEvent(Event{Type: EventSetUsername, UserID: storytellerID, Seat: 9}); !errors.Is(err, ErrInvalidSeat) {
		t.Fatalf("expected ErrInvalidSeat, got %v", err)
	}
}

func TestEndGame_RecordsAndResets(t *testing.T) {
	tt := newTestTable(t, TableConfig{Script: "Tiny", Residents: 5})
	tt.submit(t, Event{Type: EventGenerate, UserID: storytellerID})

	hookCh := make(chan GameEndInfo, 1)
	tt.AddGameEndHook(func(info GameEndInfo) { hookCh <- info })

	err := tt.SubmitEvent(Event{Type: EventEndGame, UserID: storytellerID, Winner: grimoire.TeamDemon})
	if !errors.Is(err, grimoire.ErrInvalidUsernames) {
		t.Fatalf("expected ErrInvalidUsernames, got %v", err)
	}
	if !tt.GrimoireView().Generated {
		t.Fatalf("failed end game must keep the grimoire")
	}

	names := []string{"ann", "ben", "cat", "dan", "eve"}
	for i, name := range names {
		tt.submit(t, Event{Type: EventSetUsername, UserID: storytellerID, Seat: i, Username: name})
	}
	tt.submit(t, Event{Type: EventEndGame, UserID: storytellerID, Winner: grimoire.TeamDemon})

	if tt.GrimoireView().Generated {
		t.Fatalf("expected grimoire cleared after end game")
	}
	matches, err := tt.ledger.RecentMatches(context.Background(), 0)
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one recorded match, got %d err=%v", len(matches), err)
	}
	if matches[0].Key != "game1|Demon|sam|Tiny" || len(matches[0].Rows) != 5 {
		t.Fatalf("unexpected match %+v", matches[0])
	}
	for _, row := range matches[0].Rows {
		evil := row.Class == "Minion" || row.Class == "Demon"
		if row.Won() != evil {
			t.Fatalf("unexpected result for %+v", row)
		}
	}
	if tt.out.ofType(spectatorID, codec.TypeGameEnd) != 1 {
		t.Fatalf("expected spectator to receive game_end")
	}

	select {
	case info := <-hookCh:
		if info.Game != 1 || info.Result.GameID != "game1" {
			t.Fatalf("unexpected hook info %+v", info)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("game end hook not called")
	}
}

func TestReset(t *testing.T) {
	tt := newTestTable(t, TableConfig{Script: "Tiny", Residents: 5})
	tt.submit(t, Event{Type: EventGenerate, UserID: storytellerID})
	tt.submit(t, Event{Type: EventReset, UserID: storytellerID})
	if tt.GrimoireView().Generated || tt.Summary().Generated {
		t.Fatalf("expected reset to clear the grimoire")
	}
}

func TestCloseAndIdle(t *testing.T) {
	tt := newTestTable(t, TableConfig{Script: "Tiny", Residents: 5})
	if tt.IsIdleFor(0) {
		t.Fatalf("table with online viewers is not idle")
	}
	tt.submit(t, Event{Type: EventConnLost, UserID: storytellerID})
	tt.submit(t, Event{Type: EventLeaveTable, UserID: spectatorID})
	if !tt.IsIdleFor(0) {
		t.Fatalf("expected table to be idle once everyone left")
	}
	tt.submit(t, Event{Type: EventConnResume, UserID: storytellerID})
	if tt.IsIdleFor(0) {
		t.Fatalf("resumed storyteller keeps the table busy")
	}

	if err := tt.SubmitEvent(Event{Type: EventClose, UserID: spectatorID}); !errors.Is(err, ErrNotStoryteller) {
		t.Fatalf("expected ErrNotStoryteller, got %v", err)
	}
	tt.submit(t, Event{Type: EventClose, UserID: storytellerID})
	if !tt.IsClosed() {
		t.Fatalf("expected table closed")
	}
	if err := tt.SubmitEvent(Event{Type: EventGenerate, UserID: storytellerID}); !errors.Is(err, ErrTableClosed) {
		t.Fatalf("expected ErrTableClosed, got %v", err)
	}
}
