package table

import (
	"log"
	"sort"

	"clocktower-lite/apps/server/internal/codec"
	"clocktower-lite/grimoire"
)

// GrimoireView is the storyteller's full view of the table.
type GrimoireView struct {
	TableID      string                 `json:"table_id"`
	Storyteller  string                 `json:"storyteller"`
	Config       TableConfig            `json:"config"`
	Generated    bool                   `json:"generated"`
	AllGood      bool                   `json:"all_good"`
	Distribution *grimoire.Distribution `json:"distribution,omitempty"`
	Seats        []grimoire.Seat        `json:"seats"`
	Bluffs       []string               `json:"bluffs"`
	Viewers      []string               `json:"viewers"`
	Games        int                    `json:"games"`
}

// PublicSeat is what players see of a seat.
type PublicSeat struct {
	Index    int    `json:"index"`
	Username string `json:"username"`
	Dead     bool   `json:"dead"`
	Traveler bool   `json:"traveler"`
}

// TownSquareView is the table as seen by everyone but the storyteller.
type TownSquareView struct {
	TableID     string       `json:"table_id"`
	Storyteller string       `json:"storyteller"`
	Config      TableConfig  `json:"config"`
	Generated   bool         `json:"generated"`
	Seats       []PublicSeat `json:"seats"`
}

// Summary is the lobby listing entry of a table.
type Summary struct {
	ID          string      `json:"id"`
	Storyteller string      `json:"storyteller"`
	Config      TableConfig `json:"config"`
	Generated   bool        `json:"generated"`
	Viewers     int         `json:"viewers"`
	Games       int         `json:"games"`
	Closed      bool        `json:"closed"`
}

type gameEndPayload struct {
	MatchKey string                `json:"match_key"`
	Winner   grimoire.Team         `json:"winner"`
	Seats    []grimoire.SeatResult `json:"seats"`
}

func (t *Table) GrimoireView() GrimoireView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.grimoireViewLocked()
}

func (t *Table) TownSquareView() TownSquareView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.townSquareViewLocked()
}

func (t *Table) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Summary{
		ID:          t.ID,
		Storyteller: t.ownerName,
		Config:      t.config,
		Generated:   t.setup != nil,
		Viewers:     len(t.viewers),
		Games:       t.games,
		Closed:      t.closed,
	}
}

func (t *Table) grimoireViewLocked() GrimoireView {
	view := GrimoireView{
		TableID:     t.ID,
		Storyteller: t.ownerName,
		Config:      t.config,
		Seats:       []grimoire.Seat{},
		Bluffs:      []string{},
		Viewers:     t.viewerNamesLocked(),
		Games:       t.games,
	}
	if t.setup != nil {
		d := t.setup.Distribution
		view.Generated = true
		view.AllGood = t.setup.AllGood
		view.Distribution = &d
		view.Seats = append(view.Seats, t.setup.Seats...)
		view.Bluffs = append(view.Bluffs, t.setup.Bluffs...)
	}
	return view
}

func (t *Table) townSquareViewLocked() TownSquareView {
	view := TownSquareView{
		TableID:     t.ID,
		Storyteller: t.ownerName,
		Config:      t.config,
		Seats:       []PublicSeat{},
	}
	if t.setup != nil {
		view.Generated = true
		for _, seat := range t.setup.Seats {
			view.Seats = append(view.Seats, PublicSeat{
				Index:    seat.Index,
				Username: seat.Username,
				Dead:     seat.Statuses.Has(grimoire.StatusDead),
				Traveler: seat.Traveler,
			})
		}
	}
	return view
}

func (t *Table) viewerNamesLocked() []string {
	names := make([]string, 0, len(t.viewers))
	for _, v := range t.viewers {
		names = append(names, v.Name)
	}
	sort.Strings(names)
	return names
}

func (t *Table) sendToUser(userID uint64, msgType string, payload any) {
	data, err := codec.EncodeServer(t.ID, t.nextSeq(), msgType, payload)
	if err != nil {
		log.Printf("[Table %s] Failed to encode %s: %v", t.ID, msgType, err)
		return
	}
	t.broadcast(userID, data)
}

// sendView sends the grimoire to the storyteller and the town square to anyone else.
func (t *Table) sendView(userID uint64) {
	if userID == t.Owner {
		t.sendToUser(userID, codec.TypeGrimoire, t.grimoireViewLocked())
		return
	}
	t.sendToUser(userID, codec.TypeTownSquare, t.townSquareViewLocked())
}

func (t *Table) broadcastViews() {
	for userID, v := range t.viewers {
		if !v.Online {
			continue
		}
		t.sendView(userID)
	}
}

func (t *Table) broadcastGameEnd(result *grimoire.MatchResult) {
	payload := gameEndPayload{MatchKey: result.Key(), Winner: result.Winner, Seats: result.Seats}
	for userID, v := range t.viewers {
		if !v.Online {
			continue
		}
		t.sendToUser(userID, codec.TypeGameEnd, payload)
	}
}
