package grimoire

import (
	"fmt"
	"strings"

	"clocktower-lite/script"
)

// Team is the side declared as winner at the end of a game.
type Team string

const (
	TeamTownsfolk Team = "Townsfolk"
	TeamDemon     Team = "Demon"
)

func ParseTeam(raw string) (Team, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "townsfolk", "good":
		return TeamTownsfolk, nil
	case "demon", "demons", "evil":
		return TeamDemon, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTeam, raw)
}

// IsWinner applies the fixed team rule: Townsfolk and Outsiders win with the
// Townsfolk, Minions and Demons win with the Demon. Travelers never score a win.
func IsWinner(class script.Category, winner Team) bool {
	switch winner {
	case TeamTownsfolk:
		return class.IsGood()
	case TeamDemon:
		return class.IsEvil()
	}
	return false
}

// SeatResult is one persisted row of a finished game.
type SeatResult struct {
	Class    script.Category `json:"class"`
	Username string          `json:"username"`
	Role     string          `json:"role"`
	Won      bool            `json:"won"`
}

// Outcome renders the Win/Loss literal of the match log.
func (r SeatResult) Outcome() string {
	if r.Won {
		return "Win"
	}
	return "Loss"
}

// MatchResult is a finished game ready to be stored.
type MatchResult struct {
	GameID      string       `json:"game_id"`
	Winner      Team         `json:"winner"`
	Storyteller string       `json:"storyteller"`
	Script      string       `json:"script"`
	Seats       []SeatResult `json:"seats"`
}

// Key is the literal match identifier "gameId|winner|storyteller|script".
func (m *MatchResult) Key() string {
	return strings.Join([]string{m.GameID, string(m.Winner), m.Storyteller, m.Script}, "|")
}

// MatchKey is the parsed form of a match identifier.
type MatchKey struct {
	GameID      string
	Winner      Team
	Storyteller string
	Script      string
}

func ParseMatchKey(raw string) (MatchKey, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 4 {
		return MatchKey{}, fmt.Errorf("malformed match key %q", raw)
	}
	return MatchKey{
		GameID:      parts[0],
		Winner:      Team(parts[1]),
		Storyteller: parts[2],
		Script:      parts[3],
	}, nil
}

// CheckSettle reports whether setup can be settled with winner and storyteller.
// Callers that mint game ids run it first so a rejected end game consumes none.
func CheckSettle(setup *Setup, winner Team, storyteller string) error {
	if setup == nil || len(setup.Seats) == 0 {
		return ErrNotGenerated
	}
	if winner != TeamTownsfolk && winner != TeamDemon {
		return fmt.Errorf("%w: %q", ErrInvalidTeam, winner)
	}
	storyteller = strings.TrimSpace(storyteller)
	if storyteller == "" {
		return fmt.Errorf("%w: storyteller name is required", ErrInvalidStoryteller)
	}
	if strings.Contains(storyteller, "|") {
		return fmt.Errorf("%w: storyteller name must not contain '|'", ErrInvalidStoryteller)
	}
	return ValidateUsernames(setup.Seats)
}

// Settle turns a played setup into a MatchResult. Usernames must already be set on every seat.
func Settle(setup *Setup, winner Team, storyteller, gameID string) (*MatchResult, error) {
	if err := CheckSettle(setup, winner, storyteller); err != nil {
		return nil, err
	}
	storyteller = strings.TrimSpace(storyteller)
	if strings.TrimSpace(gameID) == "" || strings.Contains(gameID, "|") {
		return nil, fmt.Errorf("invalid game id %q", gameID)
	}

	result := &MatchResult{
		GameID:      gameID,
		Winner:      winner,
		Storyteller: storyteller,
		Script:      setup.Script,
		Seats:       make([]SeatResult, 0, len(setup.Seats)),
	}
	for _, seat := range setup.Seats {
		result.Seats = append(result.Seats, SeatResult{
			Class:    seat.Class,
			Username: strings.TrimSpace(seat.Username),
			Role:     seat.ScoringRole(),
			Won:      IsWinner(seat.Class, winner),
		})
	}
	return result, nil
}
