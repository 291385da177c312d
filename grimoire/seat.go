package grimoire

import (
	"fmt"
	"strings"

	"clocktower-lite/script"
)

// Seat is one player slot produced by the generator.
type Seat struct {
	Index int `json:"index"`

	// Role is the display string, possibly "Drunk-<fake>" and/or suffixed "-Evil Twin".
	Role     string          `json:"role"`
	TrueRole string          `json:"true_role"`
	Class    script.Category `json:"class"`
	Traveler bool            `json:"traveler"`

	// DrunkAs is the role a Drunk believes they hold.
	DrunkAs    string `json:"drunk_as,omitempty"`
	TwinMarked bool   `json:"twin_marked,omitempty"`

	Username string    `json:"username,omitempty"`
	Statuses StatusSet `json:"statuses"`
}

// ScoringRole is the role recorded for statistics.
func (s Seat) ScoringRole() string {
	if s.TrueRole != "" {
		return s.TrueRole
	}
	return ScoringRole(s.Role)
}

func (s Seat) IsResident() bool { return !s.Traveler }

// ScoringRole collapses a display role back to the role it stands for.
func ScoringRole(display string) string {
	if display == RoleDrunk || strings.HasPrefix(display, drunkPrefix) {
		return RoleDrunk
	}
	if display != RoleEvilTwin {
		display = strings.TrimSuffix(display, evilTwinSuffix)
	}
	return display
}

// ValidateUsernames requires every seat to carry a non-empty, unique username.
func ValidateUsernames(seats []Seat) error {
	seen := make(map[string]int, len(seats))
	for _, seat := range seats {
		name := strings.TrimSpace(seat.Username)
		if name == "" {
			return &UsernameError{Seat: seat.Index, Reason: "all usernames are required"}
		}
		if prev, dup := seen[name]; dup {
			return &UsernameError{Seat: seat.Index, Reason: fmt.Sprintf("username %q already used by seat %d", name, prev)}
		}
		seen[name] = seat.Index
	}
	return nil
}

// UsernameError names the first seat failing ValidateUsernames.
type UsernameError struct {
	Seat   int
	Reason string
}

func (e *UsernameError) Error() string {
	return fmt.Sprintf("seat %d: %s", e.Seat, e.Reason)
}

func (e *UsernameError) Is(target error) bool { return target == ErrInvalidUsernames }
