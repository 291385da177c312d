package grimoire

import (
	"errors"
	"fmt"

	"clocktower-lite/script"
)

var (
	ErrUnsupportedPlayerCount = errors.New("unsupported player count")
	ErrInsufficientRolePool   = errors.New("insufficient role pool")
	ErrNotGenerated           = errors.New("roles not generated")
	ErrInvalidUsernames       = errors.New("invalid usernames")
	ErrInvalidTeam            = errors.New("invalid winning team")
	ErrInvalidStoryteller     = errors.New("invalid storyteller")
)

// UnsupportedPlayerCountError reports a resident count with no Distribution Table entry.
type UnsupportedPlayerCountError struct {
	Residents int
}

func (e *UnsupportedPlayerCountError) Error() string {
	return fmt.Sprintf("unsupported number of residents: %d (supported %d-%d)", e.Residents, MinResidents, MaxResidents)
}

func (e *UnsupportedPlayerCountError) Is(target error) bool {
	return target == ErrUnsupportedPlayerCount
}

// InsufficientRolePoolError reports a sample request larger than the distinct roles available.
type InsufficientRolePoolError struct {
	Category  script.Category
	Requested int
	Available int
}

func (e *InsufficientRolePoolError) Error() string {
	return fmt.Sprintf("not enough %s roles to sample: requested %d, available %d", e.Category, e.Requested, e.Available)
}

func (e *InsufficientRolePoolError) Is(target error) bool {
	return target == ErrInsufficientRolePool
}
