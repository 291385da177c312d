package grimoire

import "clocktower-lite/script"

// Player limits enforced by callers before generating.
const (
	MinResidents = 5
	MaxResidents = 15
	MaxTravelers = 5
	MaxPlayers   = 20
)

// Roles with setup side effects.
const (
	RoleBaron      = "Baron"
	RoleGodfather  = "Godfather"
	RoleAtheist    = "Atheist"
	RoleMarionette = "Marionette"
	RoleDrunk      = "Drunk"
	RoleEvilTwin   = "Evil Twin"
)

const (
	FallbackBluff    = "N/A"
	FallbackDrunk    = "unknown"
	FallbackTraveler = "Traveler"

	drunkPrefix    = RoleDrunk + "-"
	evilTwinSuffix = "-" + RoleEvilTwin
	bluffCount     = 3
)

// Distribution is the number of resident seats per category.
type Distribution struct {
	Townsfolk int `json:"townsfolk"`
	Outsiders int `json:"outsiders"`
	Minions   int `json:"minions"`
	Demons    int `json:"demons"`
}

func (d Distribution) Total() int {
	return d.Townsfolk + d.Outsiders + d.Minions + d.Demons
}

// Count returns the seats assigned to cat.
func (d Distribution) Count(cat script.Category) int {
	switch cat {
	case script.Townsfolk:
		return d.Townsfolk
	case script.Outsider:
		return d.Outsiders
	case script.Minion:
		return d.Minions
	case script.Demon:
		return d.Demons
	}
	return 0
}

var distributionTable = map[int]Distribution{
	5:  {3, 0, 1, 1},
	6:  {3, 1, 1, 1},
	7:  {5, 0, 1, 1},
	8:  {5, 1, 1, 1},
	9:  {5, 2, 1, 1},
	10: {7, 0, 2, 1},
	11: {7, 1, 2, 1},
	12: {7, 2, 2, 1},
	13: {9, 0, 3, 1},
	14: {9, 1, 3, 1},
	15: {9, 2, 3, 1},
}

// BaseDistribution looks up the unadjusted split for a resident count.
func BaseDistribution(residents int) (Distribution, error) {
	d, ok := distributionTable[residents]
	if !ok {
		return Distribution{}, &UnsupportedPlayerCountError{Residents: residents}
	}
	return d, nil
}
