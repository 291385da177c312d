package script

import (
	"fmt"
	"strings"
)

// Category is the team bucket a role is listed under in a script.
type Category byte

const (
	Townsfolk Category = iota
	Outsider
	Minion
	Demon
	Traveler
	Unknown Category = 255
)

// ResidentCategories is the lookup order used when classing a resident role.
var ResidentCategories = [...]Category{Townsfolk, Outsider, Minion, Demon}

func (c Category) String() string {
	switch c {
	case Townsfolk:
		return "Townsfolk"
	case Outsider:
		return "Outsider"
	case Minion:
		return "Minion"
	case Demon:
		return "Demon"
	case Traveler:
		return "Traveler"
	}
	return "Unknown"
}

// IsGood reports whether the category plays for the Townsfolk team.
func (c Category) IsGood() bool { return c == Townsfolk || c == Outsider }

// IsEvil reports whether the category plays for the Demon team.
func (c Category) IsEvil() bool { return c == Minion || c == Demon }

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(raw []byte) error {
	parsed, err := ParseCategory(string(raw))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "townsfolk":
		return Townsfolk, nil
	case "outsider":
		return Outsider, nil
	case "minion":
		return Minion, nil
	case "demon":
		return Demon, nil
	case "traveler", "traveller":
		return Traveler, nil
	}
	return Unknown, fmt.Errorf("unknown category %q", raw)
}
