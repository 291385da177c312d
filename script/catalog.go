package script

import (
	"fmt"
	"strings"
)

// Catalog is an ordered, read-only collection of scripts keyed by name.
type Catalog struct {
	order  []string
	byName map[string]*Script
}

func NewCatalog(scripts ...*Script) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Script, len(scripts))}
	for _, s := range scripts {
		if s == nil {
			continue
		}
		key := catalogKey(s.Name())
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate script %q", s.Name())
		}
		c.byName[key] = s
		c.order = append(c.order, s.Name())
	}
	return c, nil
}

// Lookup finds a script by name, ignoring case and surrounding space.
func (c *Catalog) Lookup(name string) (*Script, bool) {
	s, ok := c.byName[catalogKey(name)]
	return s, ok
}

// Names lists script names in catalog order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Default returns the first script of the catalog.
func (c *Catalog) Default() *Script {
	if len(c.order) == 0 {
		return nil
	}
	return c.byName[catalogKey(c.order[0])]
}

func catalogKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var (
	TroubleBrewing = MustNew(Definition{
		Name: "Trouble Brewing",
		Townsfolk: []string{
			"Washerwoman", "Librarian", "Investigator", "Chef", "Empath",
			"Fortune Teller", "Undertaker", "Monk", "Ravenkeeper", "Virgin",
			"Slayer", "Soldier", "Mayor",
		},
		Outsider: []string{"Butler", "Drunk", "Recluse", "Saint"},
		Minion:   []string{"Poisoner", "Spy", "Scarlet Woman", "Baron"},
		Demon:    []string{"Imp"},
		Traveler: []string{"Scapegoat", "Gunslinger", "Beggar", "Bureaucrat", "Thief"},
	})

	BadMoonRising = MustNew(Definition{
		Name: "Bad Moon Rising",
		Townsfolk: []string{
			"Grandmother", "Sailor", "Chambermaid", "Exorcist", "Innkeeper",
			"Gambler", "Gossip", "Courtier", "Professor", "Minstrel",
			"Tea Lady", "Pacifist", "Fool",
		},
		Outsider: []string{"Goon", "Lunatic", "Tinker", "Moonchild"},
		Minion:   []string{"Godfather", "Devil's Advocate", "Assassin", "Mastermind"},
		Demon:    []string{"Zombuul", "Pukka", "Shabaloth", "Po"},
		Traveler: []string{"Scapegoat", "Gunslinger", "Beggar", "Bureaucrat", "Thief"},
	})

	SectsAndViolets = MustNew(Definition{
		Name: "Sects & Violets",
		Townsfolk: []string{
			"Clockmaker", "Dreamer", "Snake Charmer", "Mathematician", "Flowergirl",
			"Town Crier", "Oracle", "Savant", "Seamstress", "Philosopher",
			"Artist", "Juggler", "Sage",
		},
		Outsider: []string{"Mutant", "Sweetheart", "Barber", "Klutz"},
		Minion:   []string{"Evil Twin", "Witch", "Cerenovus", "Pit-Hag"},
		Demon:    []string{"Fang Gu", "Vigormortis", "No Dashii", "Vortox"},
		Traveler: []string{"Barista", "Harlot", "Butcher", "Bone Collector", "Deviant"},
	})

	// Laboratory mixes the roles with setup side effects into one script.
	Laboratory = MustNew(Definition{
		Name: "Laboratory",
		Townsfolk: []string{
			"Atheist", "Washerwoman", "Librarian", "Investigator", "Chef",
			"Empath", "Fortune Teller", "Undertaker", "Monk", "Ravenkeeper",
			"Slayer", "Soldier", "Mayor", "Grandmother", "Sailor",
		},
		Outsider: []string{"Drunk", "Recluse", "Saint", "Butler", "Mutant", "Klutz"},
		Minion:   []string{"Baron", "Godfather", "Marionette", "Evil Twin", "Poisoner", "Spy"},
		Demon:    []string{"Imp", "Fang Gu", "No Dashii", "Po"},
		Traveler: []string{"Scapegoat", "Gunslinger", "Beggar"},
	})
)

// Builtin returns the catalog of scripts shipped with the application.
func Builtin() *Catalog {
	c, err := NewCatalog(TroubleBrewing, BadMoonRising, SectsAndViolets, Laboratory)
	if err != nil {
		panic(err)
	}
	return c
}
