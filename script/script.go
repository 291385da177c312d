package script

import (
	"fmt"
	"strings"
)

// Definition is the literal form of a script before validation.
type Definition struct {
	Name      string   `json:"name"`
	Townsfolk []string `json:"townsfolk"`
	Outsider  []string `json:"outsider"`
	Minion    []string `json:"minion"`
	Demon     []string `json:"demon"`
	Traveler  []string `json:"traveler,omitempty"`
}

// Script is an immutable, validated role set with a precomputed role -> category index.
type Script struct {
	name  string
	lists [5]RoleList
	index map[string]Category
}

func New(def Definition) (*Script, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, fmt.Errorf("script name is required")
	}
	if strings.Contains(name, "|") {
		return nil, fmt.Errorf("script name %q must not contain '|'", name)
	}
	s := &Script{
		name:  name,
		index: make(map[string]Category),
	}
	raw := [5][]string{def.Townsfolk, def.Outsider, def.Minion, def.Demon, def.Traveler}
	for i, roles := range raw {
		cat := Category(i)
		list := make(RoleList, 0, len(roles))
		for _, role := range roles {
			role = strings.TrimSpace(role)
			if role == "" {
				return nil, fmt.Errorf("script %s: empty role name in %s", name, cat)
			}
			if prev, exists := s.index[role]; exists {
				return nil, fmt.Errorf("script %s: role %q listed in both %s and %s", name, role, prev, cat)
			}
			s.index[role] = cat
			list = append(list, role)
		}
		s.lists[i] = list
	}
	for _, cat := range ResidentCategories {
		if len(s.lists[cat]) == 0 {
			return nil, fmt.Errorf("script %s: %s list is empty", name, cat)
		}
	}
	return s, nil
}

func MustNew(def Definition) *Script {
	s, err := New(def)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Script) Name() string { return s.name }

// Definition returns the literal form of s.
func (s *Script) Definition() Definition {
	return Definition{
		Name:      s.name,
		Townsfolk: s.Roles(Townsfolk),
		Outsider:  s.Roles(Outsider),
		Minion:    s.Roles(Minion),
		Demon:     s.Roles(Demon),
		Traveler:  s.Roles(Traveler),
	}
}

// Roles returns a copy of the roles listed under cat.
func (s *Script) Roles(cat Category) RoleList {
	if int(cat) >= len(s.lists) {
		return RoleList{}
	}
	return s.lists[cat].Clone()
}

// Count returns the number of roles listed under cat.
func (s *Script) Count(cat Category) int {
	if int(cat) >= len(s.lists) {
		return 0
	}
	return len(s.lists[cat])
}

// CategoryOf classes a role name, returning Unknown for names not on the script.
func (s *Script) CategoryOf(role string) Category {
	if cat, ok := s.index[role]; ok {
		return cat
	}
	return Unknown
}

func (s *Script) Has(role string) bool {
	_, ok := s.index[role]
	return ok
}
