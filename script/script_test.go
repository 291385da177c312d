package script

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

func TestNew_BuildsReverseLookup(t *testing.T) {
	s := TroubleBrewing
	cases := map[string]Category{
		"Chef":      Townsfolk,
		"Drunk":     Outsider,
		"Baron":     Minion,
		"Imp":       Demon,
		"Scapegoat": Traveler,
		"Po":        Unknown,
	}
	for role, want := range cases {
		if got := s.CategoryOf(role); got != want {
			t.Fatalf("CategoryOf(%q): expected %s, got %s", role, want, got)
		}
	}
}

func TestNew_RejectsRoleInTwoCategories(t *testing.T) {
	_, err := New(Definition{
		Name:      "Broken",
		Townsfolk: []string{"Chef", "Empath"},
		Outsider:  []string{"Chef"},
		Minion:    []string{"Spy"},
		Demon:     []string{"Imp"},
	})
	if err == nil {
		t.Fatalf("expected duplicate role to be rejected")
	}
	if !strings.Contains(err.Error(), "Chef") {
		t.Fatalf("expected error to name the role, got %v", err)
	}
}

func TestNew_RejectsEmptyResidentCategory(t *testing.T) {
	_, err := New(Definition{
		Name:      "No Demons",
		Townsfolk: []string{"Chef"},
		Outsider:  []string{"Saint"},
		Minion:    []string{"Spy"},
	})
	if err == nil {
		t.Fatalf("expected empty Demon list to be rejected")
	}
}

func TestNew_TravelerListIsOptional(t *testing.T) {
	s, err := New(Definition{
		Name:      "Tiny",
		Townsfolk: []string{"Chef"},
		Outsider:  []string{"Saint"},
		Minion:    []string{"Spy"},
		Demon:     []string{"Imp"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Count(Traveler) != 0 {
		t.Fatalf("expected empty traveler list")
	}
}

func TestRoles_ReturnsCopy(t *testing.T) {
	roles := TroubleBrewing.Roles(Demon)
	roles[0] = "Changed"
	if TroubleBrewing.Roles(Demon)[0] != "Imp" {
		t.Fatalf("script must not be mutable through Roles")
	}
}

func TestCatalog_LookupIgnoresCase(t *testing.T) {
	c := Builtin()
	s, ok := c.Lookup("  trouble brewing ")
	if !ok || s != TroubleBrewing {
		t.Fatalf("expected Trouble Brewing lookup to succeed")
	}
	if _, ok := c.Lookup("Unknown Script"); ok {
		t.Fatalf("expected lookup miss")
	}
	names := c.Names()
	if len(names) != 4 || names[0] != "Trouble Brewing" {
		t.Fatalf("unexpected catalog order: %v", names)
	}
}

func TestRoleList_SampleIsDistinctAndLeavesSourceIntact(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	src := TroubleBrewing.Roles(Townsfolk)
	before := src.Clone()
	for n := 0; n <= len(src); n++ {
		got, ok := src.Sample(rng, n)
		if !ok {
			t.Fatalf("Sample(%d) failed", n)
		}
		if len(got) != n {
			t.Fatalf("Sample(%d) returned %d roles", n, len(got))
		}
		seen := make(map[string]struct{}, n)
		for _, r := range got {
			if _, dup := seen[r]; dup {
				t.Fatalf("Sample(%d) returned duplicate %q", n, r)
			}
			seen[r] = struct{}{}
			if !src.Contains(r) {
				t.Fatalf("Sample returned foreign role %q", r)
			}
		}
	}
	for i := range before {
		if before[i] != src[i] {
			t.Fatalf("Sample mutated the source list")
		}
	}
	if _, ok := src.Sample(rng, len(src)+1); ok {
		t.Fatalf("expected oversize sample to fail")
	}
}

func TestRoleList_InsertAndPop(t *testing.T) {
	rl := RoleList{"a", "c"}
	rl.Insert(1, "b")
	rl.Insert(3, "d")
	rl.Insert(0, "z")
	want := []string{"z", "a", "b", "c", "d"}
	if len(rl) != len(want) {
		t.Fatalf("unexpected length %d", len(rl))
	}
	for i := range want {
		if rl[i] != want[i] {
			t.Fatalf("index %d: expected %s, got %s", i, want[i], rl[i])
		}
	}
	if got := rl.PopOr("x"); got != "d" {
		t.Fatalf("expected d, got %s", got)
	}
	empty := RoleList{}
	if got := empty.PopOr("fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %s", got)
	}
	if !rl.Remove("a") || rl.Remove("missing") {
		t.Fatalf("unexpected Remove result")
	}
}

func TestParseCategory(t *testing.T) {
	for _, cat := range []Category{Townsfolk, Outsider, Minion, Demon, Traveler} {
		got, err := ParseCategory(cat.String())
		if err != nil || got != cat {
			t.Fatalf("round trip of %s failed: %v %v", cat, got, err)
		}
	}
	if _, err := ParseCategory("Fabled"); err == nil {
		t.Fatalf("expected unknown category error")
	}
}

func TestDefinition_RebuildsSameScript(t *testing.T) {
	def := TroubleBrewing.Definition()
	again, err := New(def)
	if err != nil {
		t.Fatalf("New(Definition()) failed: %v", err)
	}
	for _, cat := range []Category{Townsfolk, Outsider, Minion, Demon, Traveler} {
		if !reflect.DeepEqual(again.Roles(cat), TroubleBrewing.Roles(cat)) {
			t.Fatalf("%s roles differ after round trip", cat)
		}
	}
}
