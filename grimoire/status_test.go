package grimoire

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestStatusSet_ToggleAndClear(t *testing.T) {
	var ss StatusSet
	if !ss.Toggle(StatusPoisoned) || !ss.Has(StatusPoisoned) {
		t.Fatalf("expected Poisoned to be set")
	}
	ss.Add(StatusDead)
	if got := ss.Names(); !reflect.DeepEqual(got, []string{"Dead", "Poisoned"}) {
		t.Fatalf("unexpected names %v", got)
	}
	if ss.Toggle(StatusPoisoned) || ss.Has(StatusPoisoned) {
		t.Fatalf("expected Poisoned to be cleared")
	}
	ss.Clear()
	if len(ss.List()) != 0 {
		t.Fatalf("expected empty set, got %v", ss.List())
	}
}

func TestStatusSet_JSON(t *testing.T) {
	var ss StatusSet
	ss.Add(StatusMad)
	ss.Add(StatusProtected)
	raw, err := json.Marshal(ss)
	if err != nil {
		t.Fatalf("Marshal err: %v", err)
	}
	if string(raw) != `["Mad","Protected"]` {
		t.Fatalf("unexpected json %s", raw)
	}
	var back StatusSet
	if err := json.Unmarshal([]byte(`["protected","Mad"]`), &back); err != nil {
		t.Fatalf("Unmarshal err: %v", err)
	}
	if back != ss {
		t.Fatalf("expected %v, got %v", ss.Names(), back.Names())
	}
	if err := json.Unmarshal([]byte(`["Cursed"]`), &back); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses() {
		got, err := ParseStatus(s.String())
		if err != nil || got != s {
			t.Fatalf("ParseStatus(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseStatus("Cursed"); err == nil {
		t.Fatalf("expected error")
	}
}
