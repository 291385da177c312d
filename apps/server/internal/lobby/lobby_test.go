package lobby

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clocktower-lite/apps/server/internal/ledger"
	"clocktower-lite/apps/server/internal/table"
	"clocktower-lite/grimoire"
	"clocktower-lite/replay"
	"clocktower-lite/script"
)

func TestCreateListAndReap(t *testing.T) {
	l := New(nil, ledger.NewMemoryService())
	defer l.Close()

	first, err := l.CreateTable(1, "sam", table.TableConfig{}, nil)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if got := first.Summary().Config; got.Script != "Trouble Brewing" || got.Residents != defaultResidents {
		t.Fatalf("unexpected default config %+v", got)
	}
	second, err := l.CreateTable(2, "kim", table.TableConfig{Script: "Bad Moon Rising", Residents: 10, Travelers: 1}, nil)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if _, err := l.CreateTable(3, "bad", table.TableConfig{Residents: 30}, nil); err == nil {
		t.Fatalf("expected invalid config to be rejected")
	}

	if l.GetTable(first.ID) != first || l.GetTable("missing") != nil {
		t.Fatalf("GetTable returned the wrong table")
	}
	list := l.ListTables()
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("expected tables ordered by creation, got %+v", list)
	}

	if err := second.SubmitEvent(table.Event{Type: table.EventJoinTable, UserID: 2}); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if removed := l.ReapIdle(time.Hour); removed != 0 {
		t.Fatalf("expected nothing reaped with a long ttl, got %d", removed)
	}
	if removed := l.ReapIdle(0); removed != 1 {
		t.Fatalf("expected only the empty table reaped, got %d", removed)
	}
	if !first.IsClosed() || l.GetTable(first.ID) != nil {
		t.Fatalf("reaped table should be stopped and forgotten")
	}
}

func TestHTTPRoutes(t *testing.T) {
	l := New(nil, nil)
	defer l.Close()
	mux := http.NewServeMux()
	NewHTTPHandler(l).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/scripts")
	if err != nil {
		t.Fatalf("GET scripts: %v", err)
	}
	var scripts struct {
		Scripts []struct {
			Name      string   `json:"name"`
			Townsfolk []string `json:"townsfolk"`
		} `json:"scripts"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&scripts)
	resp.Body.Close()
	if len(scripts.Scripts) != 4 || scripts.Scripts[0].Name != "Trouble Brewing" || len(scripts.Scripts[0].Townsfolk) != 13 {
		t.Fatalf("unexpected scripts %+v", scripts)
	}

	body, _ := json.Marshal(replay.SetupSpec{Script: "Trouble Brewing", Residents: 8, Travelers: 1, RNG: &replay.RNGSpec{Seed: 9}})
	resp, err = http.Post(srv.URL+"/api/setup", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST setup: %v", err)
	}
	var setup setupResponse
	_ = json.NewDecoder(resp.Body).Decode(&setup)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !setup.OK || len(setup.Tape.Events) != 1+8+1+1 || setup.Tape.Seed != 9 {
		t.Fatalf("unexpected setup response %d %+v", resp.StatusCode, setup)
	}

	tapeBody, _ := json.Marshal(setup.Tape)
	resp, err = http.Post(srv.URL+"/api/setup/verify", "application/json", bytes.NewReader(tapeBody))
	if err != nil {
		t.Fatalf("POST verify: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected tape to verify, got %d", resp.StatusCode)
	}

	body, _ = json.Marshal(replay.SetupSpec{Script: "Nope", Residents: 8})
	resp, err = http.Post(srv.URL+"/api/setup", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST setup: %v", err)
	}
	var failed setupResponse
	_ = json.NewDecoder(resp.Body).Decode(&failed)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest || failed.Error == nil || failed.Error.Reason != "unknown_script" {
		t.Fatalf("unexpected error response %d %+v", resp.StatusCode, failed)
	}

	resp, err = http.Get(srv.URL + "/api/tables")
	if err != nil {
		t.Fatalf("GET tables: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSetupUsesConfiguredBluffFallback(t *testing.T) {
	l := New(nil, nil)
	defer l.Close()
	l.SetGeneratorConfig(grimoire.Config{BluffFallback: "TBD"})
	mux := http.NewServeMux()
	NewHTTPHandler(l).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body, _ := json.Marshal(replay.SetupSpec{
		Script:    "Homebrew",
		Residents: 5,
		Definition: &script.Definition{
			Townsfolk: []string{"Chef", "Empath", "Monk"},
			Outsider:  []string{"Saint"},
			Minion:    []string{"Spy"},
			Demon:     []string{"Imp"},
		},
		RNG: &replay.RNGSpec{Seed: 3},
	})
	resp, err := http.Post(srv.URL+"/api/setup", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST setup: %v", err)
	}
	var setup setupResponse
	_ = json.NewDecoder(resp.Body).Decode(&setup)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !setup.OK || setup.Tape.BluffFallback != "TBD" {
		t.Fatalf("unexpected setup response %d %+v", resp.StatusCode, setup)
	}

	last := setup.Tape.Events[len(setup.Tape.Events)-1]
	env, err := replay.DecodeEnvelope(last.EnvelopeB64)
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	bluffs := env.GetFields()["payload"].GetStructValue().GetFields()["bluffs"].GetListValue().GetValues()
	if len(bluffs) != 3 || bluffs[0].GetStringValue() != "Saint" || bluffs[2].GetStringValue() != "TBD" {
		t.Fatalf("unexpected bluffs %v", bluffs)
	}
}
