package ledger

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"clocktower-lite/grimoire"
	"clocktower-lite/script"

	"golang.org/x/text/language"
)

func newBackends(t *testing.T) map[string]Service {
	t.Helper()
	sqliteSvc, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteService failed: %v", err)
	}
	t.Cleanup(func() { _ = sqliteSvc.Close() })
	return map[string]Service{
		"memory": NewMemoryService(),
		"sqlite": sqliteSvc,
	}
}

func sampleMatch(gameID string, winner grimoire.Team, scriptName string, players ...string) *grimoire.MatchResult {
	classes := []script.Category{script.Townsfolk, script.Outsider, script.Minion, script.Demon, script.Traveler}
	roles := []string{"Chef", "Drunk", "Baron", "Imp", "Thief"}
	m := &grimoire.MatchResult{GameID: gameID, Winner: winner, Storyteller: "sam", Script: scriptName}
	for i, p := range players {
		class := classes[i%len(classes)]
		m.Seats = append(m.Seats, grimoire.SeatResult{
			Class:    class,
			Username: p,
			Role:     roles[i%len(roles)],
			Won:      grimoire.IsWinner(class, winner),
		})
	}
	return m
}

func TestRecordAndRecentMatches(t *testing.T) {
	ctx := context.Background()
	for mode, svc := range newBackends(t) {
		if err := svc.Ping(ctx); err != nil {
			t.Fatalf("%s: ping: %v", mode, err)
		}
		first := sampleMatch("100", grimoire.TeamTownsfolk, "Trouble Brewing", "ann", "ben", "cat", "dan", "eve")
		second := sampleMatch("200", grimoire.TeamDemon, "Bad Moon Rising", "eve", "dan", "cat", "ben", "ann")
		for _, m := range []*grimoire.MatchResult{first, second} {
			if err := svc.RecordMatch(ctx, m); err != nil {
				t.Fatalf("%s: record %s: %v", mode, m.Key(), err)
			}
		}
		if err := svc.RecordMatch(ctx, first); !errors.Is(err, ErrDuplicateMatch) {
			t.Fatalf("%s: expected ErrDuplicateMatch, got %v", mode, err)
		}

		recent, err := svc.RecentMatches(ctx, 0)
		if err != nil {
			t.Fatalf("%s: recent: %v", mode, err)
		}
		if len(recent) != 2 || recent[0].Key != second.Key() || recent[1].Key != first.Key() {
			t.Fatalf("%s: expected newest first, got %+v", mode, recent)
		}
		if recent[0].Winner != "Demon" || recent[0].Storyteller != "sam" || recent[0].GameID != "200" {
			t.Fatalf("%s: unexpected header %+v", mode, recent[0])
		}
		want := []Row{
			{MatchKey: second.Key(), Script: "Bad Moon Rising", Class: "Townsfolk", Username: "eve", Role: "Chef", Result: ResultLoss},
			{MatchKey: second.Key(), Script: "Bad Moon Rising", Class: "Outsider", Username: "dan", Role: "Drunk", Result: ResultLoss},
			{MatchKey: second.Key(), Script: "Bad Moon Rising", Class: "Minion", Username: "cat", Role: "Baron", Result: ResultWin},
			{MatchKey: second.Key(), Script: "Bad Moon Rising", Class: "Demon", Username: "ben", Role: "Imp", Result: ResultWin},
			{MatchKey: second.Key(), Script: "Bad Moon Rising", Class: "Traveler", Username: "ann", Role: "Thief", Result: ResultLoss},
		}
		if !reflect.DeepEqual(recent[0].Rows, want) {
			t.Fatalf("%s: unexpected rows\n got %+v\nwant %+v", mode, recent[0].Rows, want)
		}

		limited, err := svc.RecentMatches(ctx, 1)
		if err != nil || len(limited) != 1 || limited[0].Key != second.Key() {
			t.Fatalf("%s: expected only the newest match, got %+v err=%v", mode, limited, err)
		}
	}
}

func TestRecordMatchRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	for mode, svc := range newBackends(t) {
		if err := svc.RecordMatch(ctx, &grimoire.MatchResult{GameID: "1", Winner: grimoire.TeamDemon, Storyteller: "s", Script: "x"}); !errors.Is(err, ErrInvalidMatch) {
			t.Fatalf("%s: expected ErrInvalidMatch for empty seats, got %v", mode, err)
		}
		bad := sampleMatch("1", grimoire.TeamDemon, "x", "ann", " ")
		if err := svc.RecordMatch(ctx, bad); !errors.Is(err, ErrInvalidMatch) {
			t.Fatalf("%s: expected ErrInvalidMatch for blank username, got %v", mode, err)
		}
	}
}

func TestSearchUsernames(t *testing.T) {
	ctx := context.Background()
	for mode, svc := range newBackends(t) {
		players := []string{"Alice", "malice", "Bob", "ALIBI", "carl", "al_1", "al_2", "al_3", "al_4", "al_5", "al_6", "al_7", "al_8"}
		if err := svc.RecordMatch(ctx, sampleMatch("1", grimoire.TeamDemon, "TB", players...)); err != nil {
			t.Fatalf("%s: record: %v", mode, err)
		}

		got, err := svc.SearchUsernames(ctx, "LIC", 0)
		if err != nil {
			t.Fatalf("%s: search: %v", mode, err)
		}
		if !reflect.DeepEqual(got, []string{"Alice", "malice"}) {
			t.Fatalf("%s: unexpected matches %v", mode, got)
		}

		got, _ = svc.SearchUsernames(ctx, "al", 50)
		if len(got) != MaxSearchResults {
			t.Fatalf("%s: expected results capped at %d, got %v", mode, MaxSearchResults, got)
		}

		got, _ = svc.SearchUsernames(ctx, "   ", 5)
		if len(got) != 0 {
			t.Fatalf("%s: expected no results for a blank query, got %v", mode, got)
		}

		got, _ = svc.SearchUsernames(ctx, "_", 5)
		for _, name := range got {
			if !strings.Contains(name, "_") {
				t.Fatalf("%s: '_' must match literally, got %v", mode, got)
			}
		}
	}
}

func TestSearchUsernames_FoldsNonASCII(t *testing.T) {
	ctx := context.Background()
	for mode, svc := range newBackends(t) {
		players := []string{"Élodie", "ÉMILE", "Zoë", "eloise", "sam"}
		if err := svc.RecordMatch(ctx, sampleMatch("1", grimoire.TeamDemon, "TB", players...)); err != nil {
			t.Fatalf("%s: record: %v", mode, err)
		}

		got, err := svc.SearchUsernames(ctx, "élo", 0)
		if err != nil {
			t.Fatalf("%s: search: %v", mode, err)
		}
		if !reflect.DeepEqual(got, []string{"Élodie"}) {
			t.Fatalf("%s: unexpected matches %v", mode, got)
		}

		got, _ = svc.SearchUsernames(ctx, "émi", 0)
		if !reflect.DeepEqual(got, []string{"ÉMILE"}) {
			t.Fatalf("%s: unexpected matches %v", mode, got)
		}

		got, _ = svc.SearchUsernames(ctx, "ZOË", 0)
		if !reflect.DeepEqual(got, []string{"Zoë"}) {
			t.Fatalf("%s: unexpected matches %v", mode, got)
		}
	}
}

func TestPlayerRowsAndStats(t *testing.T) {
	ctx := context.Background()
	for mode, svc := range newBackends(t) {
		games := []*grimoire.MatchResult{
			sampleMatch("1", grimoire.TeamTownsfolk, "Trouble Brewing", "ann", "x1", "x2", "x3"),
			sampleMatch("2", grimoire.TeamDemon, "Trouble Brewing", "ann", "x1", "x2", "x3"),
			sampleMatch("3", grimoire.TeamDemon, "Bad Moon Rising", "x1", "x2", "x3", "ann"),
		}
		for _, g := range games {
			if err := svc.RecordMatch(ctx, g); err != nil {
				t.Fatalf("%s: record: %v", mode, err)
			}
		}

		rows, err := svc.PlayerRows(ctx, "ann")
		if err != nil || len(rows) != 3 {
			t.Fatalf("%s: expected 3 rows, got %d err=%v", mode, len(rows), err)
		}
		if rows[0].MatchKey != games[0].Key() || rows[2].Role != "Imp" {
			t.Fatalf("%s: expected rows oldest first, got %+v", mode, rows)
		}
		if none, _ := svc.PlayerRows(ctx, "Ann"); len(none) != 0 {
			t.Fatalf("%s: player lookup is exact, got %+v", mode, none)
		}

		all := ComputeStats("ann", rows, "")
		if all.Overall != (WinRate{Wins: 2, Total: 3}) || all.Filtered != all.Overall || all.Script != AllScripts {
			t.Fatalf("%s: unexpected overall stats %+v", mode, all)
		}
		wantRoles := []RoleRate{
			{Role: "Chef", WinRate: WinRate{Wins: 1, Total: 2}},
			{Role: "Imp", WinRate: WinRate{Wins: 1, Total: 1}},
		}
		if !reflect.DeepEqual(all.Roles, wantRoles) {
			t.Fatalf("%s: unexpected role stats %+v", mode, all.Roles)
		}

		tb := ComputeStats("ann", rows, "Trouble Brewing")
		if tb.Overall.Total != 3 || tb.Filtered != (WinRate{Wins: 1, Total: 2}) || len(tb.Roles) != 1 {
			t.Fatalf("%s: unexpected script stats %+v", mode, tb)
		}
	}
}

func TestStatsReport(t *testing.T) {
	rows := []Row{
		{Script: "Trouble Brewing", Role: "Imp", Result: ResultWin},
		{Script: "Trouble Brewing", Role: "Chef", Result: ResultLoss},
		{Script: "Bad Moon Rising", Role: "Chef", Result: ResultWin},
	}
	report := ComputeStats("ann", rows, AllScripts).Report(language.English)
	for _, line := range []string{
		"Overall Win Rate for ann: 66.67% (2/3)",
		"Win Rate for All: 66.67% (2/3)",
		"Chef: 50.00% (1/2)",
		"Imp: 100.00% (1/1)",
	} {
		if !strings.Contains(report, line) {
			t.Fatalf("expected %q in report:\n%s", line, report)
		}
	}
	if strings.Index(report, "Chef:") > strings.Index(report, "Imp:") {
		t.Fatalf("expected roles sorted by name:\n%s", report)
	}

	empty := ComputeStats("ann", rows, "Sects & Violets").Report(language.English)
	if !strings.Contains(empty, "No matches for Sects & Violets.") {
		t.Fatalf("unexpected report for a script without games:\n%s", empty)
	}
	if got := ComputeStats("nobody", nil, "").Report(language.English); got != "No data for nobody." {
		t.Fatalf("unexpected empty report %q", got)
	}
}

func TestImportLegacyCSV(t *testing.T) {
	ctx := context.Background()
	legacy := strings.Join([]string{
		"1700000000|Townsfolk|sam|Trouble Brewing,Townsfolk,ann,Chef,Win",
		"1700000000|Townsfolk|sam|Trouble Brewing,Outsider,ben,Drunk-Empath,Win",
		"1700000000|Townsfolk|sam|Trouble Brewing,Demon,cat,Imp,Loss",
		"1700000500|Demon|kim|Trouble Brewing,Townsfolk,ann,Monk-Evil Twin",
		"1700000500|Demon|kim|Trouble Brewing,Minion,ben,Evil Twin",
		"broken-key,Townsfolk,zed,Chef,Win",
		"1700000900|Demon|kim|Trouble Brewing,Wizard,zed,Chef,Win",
		"short,row",
	}, "\n")

	for mode, svc := range newBackends(t) {
		sum, err := ImportCSV(ctx, strings.NewReader(legacy), svc)
		if err != nil {
			t.Fatalf("%s: import: %v", mode, err)
		}
		if sum != (ImportSummary{Matches: 2, Rows: 5, Skipped: 3}) {
			t.Fatalf("%s: unexpected summary %+v", mode, sum)
		}

		rows, _ := svc.PlayerRows(ctx, "ann")
		if len(rows) != 2 || rows[1].Role != "Monk" || rows[1].Result != ResultLoss {
			t.Fatalf("%s: expected recomputed result and stripped role, got %+v", mode, rows)
		}
		benRows, _ := svc.PlayerRows(ctx, "ben")
		if benRows[0].Role != "Drunk" || benRows[1].Result != ResultWin {
			t.Fatalf("%s: unexpected rows for ben %+v", mode, benRows)
		}

		again, err := ImportCSV(ctx, strings.NewReader(legacy), svc)
		if err != nil || again.Duplicates != 2 || again.Matches != 0 {
			t.Fatalf("%s: expected re-import to be idempotent, got %+v err=%v", mode, again, err)
		}

		var buf bytes.Buffer
		if err := ExportCSV(ctx, &buf, svc); err != nil {
			t.Fatalf("%s: export: %v", mode, err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 5 || lines[0] != "1700000000|Townsfolk|sam|Trouble Brewing,Townsfolk,ann,Chef,Win" {
			t.Fatalf("%s: unexpected export:\n%s", mode, buf.String())
		}
		if lines[3] != "1700000500|Demon|kim|Trouble Brewing,Townsfolk,ann,Monk,Loss" {
			t.Fatalf("%s: unexpected exported row %q", mode, lines[3])
		}
	}
}
