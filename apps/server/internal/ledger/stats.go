package ledger

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// AllScripts selects every script in ComputeStats.
const AllScripts = "All"

type WinRate struct {
	Wins  int `json:"wins"`
	Total int `json:"total"`
}

func (w *WinRate) add(r Row) {
	w.Total++
	if r.Won() {
		w.Wins++
	}
}

// Percent is the win share in [0, 100]; zero when no games were played.
func (w WinRate) Percent() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.Wins) / float64(w.Total) * 100
}

type RoleRate struct {
	Role string `json:"role"`
	WinRate
}

// PlayerStats summarises a player's rows, overall and for one script filter.
type PlayerStats struct {
	Username string     `json:"username"`
	Script   string     `json:"script"`
	Overall  WinRate    `json:"overall"`
	Filtered WinRate    `json:"filtered"`
	Roles    []RoleRate `json:"roles"`
}

// ComputeStats builds the overall rate from every row and the filtered rate plus the
// per-role breakdown from the rows of script ("" or "All" keeps every row).
func ComputeStats(username string, rows []Row, script string) PlayerStats {
	if strings.TrimSpace(script) == "" {
		script = AllScripts
	}
	stats := PlayerStats{Username: username, Script: script, Roles: []RoleRate{}}

	byRole := make(map[string]*WinRate)
	for _, r := range rows {
		stats.Overall.add(r)
		if script != AllScripts && r.Script != script {
			continue
		}
		stats.Filtered.add(r)
		rate, ok := byRole[r.Role]
		if !ok {
			rate = &WinRate{}
			byRole[r.Role] = rate
		}
		rate.add(r)
	}

	for role, rate := range byRole {
		stats.Roles = append(stats.Roles, RoleRate{Role: role, WinRate: *rate})
	}
	sort.Slice(stats.Roles, func(i, j int) bool { return stats.Roles[i].Role < stats.Roles[j].Role })
	return stats
}

// Report renders the stats as the text shown on the player page, formatted for tag.
func (s PlayerStats) Report(tag language.Tag) string {
	p := message.NewPrinter(tag)
	if s.Overall.Total == 0 {
		return p.Sprintf("No data for %s.", s.Username)
	}

	var b strings.Builder
	b.WriteString(p.Sprintf("Overall Win Rate for %s: %s\n", s.Username, formatRate(p, s.Overall)))
	if s.Filtered.Total == 0 {
		b.WriteString(p.Sprintf("No matches for %s.\n", s.Script))
		return b.String()
	}
	b.WriteString(p.Sprintf("Win Rate for %s: %s\n", s.Script, formatRate(p, s.Filtered)))
	for _, r := range s.Roles {
		b.WriteString(p.Sprintf("%s: %s\n", r.Role, formatRate(p, r.WinRate)))
	}
	return b.String()
}

func formatRate(p *message.Printer, w WinRate) string {
	return p.Sprintf("%.2f%% (%d/%d)", w.Percent(), w.Wins, w.Total)
}
