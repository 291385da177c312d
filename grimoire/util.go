package grimoire

import "clocktower-lite/script"

func roleSet(lists ...script.RoleList) map[string]struct{} {
	out := make(map[string]struct{})
	for _, l := range lists {
		for _, r := range l {
			out[r] = struct{}{}
		}
	}
	return out
}

func assignedRoles(seats []Seat) map[string]struct{} {
	out := make(map[string]struct{}, len(seats))
	for _, s := range seats {
		out[s.TrueRole] = struct{}{}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
