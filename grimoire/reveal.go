package grimoire

import "clocktower-lite/script"

// disguiseDrunks gives every Drunk a Townsfolk role nobody holds and rewrites the
// display role to "Drunk-<fake>".
func (g *Generator) disguiseDrunks(seats []Seat, s *script.Script) {
	fakes := s.Roles(script.Townsfolk).Without(assignedRoles(seats))
	fakes.Shuffle(g.rng)

	for i := range seats {
		if seats[i].Role != RoleDrunk {
			continue
		}
		fake := fakes.PopOr(g.cfg.DrunkFallback)
		seats[i].DrunkAs = fake
		seats[i].Role = drunkPrefix + fake
	}
}

// markEvilTwin annotates one good resident as the Evil Twin's counterpart.
func (g *Generator) markEvilTwin(seats []Seat) {
	candidates := make([]int, 0, len(seats))
	for i, seat := range seats {
		if !seat.Traveler && seat.Class.IsGood() {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return
	}
	twin := &seats[candidates[g.rng.Intn(len(candidates))]]
	twin.Role += evilTwinSuffix
	twin.TwinMarked = true
}

// bluffs draws three unassigned good roles for the Demon, padding with the fallback.
func (g *Generator) bluffs(seats []Seat, s *script.Script) []string {
	pool := s.Roles(script.Townsfolk)
	pool.Add(s.Roles(script.Outsider)...)
	pool = pool.Without(assignedRoles(seats))
	pool.Shuffle(g.rng)

	out := make([]string, 0, bluffCount)
	for i := 0; i < bluffCount; i++ {
		out = append(out, pool.PopOr(g.cfg.BluffFallback))
	}
	return out
}
