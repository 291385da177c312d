package grimoire

import "clocktower-lite/script"

// generateAllGood builds an Atheist game: the evil seats of the base distribution are
// refilled with unassigned Townsfolk and Outsiders, about one third Outsiders.
func (g *Generator) generateAllGood(
	numResidents, numTravelers int,
	s *script.Script,
	base Distribution,
	townsfolk, outsiders script.RoleList,
) (*Setup, error) {
	taken := roleSet(townsfolk, outsiders)
	freeTownsfolk := s.Roles(script.Townsfolk).Without(taken)
	freeOutsiders := s.Roles(script.Outsider).Without(taken)

	additional := base.Minions + base.Demons
	extraOutsiders := minInt(additional/3, len(freeOutsiders))
	extraTownsfolk := additional - extraOutsiders

	if extraTownsfolk > len(freeTownsfolk) {
		overflow := extraTownsfolk - len(freeTownsfolk)
		extraTownsfolk = len(freeTownsfolk)
		extraOutsiders = minInt(extraOutsiders+overflow, len(freeOutsiders))
	}
	if extraOutsiders > len(freeOutsiders) {
		overflow := extraOutsiders - len(freeOutsiders)
		extraOutsiders = len(freeOutsiders)
		extraTownsfolk = minInt(extraTownsfolk+overflow, len(freeTownsfolk))
	}
	if extraTownsfolk+extraOutsiders < additional {
		return nil, &InsufficientRolePoolError{
			Category:  script.Townsfolk,
			Requested: additional - extraOutsiders,
			Available: len(freeTownsfolk),
		}
	}

	addTownsfolk, _ := freeTownsfolk.Sample(g.rng, extraTownsfolk)
	addOutsiders, _ := freeOutsiders.Sample(g.rng, extraOutsiders)

	pool := make(script.RoleList, 0, numResidents)
	pool.Add(townsfolk...)
	pool.Add(outsiders...)
	pool.Add(addTownsfolk...)
	pool.Add(addOutsiders...)
	pool.Shuffle(g.rng)

	seats := g.fillSeats(pool, numTravelers, s)
	g.disguiseDrunks(seats, s)

	return &Setup{
		Script:    s.Name(),
		Residents: numResidents,
		Travelers: numTravelers,
		Distribution: Distribution{
			Townsfolk: len(townsfolk) + len(addTownsfolk),
			Outsiders: len(outsiders) + len(addOutsiders),
		},
		AllGood: true,
		Seats:   seats,
		Bluffs:  g.bluffs(seats, s),
	}, nil
}
