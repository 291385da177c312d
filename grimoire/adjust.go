package grimoire

import (
	"math/rand"

	"clocktower-lite/script"
)

// adjustForMinions applies the Baron and Godfather setup modifiers, in that order.
// Outsider growth is capped by outsiderPool, the script's Outsider list size.
func adjustForMinions(rng *rand.Rand, d Distribution, minions script.RoleList, outsiderPool int) Distribution {
	if minions.Contains(RoleBaron) {
		add := maxInt(0, minInt(2, outsiderPool-d.Outsiders))
		d.Townsfolk = maxInt(0, d.Townsfolk-add)
		d.Outsiders += add
	}
	if minions.Contains(RoleGodfather) {
		if rng.Intn(2) == 0 {
			if d.Outsiders < outsiderPool {
				d.Townsfolk = maxInt(0, d.Townsfolk-1)
				d.Outsiders++
			}
		} else if d.Outsiders > 0 {
			// Skipped without Outsiders so the seat count stays equal to the residents.
			// The Townsfolk branch is not capped by the Townsfolk pool size; an
			// oversized request surfaces later as InsufficientRolePoolError.
			d.Townsfolk++
			d.Outsiders--
		}
	}
	return d
}
