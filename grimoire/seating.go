package grimoire

import (
	"math/rand"

	"clocktower-lite/script"
)

// seatMarionette arranges pool so the Marionette sits next to demon, treating the
// seat order as a circle.
func seatMarionette(rng *rand.Rand, pool script.RoleList, demon string) script.RoleList {
	n := len(pool)
	rest := pool.Clone()
	rest.Remove(RoleMarionette)
	rest.Remove(demon)
	rest.Shuffle(rng)

	demonPos := rng.Intn(n)
	neighbors := [2]int{(demonPos - 1 + n) % n, (demonPos + 1) % n}
	marionettePos := neighbors[rng.Intn(2)]

	// Lower index first so the second insert lands on its target.
	if demonPos < marionettePos {
		rest.Insert(demonPos, demon)
		rest.Insert(marionettePos, RoleMarionette)
	} else {
		rest.Insert(marionettePos, RoleMarionette)
		rest.Insert(demonPos, demon)
	}
	return rest
}

// Adjacent reports whether seats i and j are neighbours in a circle of n seats.
func Adjacent(i, j, n int) bool {
	if n < 2 || i == j {
		return false
	}
	return (i+1)%n == j || (j+1)%n == i
}
