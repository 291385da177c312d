package grimoire

import (
	"math/rand"
	"sync"
	"time"

	"clocktower-lite/script"
)

// Setup is the outcome of one role generation.
type Setup struct {
	Script       string       `json:"script"`
	Residents    int          `json:"residents"`
	Travelers    int          `json:"travelers"`
	Distribution Distribution `json:"distribution"`
	// AllGood is set when the Atheist replaced every evil seat with a good role.
	AllGood bool     `json:"all_good"`
	Seats   []Seat   `json:"seats"`
	Bluffs  []string `json:"bluffs"`
}

// ResidentSeats returns the resident seats in seating order.
func (s *Setup) ResidentSeats() []Seat {
	out := make([]Seat, 0, s.Residents)
	for _, seat := range s.Seats {
		if !seat.Traveler {
			out = append(out, seat)
		}
	}
	return out
}

// Generator owns the random source used to deal roles. Each Generate call is independent.
type Generator struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(cfg Config) (*Generator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// Generate deals roles for numResidents resident seats and numTravelers traveler seats.
// It either returns a complete Setup or an error, never a partial assignment.
func (g *Generator) Generate(numResidents, numTravelers int, s *script.Script) (*Setup, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	base, err := BaseDistribution(numResidents)
	if err != nil {
		return nil, err
	}

	// Minions first: Baron and Godfather change the Townsfolk/Outsider split.
	minions, err := g.sample(s, script.Minion, base.Minions)
	if err != nil {
		return nil, err
	}
	dist := adjustForMinions(g.rng, base, minions, s.Count(script.Outsider))

	townsfolk, err := g.sample(s, script.Townsfolk, dist.Townsfolk)
	if err != nil {
		return nil, err
	}
	outsiders, err := g.sample(s, script.Outsider, dist.Outsiders)
	if err != nil {
		return nil, err
	}
	demons, err := g.sample(s, script.Demon, dist.Demons)
	if err != nil {
		return nil, err
	}

	if townsfolk.Contains(RoleAtheist) {
		return g.generateAllGood(numResidents, numTravelers, s, base, townsfolk, outsiders)
	}

	pool := make(script.RoleList, 0, numResidents)
	pool.Add(townsfolk...)
	pool.Add(outsiders...)
	pool.Add(minions...)
	pool.Add(demons...)

	var arranged script.RoleList
	if minions.Contains(RoleMarionette) && len(demons) > 0 {
		arranged = seatMarionette(g.rng, pool, demons[0])
	} else {
		arranged = pool
		arranged.Shuffle(g.rng)
	}

	seats := g.fillSeats(arranged, numTravelers, s)
	g.disguiseDrunks(seats, s)
	if minions.Contains(RoleEvilTwin) {
		g.markEvilTwin(seats)
	}

	return &Setup{
		Script:       s.Name(),
		Residents:    numResidents,
		Travelers:    numTravelers,
		Distribution: dist,
		Seats:        seats,
		Bluffs:       g.bluffs(seats, s),
	}, nil
}

func (g *Generator) sample(s *script.Script, cat script.Category, n int) (script.RoleList, error) {
	roles := s.Roles(cat)
	picked, ok := roles.Sample(g.rng, n)
	if !ok {
		return nil, &InsufficientRolePoolError{Category: cat, Requested: n, Available: len(roles)}
	}
	return picked, nil
}

// fillSeats consumes arranged from the front for residents and a shuffled traveler list for travelers.
func (g *Generator) fillSeats(arranged script.RoleList, numTravelers int, s *script.Script) []Seat {
	travelerRoles := s.Roles(script.Traveler)
	travelerRoles.Shuffle(g.rng)

	seats := make([]Seat, 0, len(arranged)+numTravelers)
	for _, role := range arranged {
		seats = append(seats, Seat{
			Index:    len(seats),
			Role:     role,
			TrueRole: role,
			Class:    s.CategoryOf(role),
		})
	}
	for i := 0; i < numTravelers; i++ {
		role := travelerRoles.PopOr(FallbackTraveler)
		seats = append(seats, Seat{
			Index:    len(seats),
			Role:     role,
			TrueRole: role,
			Class:    script.Traveler,
			Traveler: true,
		})
	}
	return seats
}
