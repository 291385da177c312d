package replay

import (
	"fmt"
	"strings"
	"time"

	"clocktower-lite/grimoire"
	"clocktower-lite/script"
)

type normalizedSpec struct {
	script    *script.Script
	residents int
	travelers int
	seed      int64
	fallback  string
}

var builtinScripts = script.Builtin()

func normalizeSpec(spec SetupSpec) (normalizedSpec, error) {
	var out normalizedSpec

	switch {
	case spec.Definition != nil:
		def := *spec.Definition
		if def.Name == "" {
			def.Name = spec.Script
		}
		s, err := script.New(def)
		if err != nil {
			return out, specError("invalid_definition", err.Error())
		}
		out.script = s
	case spec.Script == "":
		out.script = builtinScripts.Default()
	default:
		s, ok := builtinScripts.Lookup(spec.Script)
		if !ok {
			return out, specError("unknown_script", fmt.Sprintf("script %q is not built in", spec.Script))
		}
		out.script = s
	}

	if spec.Residents < grimoire.MinResidents || spec.Residents > grimoire.MaxResidents {
		return out, specError("invalid_residents",
			fmt.Sprintf("residents must be between %d and %d", grimoire.MinResidents, grimoire.MaxResidents))
	}
	if spec.Travelers < 0 || spec.Travelers > grimoire.MaxTravelers {
		return out, specError("invalid_travelers", fmt.Sprintf("travelers must be between 0 and %d", grimoire.MaxTravelers))
	}
	if spec.Residents+spec.Travelers > grimoire.MaxPlayers {
		return out, specError("too_many_players", fmt.Sprintf("at most %d players", grimoire.MaxPlayers))
	}
	out.fallback = strings.TrimSpace(spec.BluffFallback)
	if out.fallback == "" {
		out.fallback = grimoire.FallbackBluff
	}
	out.residents = spec.Residents
	out.travelers = spec.Travelers
	out.seed = seedFromSpec(spec.RNG)
	return out, nil
}

// seedFromSpec pins a time-based seed when none is given so the tape can be verified later.
func seedFromSpec(rng *RNGSpec) int64 {
	if rng == nil || rng.Seed == 0 {
		return time.Now().UnixNano()
	}
	return rng.Seed
}
