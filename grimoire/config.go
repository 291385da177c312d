package grimoire

import (
	"fmt"
	"strings"
)

type Config struct {
	// RNG seed (0 => time-based)
	Seed int64

	// Literal used for bluff slots that cannot be filled. Defaults to FallbackBluff.
	BluffFallback string

	// Literal shown for a Drunk when no unassigned Townsfolk is left. Defaults to FallbackDrunk.
	DrunkFallback string
}

func (c Config) withDefaults() Config {
	if c.BluffFallback == "" {
		c.BluffFallback = FallbackBluff
	}
	if c.DrunkFallback == "" {
		c.DrunkFallback = FallbackDrunk
	}
	return c
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BluffFallback) == "" {
		return fmt.Errorf("BluffFallback must not be blank")
	}
	if strings.TrimSpace(c.DrunkFallback) == "" {
		return fmt.Errorf("DrunkFallback must not be blank")
	}
	return nil
}
