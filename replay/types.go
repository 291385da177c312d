package replay

import (
	"clocktower-lite/script"

	"google.golang.org/protobuf/types/known/structpb"
)

// SetupSpec describes one reproducible role generation.
type SetupSpec struct {
	Script    string `json:"script"`
	Residents int    `json:"residents"`
	Travelers int    `json:"travelers"`
	// Definition takes priority over Script; Script then only fills a missing name.
	Definition *script.Definition `json:"definition,omitempty"`
	RNG        *RNGSpec           `json:"rng,omitempty"`
	// BluffFallback pads bluff slots the script cannot fill. Empty means grimoire.FallbackBluff.
	BluffFallback string `json:"bluff_fallback,omitempty"`
}

type RNGSpec struct {
	Seed int64 `json:"seed"`
}

type SetupTape struct {
	TapeVersion int          `json:"tape_version"`
	TableID     string       `json:"table_id"`
	Spec        SetupSpec    `json:"spec"`
	Events      []SetupEvent `json:"events"`
}

type SetupEvent struct {
	Type        string           `json:"type"`
	Seq         uint64           `json:"seq"`
	Value       *structpb.Struct `json:"-"`
	EnvelopeB64 string           `json:"envelope_b64,omitempty"`
}

// Event types in tape order: one distribution, one seat per player, one bluffs.
const (
	EventDistribution = "distribution"
	EventSeat         = "seat"
	EventBluffs       = "bluffs"
)
