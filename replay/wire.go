package replay

import "clocktower-lite/grimoire"

type WireSetupTape struct {
	TapeVersion int    `json:"tapeVersion"`
	TableID     string `json:"tableId"`
	Script      string `json:"script"`
	Seed        int64  `json:"seed"`
	Residents   int    `json:"residents"`
	Travelers   int    `json:"travelers"`
	// BluffFallback is omitted for the default literal.
	BluffFallback string           `json:"bluffFallback,omitempty"`
	Events        []WireSetupEvent `json:"events"`
}

type WireSetupEvent struct {
	Type        string `json:"type"`
	Seq         uint64 `json:"seq"`
	EnvelopeB64 string `json:"envelopeB64"`
}

func ToWireSetupTape(tape *SetupTape) *WireSetupTape {
	if tape == nil {
		return nil
	}
	out := &WireSetupTape{
		TapeVersion: tape.TapeVersion,
		TableID:     tape.TableID,
		Script:      tape.Spec.Script,
		Residents:   tape.Spec.Residents,
		Travelers:   tape.Spec.Travelers,
		Events:      make([]WireSetupEvent, 0, len(tape.Events)),
	}
	if tape.Spec.RNG != nil {
		out.Seed = tape.Spec.RNG.Seed
	}
	if tape.Spec.BluffFallback != grimoire.FallbackBluff {
		out.BluffFallback = tape.Spec.BluffFallback
	}
	for _, e := range tape.Events {
		out.Events = append(out.Events, WireSetupEvent{
			Type:        e.Type,
			Seq:         e.Seq,
			EnvelopeB64: e.EnvelopeB64,
		})
	}
	return out
}

// FromWireSetupTape rebuilds a tape for VerifySetupTape. Only built-in scripts can be
// verified this way since the wire form does not carry a custom definition.
func FromWireSetupTape(w *WireSetupTape) *SetupTape {
	if w == nil {
		return nil
	}
	tape := &SetupTape{
		TapeVersion: w.TapeVersion,
		TableID:     w.TableID,
		Spec: SetupSpec{
			Script:    w.Script,
			Residents: w.Residents,
			Travelers: w.Travelers,
			RNG:       &RNGSpec{Seed: w.Seed},

			BluffFallback: w.BluffFallback,
		},
		Events: make([]SetupEvent, 0, len(w.Events)),
	}
	for _, e := range w.Events {
		tape.Events = append(tape.Events, SetupEvent{
			Type:        e.Type,
			Seq:         e.Seq,
			EnvelopeB64: e.EnvelopeB64,
		})
	}
	return tape
}
