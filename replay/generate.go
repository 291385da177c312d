package replay

import (
	"encoding/base64"
	"fmt"

	"clocktower-lite/grimoire"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultTableID = "setup_local"
	tapeVersion    = 1
)

var marshalOpts = proto.MarshalOptions{Deterministic: true}

// GenerateSetupTape deals roles for spec and records the result as an ordered event tape.
func GenerateSetupTape(spec SetupSpec) (*SetupTape, error) {
	ns, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	gen, err := grimoire.NewGenerator(grimoire.Config{Seed: ns.seed, BluffFallback: ns.fallback})
	if err != nil {
		return nil, specError("engine_init_failed", err.Error())
	}
	setup, err := gen.Generate(ns.residents, ns.travelers, ns.script)
	if err != nil {
		return nil, specError("generate_failed", err.Error())
	}

	builder := newTapeBuilder(defaultTableID)
	if err := builder.addDistribution(setup); err != nil {
		return nil, err
	}
	for _, seat := range setup.Seats {
		if err := builder.addSeat(seat); err != nil {
			return nil, err
		}
	}
	if err := builder.addBluffs(setup.Bluffs); err != nil {
		return nil, err
	}

	pinned := spec
	pinned.Script = ns.script.Name()
	pinned.RNG = &RNGSpec{Seed: ns.seed}
	pinned.BluffFallback = ns.fallback
	return &SetupTape{
		TapeVersion: tapeVersion,
		TableID:     builder.tableID,
		Spec:        pinned,
		Events:      builder.events,
	}, nil
}

// VerifySetupTape regenerates tape from its recorded spec and reports the first divergent event.
func VerifySetupTape(tape *SetupTape) error {
	if tape == nil {
		return specError("invalid_tape", "tape is nil")
	}
	if tape.TapeVersion != tapeVersion {
		return specError("invalid_tape_version", fmt.Sprintf("unsupported tape version %d", tape.TapeVersion))
	}
	if tape.Spec.RNG == nil || tape.Spec.RNG.Seed == 0 {
		return specError("missing_seed", "tape does not record its seed")
	}
	want, err := GenerateSetupTape(tape.Spec)
	if err != nil {
		return err
	}
	for i, expected := range want.Events {
		if i >= len(tape.Events) {
			return &ReplayError{
				StepIndex: int32(i),
				Reason:    "missing_event",
				Message:   fmt.Sprintf("tape ends after %d events, expected %d", len(tape.Events), len(want.Events)),
				Expected:  expectedFrom(expected),
			}
		}
		got := tape.Events[i]
		if got.Type != expected.Type || got.Seq != expected.Seq || got.EnvelopeB64 != expected.EnvelopeB64 {
			return &ReplayError{
				StepIndex: int32(i),
				Reason:    "event_mismatch",
				Message:   fmt.Sprintf("event %d (%s) differs from regenerated %s", i, got.Type, expected.Type),
				Expected:  expectedFrom(expected),
			}
		}
	}
	if len(tape.Events) > len(want.Events) {
		return &ReplayError{
			StepIndex: int32(len(want.Events)),
			Reason:    "extra_event",
			Message:   fmt.Sprintf("tape has %d events, expected %d", len(tape.Events), len(want.Events)),
		}
	}
	return nil
}

// DecodeEnvelope parses the base64 protobuf envelope of an event.
func DecodeEnvelope(b64 string) (*structpb.Struct, error) {
	bin, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	env := &structpb.Struct{}
	if err := proto.Unmarshal(bin, env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

func expectedFrom(e SetupEvent) *ExpectedEvent {
	return &ExpectedEvent{Type: e.Type, Seq: e.Seq, EnvelopeB64: e.EnvelopeB64}
}

type tapeBuilder struct {
	tableID string
	seq     uint64
	events  []SetupEvent
}

func newTapeBuilder(tableID string) *tapeBuilder {
	return &tapeBuilder{
		tableID: tableID,
		events:  make([]SetupEvent, 0, 24),
	}
}

func (b *tapeBuilder) addDistribution(setup *grimoire.Setup) error {
	d := setup.Distribution
	return b.push(EventDistribution, map[string]any{
		"script":    setup.Script,
		"residents": setup.Residents,
		"travelers": setup.Travelers,
		"all_good":  setup.AllGood,
		"townsfolk": d.Townsfolk,
		"outsiders": d.Outsiders,
		"minions":   d.Minions,
		"demons":    d.Demons,
	})
}

func (b *tapeBuilder) addSeat(seat grimoire.Seat) error {
	return b.push(EventSeat, map[string]any{
		"index":       seat.Index,
		"role":        seat.Role,
		"true_role":   seat.TrueRole,
		"class":       seat.Class.String(),
		"traveler":    seat.Traveler,
		"drunk_as":    seat.DrunkAs,
		"twin_marked": seat.TwinMarked,
	})
}

func (b *tapeBuilder) addBluffs(bluffs []string) error {
	list := make([]any, 0, len(bluffs))
	for _, r := range bluffs {
		list = append(list, r)
	}
	return b.push(EventBluffs, map[string]any{"bluffs": list})
}

func (b *tapeBuilder) push(eventType string, payload map[string]any) error {
	b.seq++
	env, err := structpb.NewStruct(map[string]any{
		"table_id":     b.tableID,
		"server_seq":   b.seq,
		"server_ts_ms": int64(b.seq),
		"type":         eventType,
		"payload":      payload,
	})
	if err != nil {
		return &ReplayError{StepIndex: int32(b.seq - 1), Reason: "encode_failed", Message: err.Error()}
	}
	bin, err := marshalOpts.Marshal(env)
	if err != nil {
		return &ReplayError{StepIndex: int32(b.seq - 1), Reason: "encode_failed", Message: err.Error()}
	}
	b.events = append(b.events, SetupEvent{
		Type:        eventType,
		Seq:         b.seq,
		Value:       env,
		EnvelopeB64: base64.StdEncoding.EncodeToString(bin),
	})
	return nil
}
