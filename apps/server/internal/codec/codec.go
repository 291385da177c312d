package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server message types.
const (
	TypeSession    = "session"
	TypeGrimoire   = "grimoire"
	TypeTownSquare = "town_square"
	TypeGameEnd    = "game_end"
	TypeTableList  = "table_list"
	TypeError      = "error"
)

// Client message types.
const (
	TypeCreateTable   = "create_table"
	TypeJoinTable     = "join_table"
	TypeLeaveTable    = "leave_table"
	TypeListTables    = "list_tables"
	TypeConfigure     = "configure"
	TypeGenerate      = "generate"
	TypeSetUsername   = "set_username"
	TypeToggleStatus  = "toggle_status"
	TypeClearStatuses = "clear_statuses"
	TypeEndGame       = "end_game"
	TypeReset         = "reset"
	TypeCloseTable    = "close_table"
)

var ErrMissingType = errors.New("envelope has no type")

var marshalOpts = proto.MarshalOptions{Deterministic: true}

// ServerEnvelope is the decoded form of a message sent to clients.
type ServerEnvelope struct {
	TableID    string
	ServerSeq  uint64
	ServerTsMs int64
	Type       string
	Payload    *structpb.Struct
}

// ClientEnvelope is the decoded form of a message sent by clients.
type ClientEnvelope struct {
	TableID   string
	ClientSeq uint64
	Type      string
	Payload   *structpb.Struct
}

// Decode copies the payload into out through its JSON form.
func (e *ClientEnvelope) Decode(out any) error {
	return PayloadInto(e.Payload, out)
}

func (e *ServerEnvelope) Decode(out any) error {
	return PayloadInto(e.Payload, out)
}

// EncodeServer wraps payload (any JSON-marshalable value) into a binary server envelope.
func EncodeServer(tableID string, serverSeq uint64, msgType string, payload any) ([]byte, error) {
	body, err := ToStruct(payload)
	if err != nil {
		return nil, err
	}
	env := &structpb.Struct{Fields: map[string]*structpb.Value{
		"table_id":     structpb.NewStringValue(tableID),
		"server_seq":   structpb.NewNumberValue(float64(serverSeq)),
		"server_ts_ms": structpb.NewNumberValue(float64(time.Now().UnixMilli())),
		"type":         structpb.NewStringValue(msgType),
		"payload":      structpb.NewStructValue(body),
	}}
	return marshalOpts.Marshal(env)
}

func DecodeServer(data []byte) (*ServerEnvelope, error) {
	env, err := unmarshal(data)
	if err != nil {
		return nil, err
	}
	out := &ServerEnvelope{
		TableID:    stringField(env, "table_id"),
		ServerSeq:  uint64(numberField(env, "server_seq")),
		ServerTsMs: int64(numberField(env, "server_ts_ms")),
		Type:       stringField(env, "type"),
		Payload:    structField(env, "payload"),
	}
	if out.Type == "" {
		return nil, ErrMissingType
	}
	return out, nil
}

func EncodeClient(tableID string, clientSeq uint64, msgType string, payload any) ([]byte, error) {
	body, err := ToStruct(payload)
	if err != nil {
		return nil, err
	}
	env := &structpb.Struct{Fields: map[string]*structpb.Value{
		"table_id":   structpb.NewStringValue(tableID),
		"client_seq": structpb.NewNumberValue(float64(clientSeq)),
		"type":       structpb.NewStringValue(msgType),
		"payload":    structpb.NewStructValue(body),
	}}
	return marshalOpts.Marshal(env)
}

func DecodeClient(data []byte) (*ClientEnvelope, error) {
	env, err := unmarshal(data)
	if err != nil {
		return nil, err
	}
	out := &ClientEnvelope{
		TableID:   stringField(env, "table_id"),
		ClientSeq: uint64(numberField(env, "client_seq")),
		Type:      stringField(env, "type"),
		Payload:   structField(env, "payload"),
	}
	if out.Type == "" {
		return nil, ErrMissingType
	}
	return out, nil
}

// ToStruct converts a JSON-marshalable value into a protobuf Struct. nil yields an empty Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	if v == nil {
		return &structpb.Struct{}, nil
	}
	if s, ok := v.(*structpb.Struct); ok {
		return s, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	return s, nil
}

// PayloadInto decodes a Struct into out with encoding/json semantics.
func PayloadInto(s *structpb.Struct, out any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func unmarshal(data []byte) (*structpb.Struct, error) {
	env := &structpb.Struct{}
	if err := proto.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func numberField(s *structpb.Struct, key string) float64 {
	return s.GetFields()[key].GetNumberValue()
}

func structField(s *structpb.Struct, key string) *structpb.Struct {
	if v := s.GetFields()[key].GetStructValue(); v != nil {
		return v
	}
	return &structpb.Struct{}
}
