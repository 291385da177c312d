//go:build js && wasm

package main

import (
	"encoding/json"
	"errors"
	"syscall/js"

	"clocktower-lite/replay"
)

type initRequest struct {
	Spec replay.SetupSpec `json:"spec"`
}

type initResponse struct {
	OK    bool                  `json:"ok"`
	Tape  *replay.WireSetupTape `json:"tape,omitempty"`
	Error *replay.ReplayError   `json:"error,omitempty"`
}

func main() {
	js.Global().Set("__setupInit", js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) < 1 {
			return mustJSON(initResponse{
				OK:    false,
				Error: &replay.ReplayError{StepIndex: -1, Reason: "invalid_request", Message: "missing request payload"},
			})
		}
		return mustJSON(handleInit(args[0].String()))
	}))

	select {}
}

func handleInit(raw string) initResponse {
	var req initRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return initResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "invalid_json", Message: err.Error()},
		}
	}

	tape, err := replay.GenerateSetupTape(req.Spec)
	if err != nil {
		var replayErr *replay.ReplayError
		if errors.As(err, &replayErr) {
			return initResponse{OK: false, Error: replayErr}
		}
		return initResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "setup_generation_failed", Message: err.Error()},
		}
	}
	return initResponse{
		OK:   true,
		Tape: replay.ToWireSetupTape(tape),
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		fallback := initResponse{
			OK:    false,
			Error: &replay.ReplayError{StepIndex: -1, Reason: "marshal_failed", Message: err.Error()},
		}
		b2, _ := json.Marshal(fallback)
		return string(b2)
	}
	return string(b)
}
