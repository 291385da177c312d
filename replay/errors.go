package replay

import "fmt"

type ReplayError struct {
	StepIndex int32          `json:"step_index"`
	Reason    string         `json:"reason"`
	Message   string         `json:"message"`
	Expected  *ExpectedEvent `json:"expected,omitempty"`
}

// ExpectedEvent is the event a regenerated tape holds at the failing step.
type ExpectedEvent struct {
	Type        string `json:"type"`
	Seq         uint64 `json:"seq"`
	EnvelopeB64 string `json:"envelope_b64,omitempty"`
}

func (e *ReplayError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("replay error(step=%d reason=%s): %s", e.StepIndex, e.Reason, e.Message)
}

func specError(reason, msg string) *ReplayError {
	return &ReplayError{StepIndex: -1, Reason: reason, Message: msg}
}
