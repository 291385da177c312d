package grimoire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is a reminder tag the storyteller places on a seat during play.
type Status byte

const (
	StatusDead Status = iota
	StatusPoisoned
	StatusDrunk
	StatusMad
	StatusProtected
	statusCount
)

var statusNames = [statusCount]string{
	StatusDead:      "Dead",
	StatusPoisoned:  "Poisoned",
	StatusDrunk:     "Drunk",
	StatusMad:       "Mad",
	StatusProtected: "Protected",
}

func (s Status) String() string {
	if s < statusCount {
		return statusNames[s]
	}
	return "?"
}

func ParseStatus(raw string) (Status, error) {
	for i, name := range statusNames {
		if strings.EqualFold(strings.TrimSpace(raw), name) {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", raw)
}

// AllStatuses lists every status in display order.
func AllStatuses() []Status {
	out := make([]Status, 0, statusCount)
	for s := Status(0); s < statusCount; s++ {
		out = append(out, s)
	}
	return out
}

// StatusSet is a bitmask of active statuses.
type StatusSet uint8

func (ss StatusSet) Has(s Status) bool { return s < statusCount && ss&(1<<s) != 0 }

func (ss *StatusSet) Add(s Status) {
	if s < statusCount {
		*ss |= 1 << s
	}
}

func (ss *StatusSet) Remove(s Status) { *ss &^= 1 << s }

// Toggle flips s and reports whether it is now active.
func (ss *StatusSet) Toggle(s Status) bool {
	if ss.Has(s) {
		ss.Remove(s)
		return false
	}
	ss.Add(s)
	return ss.Has(s)
}

func (ss *StatusSet) Clear() { *ss = 0 }

func (ss StatusSet) List() []Status {
	out := make([]Status, 0, statusCount)
	for s := Status(0); s < statusCount; s++ {
		if ss.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

func (ss StatusSet) Names() []string {
	list := ss.List()
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.String())
	}
	return out
}

func (ss StatusSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ss.Names())
}

func (ss *StatusSet) UnmarshalJSON(raw []byte) error {
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return err
	}
	var out StatusSet
	for _, name := range names {
		s, err := ParseStatus(name)
		if err != nil {
			return err
		}
		out.Add(s)
	}
	*ss = out
	return nil
}
