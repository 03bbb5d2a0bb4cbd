package activity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Phase is a stage in the lifecycle of an activity.
type Phase int

const (
	// PhaseProvisioning is entered when the cloud starts acquiring the node.
	PhaseProvisioning Phase = iota
	// PhaseLaunching is entered once the node exists and its agent is being started.
	PhaseLaunching
	// PhaseOperating is entered when the node comes online.
	PhaseOperating
	// PhaseCompleted is entered when the node is gone.
	PhaseCompleted

	phaseCount
)

// Phases returns all phases in lifecycle order.
func Phases() []Phase {
	return []Phase{PhaseProvisioning, PhaseLaunching, PhaseOperating, PhaseCompleted}
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return p >= PhaseProvisioning && p < phaseCount
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseProvisioning:
		return "PROVISIONING"
	case PhaseLaunching:
		return "LAUNCHING"
	case PhaseOperating:
		return "OPERATING"
	case PhaseCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// ParsePhase converts a phase name, case-insensitively, to a Phase.
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases() {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// MarshalJSON implements json.Marshaler.
func (p Phase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Status is the severity of what happened in a phase.
type Status int

const (
	// StatusOK means nothing went wrong.
	StatusOK Status = iota
	// StatusWarn means something noteworthy but non-fatal happened.
	StatusWarn
	// StatusFail means the phase failed.
	StatusFail
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus converts a status name, case-insensitively, to a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusOK, StatusWarn, StatusFail} {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Worse returns the more severe of s and other.
func (s Status) Worse(other Status) Status {
	if other > s {
		return other
	}
	return s
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
