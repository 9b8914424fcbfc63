package alarm

import (
	"fmt"
	"strings"
	"time"
)

// State is the alarm state of the single watched camera.
type State int

const (
	// StateIdle is the state before the initial history fill.
	StateIdle State = iota
	// StateMonitoring means measures are compared against the baseline.
	StateMonitoring
	// StateAlarmed means a deviation was detected and the machine awaits recovery.
	StateAlarmed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMonitoring:
		return "monitoring"
	case StateAlarmed:
		return "alarmed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Policy selects what happens after an alarm.
type Policy int

const (
	// PolicySelfReset waits a cool-down, refills the history and resumes monitoring.
	PolicySelfReset Policy = iota
	// PolicyTerminate makes the alarm final.
	PolicyTerminate
)

// String returns the configuration spelling of the policy.
func (p Policy) String() string {
	switch p {
	case PolicySelfReset:
		return "self-reset"
	case PolicyTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "self-reset", "selfreset", "reset":
		return PolicySelfReset, nil
	case "terminate", "stop":
		return PolicyTerminate, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Event describes the measure that triggered an alarm.
type Event struct {
	// ID uniquely identifies the alarm.
	ID string
	// Timestamp is when the alarm was raised.
	Timestamp time.Time
	// FrameSeq is the sequence number of the triggering frame.
	FrameSeq uint64
	// Measure is the brightness of the triggering frame.
	Measure uint8
	// Baseline is the history average the measure was compared to.
	Baseline uint8
	// Threshold is the configured deviation band.
	Threshold int
}

// Deviation returns the signed difference between measure and baseline.
func (e *Event) Deviation() int {
	return int(e.Measure) - int(e.Baseline)
}

// Clone returns a copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}

	cloned := *e

	return &cloned
}
