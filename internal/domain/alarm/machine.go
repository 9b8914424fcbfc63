package alarm

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/intruder-alarm/internal/domain/baseline"
)

// Settings configures a Machine.
type Settings struct {
	// HistoryLength is the number of measures kept for the baseline.
	HistoryLength int
	// Threshold is the tolerated deviation from the baseline.
	Threshold int
	// Policy selects the behavior after an alarm.
	Policy Policy
	// Cooldown is the pause before re-arming under PolicySelfReset.
	Cooldown time.Duration
}

var (
	// ErrNegativeThreshold is returned for a threshold below zero.
	ErrNegativeThreshold = errors.New("threshold must not be negative")
	// ErrInvalidCooldown is returned when a self-reset policy has no cool-down.
	ErrInvalidCooldown = errors.New("self-reset policy requires a positive cooldown")
	// ErrUnknownPolicy is returned by ParsePolicy for unrecognized names.
	ErrUnknownPolicy = errors.New("unknown alarm policy")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("machine already started")
	// ErrRearmNotAllowed is returned by Rearm under PolicyTerminate.
	ErrRearmNotAllowed = errors.New("terminate policy does not re-arm")
	// ErrNotAlarmed is returned by Rearm when no alarm is active.
	ErrNotAlarmed = errors.New("machine is not alarmed")
)

// maxBand is the widest threshold that still changes a decision. Measures
// and baselines are bytes, so any wider band never alarms.
const maxBand = math.MaxUint8 + 1

// Option customizes a Machine.
type Option func(*Machine)

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides the event ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(m *Machine) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// Machine decides between Monitoring and Alarmed for a stream of measures.
// It is driven from a single goroutine and is not safe for concurrent use.
type Machine struct {
	// settings holds the validated configuration.
	settings Settings
	// history is the rolling baseline buffer owned by the machine.
	history *baseline.History
	// state is the current alarm state.
	state State
	// heartbeat is the current level of the surveillance indicator.
	heartbeat bool
	// last is the most recent alarm event.
	last *Event

	now   func() time.Time
	newID func() string
}

// NewMachine validates settings and allocates the history buffer.
func NewMachine(settings Settings, opts ...Option) (*Machine, error) {
	if settings.Threshold < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeThreshold, settings.Threshold)
	}

	switch settings.Policy {
	case PolicySelfReset:
		if settings.Cooldown <= 0 {
			return nil, ErrInvalidCooldown
		}
	case PolicyTerminate:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, settings.Policy)
	}

	history, err := baseline.New(settings.HistoryLength)
	if err != nil {
		return nil, fmt.Errorf("allocate history: %w", err)
	}

	m := &Machine{
		settings: settings,
		history:  history,
		state:    StateIdle,
		now:      time.Now,
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Start performs the initial history fill and enters Monitoring.
func (m *Machine) Start(measures []uint8) error {
	if m.state != StateIdle {
		return ErrAlreadyStarted
	}

	if err := m.history.Fill(measures); err != nil {
		return fmt.Errorf("initial fill: %w", err)
	}

	m.state = StateMonitoring

	return nil
}

// Evaluate compares measure with the baseline and returns the decision.
// A measure is anomalous when it is above baseline+threshold or at or below
// baseline-threshold. Calm measures enter the history and toggle the
// surveillance heartbeat. Evaluate panics unless the machine is Monitoring.
func (m *Machine) Evaluate(measure uint8) Decision {
	return m.evaluate(measure, 0)
}

// EvaluateFrame is Evaluate with the sequence number of the frame recorded
// in the alarm event.
func (m *Machine) EvaluateFrame(measure uint8, seq uint64) Decision {
	return m.evaluate(measure, seq)
}

func (m *Machine) evaluate(measure uint8, seq uint64) Decision {
	if m.state != StateMonitoring {
		panic("alarm: evaluate in state " + m.state.String())
	}

	var (
		b         = m.history.Baseline()
		value     = int(measure)
		threshold = min(m.settings.Threshold, maxBand)
	)

	// The upper bound is exclusive and the lower bound inclusive.
	if value > int(b)+threshold || value <= int(b)-threshold {
		return m.trigger(measure, b, seq)
	}

	m.history.Insert(measure)
	m.heartbeat = !m.heartbeat

	return Decision{
		State:      m.state,
		Measure:    measure,
		Baseline:   b,
		Directives: []Directive{SetIndicator(ChannelSurveillance, m.heartbeat)},
	}
}

func (m *Machine) trigger(measure, b uint8, seq uint64) Decision {
	m.state = StateAlarmed
	m.heartbeat = false
	m.last = &Event{
		ID:        m.newID(),
		Timestamp: m.now(),
		FrameSeq:  seq,
		Measure:   measure,
		Baseline:  b,
		Threshold: m.settings.Threshold,
	}

	return Decision{
		State:    m.state,
		Measure:  measure,
		Baseline: b,
		Alarm:    true,
		Event:    m.last.Clone(),
		Directives: []Directive{
			SetIndicator(ChannelIntruder, true),
			SetIndicator(ChannelSurveillance, false),
			Persist(),
		},
	}
}

// Rearm ends an alarm under PolicySelfReset: the stale history is replaced
// with measures, monitoring resumes and the intruder indicator is released.
//
// The release directive is only returned once the refill succeeded, which is
// later than the classic loop that drops the line before capturing the new
// history. A failed refill therefore leaves the intruder line asserted.
func (m *Machine) Rearm(measures []uint8) ([]Directive, error) {
	if m.settings.Policy != PolicySelfReset {
		return nil, ErrRearmNotAllowed
	}

	if m.state != StateAlarmed {
		return nil, fmt.Errorf("%w: state %s", ErrNotAlarmed, m.state)
	}

	if err := m.history.Fill(measures); err != nil {
		return nil, fmt.Errorf("refill history: %w", err)
	}

	m.state = StateMonitoring

	return []Directive{SetIndicator(ChannelIntruder, false)}, nil
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Settings returns the configuration the machine was built with.
func (m *Machine) Settings() Settings {
	return m.settings
}

// Baseline returns the current history average. It panics before Start.
func (m *Machine) Baseline() uint8 {
	return m.history.Baseline()
}

// History returns the buffered measures from oldest to newest.
func (m *Machine) History() []uint8 {
	return m.history.Values()
}

// Heartbeat returns the current surveillance indicator level.
func (m *Machine) Heartbeat() bool {
	return m.heartbeat
}

// LastEvent returns a copy of the most recent alarm event, or nil.
func (m *Machine) LastEvent() *Event {
	return m.last.Clone()
}
