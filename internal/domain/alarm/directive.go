package alarm

import "fmt"

// Channel is a logical indicator output.
type Channel int

const (
	// ChannelSurveillance blinks while monitoring is live.
	ChannelSurveillance Channel = iota
	// ChannelIntruder is asserted while an alarm is active.
	ChannelIntruder
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case ChannelSurveillance:
		return "surveillance"
	case ChannelIntruder:
		return "intruder"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// DirectiveKind is the type of side effect requested by the machine.
type DirectiveKind int

const (
	// DirectivePersist asks the caller to store the current frame.
	DirectivePersist DirectiveKind = iota
	// DirectiveIndicator asks the caller to drive an indicator line.
	DirectiveIndicator
)

// Directive is a fire-and-forget side effect the caller must carry out.
type Directive struct {
	// Kind selects which fields are meaningful.
	Kind DirectiveKind
	// Channel is the indicator to drive, for DirectiveIndicator.
	Channel Channel
	// Asserted is the requested indicator level, for DirectiveIndicator.
	Asserted bool
}

// Persist returns a directive asking to store the triggering frame.
func Persist() Directive {
	return Directive{Kind: DirectivePersist}
}

// SetIndicator returns a directive driving ch to the given level.
func SetIndicator(ch Channel, asserted bool) Directive {
	return Directive{
		Kind:     DirectiveIndicator,
		Channel:  ch,
		Asserted: asserted,
	}
}

// String renders the directive for logs.
func (d Directive) String() string {
	if d.Kind == DirectivePersist {
		return "persist"
	}

	return fmt.Sprintf("%s=%t", d.Channel, d.Asserted)
}

// Decision is the outcome of evaluating one measure.
type Decision struct {
	// State is the machine state after the evaluation.
	State State
	// Measure is the evaluated brightness.
	Measure uint8
	// Baseline is the history average before the measure was inserted.
	Baseline uint8
	// Alarm reports whether this measure triggered the transition to Alarmed.
	Alarm bool
	// Event describes the alarm, nil when Alarm is false.
	Event *Event
	// Directives lists the side effects to carry out, in order.
	Directives []Directive
}
