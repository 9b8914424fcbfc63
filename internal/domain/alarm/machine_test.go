package alarm

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// repeat returns n copies of v.
func repeat(v uint8, n int) []uint8 {
	measures := make([]uint8, n)
	for i := range measures {
		measures[i] = v
	}

	return measures
}

// newStartedMachine builds a machine with a history filled with the given value.
func newStartedMachine(t *testing.T, settings Settings, fill uint8) *Machine {
	t.Helper()

	m, err := NewMachine(settings, WithIDGenerator(func() string { return "event-1" }))
	require.NoError(t, err)
	require.NoError(t, m.Start(repeat(fill, settings.HistoryLength)))

	return m
}

// TestNewMachine_Validation verifies settings checks.
func TestNewMachine_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewMachine(Settings{HistoryLength: 10, Threshold: -1, Policy: PolicyTerminate})
	require.ErrorIs(t, err, ErrNegativeThreshold)

	_, err = NewMachine(Settings{HistoryLength: 10, Threshold: 3, Policy: PolicySelfReset})
	require.ErrorIs(t, err, ErrInvalidCooldown)

	_, err = NewMachine(Settings{HistoryLength: 0, Threshold: 3, Policy: PolicyTerminate})
	require.Error(t, err)

	_, err = NewMachine(Settings{HistoryLength: 10, Threshold: 3, Policy: Policy(42)})
	require.ErrorIs(t, err, ErrUnknownPolicy)

	m, err := NewMachine(Settings{HistoryLength: 10, Threshold: 0, Policy: PolicyTerminate})
	require.NoError(t, err)
	require.Equal(t, StateIdle, m.State())
}

// TestStart_FillsHistory verifies the initial fill and its error paths.
func TestStart_FillsHistory(t *testing.T) {
	t.Parallel()

	m, err := NewMachine(Settings{HistoryLength: 3, Threshold: 1, Policy: PolicyTerminate})
	require.NoError(t, err)

	require.Error(t, m.Start([]uint8{1, 2}))
	require.Equal(t, StateIdle, m.State())

	require.NoError(t, m.Start([]uint8{10, 20, 30}))
	require.Equal(t, StateMonitoring, m.State())
	require.Equal(t, uint8(20), m.Baseline())

	require.ErrorIs(t, m.Start([]uint8{1, 2, 3}), ErrAlreadyStarted)
}

// TestEvaluate_BeforeStartPanics ensures evaluation requires a filled history.
func TestEvaluate_BeforeStartPanics(t *testing.T) {
	t.Parallel()

	m, err := NewMachine(Settings{HistoryLength: 3, Threshold: 1, Policy: PolicyTerminate})
	require.NoError(t, err)

	require.Panics(t, func() { m.Evaluate(10) })
}

// TestEvaluate_Boundaries checks the asymmetric threshold band around baseline 100.
func TestEvaluate_Boundaries(t *testing.T) {
	t.Parallel()

	cases := map[uint8]bool{
		96:  true,
		97:  true,
		98:  false,
		100: false,
		103: false,
		104: true,
	}

	for measure, wantAlarm := range cases {
		m := newStartedMachine(t, Settings{HistoryLength: 10, Threshold: 3, Policy: PolicyTerminate}, 100)

		d := m.Evaluate(measure)
		require.Equal(t, wantAlarm, d.Alarm, "measure %d", measure)
		require.Equal(t, uint8(100), d.Baseline)

		if wantAlarm {
			require.Equal(t, StateAlarmed, m.State())
		} else {
			require.Equal(t, StateMonitoring, m.State())
		}
	}
}

// TestEvaluate_ZeroThresholdAlwaysAlarms documents that a zero band has no calm values.
func TestEvaluate_ZeroThresholdAlwaysAlarms(t *testing.T) {
	t.Parallel()

	for _, measure := range []uint8{49, 50, 51} {
		m := newStartedMachine(t, Settings{HistoryLength: 4, Threshold: 0, Policy: PolicyTerminate}, 50)
		require.True(t, m.Evaluate(measure).Alarm, "measure %d", measure)
	}
}

// TestEvaluate_HugeThresholdNeverAlarms covers bands wider than the measure range.
func TestEvaluate_HugeThresholdNeverAlarms(t *testing.T) {
	t.Parallel()

	for _, threshold := range []int{256, 1000, math.MaxInt} {
		for _, fill := range []uint8{0, 100, 255} {
			for _, measure := range []uint8{0, 100, 255} {
				m := newStartedMachine(t, Settings{HistoryLength: 2, Threshold: threshold, Policy: PolicyTerminate}, fill)
				require.False(t, m.Evaluate(measure).Alarm,
					"threshold %d baseline %d measure %d", threshold, fill, measure)
			}
		}
	}
}

// TestEvaluate_WidestEffectiveThreshold keeps the inclusive lower bound at 255.
func TestEvaluate_WidestEffectiveThreshold(t *testing.T) {
	t.Parallel()

	m := newStartedMachine(t, Settings{HistoryLength: 2, Threshold: 255, Policy: PolicyTerminate}, 255)
	require.True(t, m.Evaluate(0).Alarm)

	m = newStartedMachine(t, Settings{HistoryLength: 2, Threshold: 255, Policy: PolicyTerminate}, 254)
	require.False(t, m.Evaluate(0).Alarm)
}

// TestEvaluate_LowBaselineDoesNotUnderflow ensures the lower bound is computed with signed arithmetic.
func TestEvaluate_LowBaselineDoesNotUnderflow(t *testing.T) {
	t.Parallel()

	cases := map[uint8]bool{
		0: false,
		7: false,
		8: true,
	}

	for measure, wantAlarm := range cases {
		m := newStartedMachine(t, Settings{HistoryLength: 4, Threshold: 5, Policy: PolicyTerminate}, 2)
		require.Equal(t, wantAlarm, m.Evaluate(measure).Alarm, "measure %d", measure)
	}
}

// TestEvaluate_CalmInsertsAndBlinks verifies history updates and the heartbeat toggle.
func TestEvaluate_CalmInsertsAndBlinks(t *testing.T) {
	t.Parallel()

	m := newStartedMachine(t, Settings{HistoryLength: 4, Threshold: 3, Policy: PolicyTerminate}, 50)

	d := m.Evaluate(52)
	require.False(t, d.Alarm)
	require.Nil(t, d.Event)
	require.Equal(t, []Directive{SetIndicator(ChannelSurveillance, true)}, d.Directives)
	require.Equal(t, []uint8{50, 50, 50, 52}, m.History())

	d = m.Evaluate(51)
	require.Equal(t, []Directive{SetIndicator(ChannelSurveillance, false)}, d.Directives)
	require.False(t, m.Heartbeat())
	require.Equal(t, []uint8{50, 50, 52, 51}, m.History())
}

// TestEvaluate_AlarmDirectives verifies the alarm transition and its side effects.
func TestEvaluate_AlarmDirectives(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	m, err := NewMachine(
		Settings{HistoryLength: 4, Threshold: 3, Policy: PolicyTerminate},
		WithClock(func() time.Time { return ts }),
		WithIDGenerator(func() string { return "abc" }),
	)
	require.NoError(t, err)
	require.NoError(t, m.Start(repeat(50, 4)))

	// Raise the heartbeat first so the alarm must clear it.
	m.Evaluate(50)
	require.True(t, m.Heartbeat())

	d := m.EvaluateFrame(60, 17)
	require.True(t, d.Alarm)
	require.Equal(t, StateAlarmed, d.State)
	require.ElementsMatch(t, []Directive{
		Persist(),
		SetIndicator(ChannelIntruder, true),
		SetIndicator(ChannelSurveillance, false),
	}, d.Directives)
	require.False(t, m.Heartbeat())

	require.Equal(t, &Event{
		ID:        "abc",
		Timestamp: ts,
		FrameSeq:  17,
		Measure:   60,
		Baseline:  50,
		Threshold: 3,
	}, d.Event)
	require.Equal(t, 10, d.Event.Deviation())

	// The anomalous measure never enters the history.
	require.Equal(t, repeat(50, 4), m.History())

	// The returned event is a copy.
	d.Event.Measure = 0
	require.Equal(t, uint8(60), m.LastEvent().Measure)
}

// TestTerminate_NoFurtherTransitions covers the terminate scenario end to end.
func TestTerminate_NoFurtherTransitions(t *testing.T) {
	t.Parallel()

	m := newStartedMachine(t, Settings{HistoryLength: 10, Threshold: 3, Policy: PolicyTerminate}, 50)

	d := m.Evaluate(60)
	require.True(t, d.Alarm)

	require.Panics(t, func() { m.Evaluate(50) })

	_, err := m.Rearm(repeat(50, 10))
	require.ErrorIs(t, err, ErrRearmNotAllowed)
	require.Equal(t, StateAlarmed, m.State())
}

// TestSelfReset_Scenario covers the self-reset scenario end to end.
func TestSelfReset_Scenario(t *testing.T) {
	t.Parallel()

	m := newStartedMachine(t, Settings{
		HistoryLength: 10,
		Threshold:     3,
		Policy:        PolicySelfReset,
		Cooldown:      2 * time.Second,
	}, 50)

	d := m.Evaluate(60)
	require.True(t, d.Alarm)
	require.Contains(t, d.Directives, Persist())
	require.Contains(t, d.Directives, SetIndicator(ChannelIntruder, true))
	require.Contains(t, d.Directives, SetIndicator(ChannelSurveillance, false))

	// Evaluating before re-arming is a contract violation.
	require.Panics(t, func() { m.Evaluate(50) })

	// A short refill leaves the machine alarmed.
	_, err := m.Rearm(repeat(50, 9))
	require.Error(t, err)
	require.Equal(t, StateAlarmed, m.State())

	directives, err := m.Rearm(repeat(50, 10))
	require.NoError(t, err)
	require.Equal(t, []Directive{SetIndicator(ChannelIntruder, false)}, directives)
	require.Equal(t, StateMonitoring, m.State())

	d = m.Evaluate(52)
	require.False(t, d.Alarm)
	require.Equal(t, StateMonitoring, d.State)

	_, err = m.Rearm(repeat(50, 10))
	require.ErrorIs(t, err, ErrNotAlarmed)
}

// TestRearm_FailedRefillKeepsIntruder returns no release directive until the history is refilled.
func TestRearm_FailedRefillKeepsIntruder(t *testing.T) {
	t.Parallel()

	m := newStartedMachine(t, Settings{
		HistoryLength: 3,
		Threshold:     3,
		Policy:        PolicySelfReset,
		Cooldown:      time.Second,
	}, 50)
	require.True(t, m.Evaluate(90).Alarm)

	directives, err := m.Rearm([]uint8{50})
	require.Error(t, err)
	require.Nil(t, directives)
	require.Equal(t, StateAlarmed, m.State())
}

// TestSelfReset_RefillDiscardsHistory verifies the cursor restarts after re-arming.
func TestSelfReset_RefillDiscardsHistory(t *testing.T) {
	t.Parallel()

	m := newStartedMachine(t, Settings{
		HistoryLength: 3,
		Threshold:     3,
		Policy:        PolicySelfReset,
		Cooldown:      time.Second,
	}, 50)

	m.Evaluate(51)
	m.Evaluate(52)
	require.True(t, m.Evaluate(90).Alarm)

	_, err := m.Rearm([]uint8{80, 81, 82})
	require.NoError(t, err)
	require.Equal(t, []uint8{80, 81, 82}, m.History())
	require.Equal(t, uint8(81), m.Baseline())

	m.Evaluate(83)
	require.Equal(t, []uint8{81, 82, 83}, m.History())
}

// TestParsePolicy verifies configuration spellings.
func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy(" Terminate ")
	require.NoError(t, err)
	require.Equal(t, PolicyTerminate, p)

	p, err = ParsePolicy("self-reset")
	require.NoError(t, err)
	require.Equal(t, PolicySelfReset, p)

	_, err = ParsePolicy("explode")
	require.ErrorIs(t, err, ErrUnknownPolicy)

	require.Equal(t, "self-reset", PolicySelfReset.String())
	require.Equal(t, "alarmed", StateAlarmed.String())
	require.Equal(t, "intruder=true", SetIndicator(ChannelIntruder, true).String())
}

// TestEventClone verifies Clone copies and handles nil.
func TestEventClone(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*Event)(nil).Clone())

	e := &Event{ID: "x", Measure: 3}
	c := e.Clone()
	require.Equal(t, e, c)
	require.NotSame(t, e, c)
}
