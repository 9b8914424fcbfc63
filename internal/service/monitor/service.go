package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/intruder-alarm/internal/device/camera"
	"github.com/oshokin/intruder-alarm/internal/device/gpio"
	"github.com/oshokin/intruder-alarm/internal/domain/alarm"
	"github.com/oshokin/intruder-alarm/internal/domain/frame"
	"github.com/oshokin/intruder-alarm/internal/logger"
	"github.com/oshokin/intruder-alarm/internal/repository/snapshot"
)

// Journal records raised alarms.
type Journal interface {
	Record(ctx context.Context, event *alarm.Event, imagePath string) error
}

// monitor sequences acquisition, evaluation and side effects.
// It runs on a single goroutine; the machine and history are never shared.
type monitor struct {
	// source supplies frames.
	source camera.Source
	// bank drives the indicator lines.
	bank gpio.Bank
	// snapshots persists triggering frames.
	snapshots snapshot.Repository
	// journal records alarms, nil when disabled.
	journal Journal
	// machine decides between monitoring and alarm.
	machine *alarm.Machine
	// startupDelay is waited once before the first capture.
	startupDelay time.Duration
}

// stepResult is the outcome of one capture cycle.
type stepResult struct {
	// Decision is what the machine decided for the frame.
	Decision alarm.Decision
	// SnapshotPath is where the triggering frame was written.
	SnapshotPath string
	// DispatchErr joins every failed side effect of the cycle.
	DispatchErr error
	// Done reports that the loop must stop.
	Done bool
}

// run waits the startup delay, fills the history and loops until the alarm
// is final, the context is canceled or acquisition fails for good.
// Side-effect failures of a final alarm are returned.
func (m *monitor) run(ctx context.Context) error {
	if err := sleep(ctx, m.startupDelay); err != nil {
		return nil
	}

	// Both outputs start de-asserted.
	for _, ch := range []alarm.Channel{alarm.ChannelSurveillance, alarm.ChannelIntruder} {
		if err := m.bank.Set(ctx, ch, false); err != nil {
			return fmt.Errorf("reset %s indicator: %w", ch, err)
		}
	}

	measures, err := m.collect(ctx)
	if err != nil {
		return ignoreCanceled(ctx, fmt.Errorf("initial fill: %w", err))
	}

	if err = m.machine.Start(measures); err != nil {
		return fmt.Errorf("start machine: %w", err)
	}

	settings := m.machine.Settings()
	logger.InfoKV(ctx, "Monitoring started",
		"baseline", m.machine.Baseline(),
		"history_length", settings.HistoryLength,
		"threshold", settings.Threshold,
		"policy", settings.Policy.String(),
	)

	for ctx.Err() == nil {
		result, err := m.step(ctx)
		if err != nil {
			return ignoreCanceled(ctx, err)
		}

		if result.Done {
			if result.DispatchErr != nil {
				return fmt.Errorf("handle final alarm: %w", result.DispatchErr)
			}

			return nil
		}
	}

	logger.Info(ctx, "Context canceled, stopping")

	return nil
}

// step runs one capture cycle, recovering from an alarm when the policy allows it.
func (m *monitor) step(ctx context.Context) (*stepResult, error) {
	f, err := m.source.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire frame: %w", err)
	}

	measure := frame.Mean(f)
	decision := m.machine.EvaluateFrame(measure, f.Seq)

	logger.DebugKV(ctx, "Frame evaluated",
		"seq", f.Seq,
		"measure", measure,
		"baseline", decision.Baseline,
		"state", decision.State.String(),
	)

	result := &stepResult{Decision: decision}
	result.SnapshotPath, result.DispatchErr = m.dispatch(ctx, f, decision.Event, decision.Directives)

	if result.DispatchErr != nil {
		logger.ErrorKV(ctx, "Side effects failed", "seq", f.Seq, "error", result.DispatchErr)
	}

	if !decision.Alarm {
		return result, nil
	}

	event := decision.Event
	ctx = logger.WithKV(ctx, "event_id", event.ID)

	logger.WarnKV(ctx, "Intruder detected",
		"measure", event.Measure,
		"baseline", event.Baseline,
		"deviation", event.Deviation(),
		"snapshot", result.SnapshotPath,
	)

	if m.machine.Settings().Policy == alarm.PolicyTerminate {
		logger.Info(ctx, "Alarm is final, stopping")

		result.Done = true

		return result, nil
	}

	if err = m.rearm(ctx); err != nil {
		return nil, err
	}

	return result, nil
}

// rearm waits the cool-down, refills the history and resumes monitoring.
// The intruder line stays asserted until the refill succeeded.
func (m *monitor) rearm(ctx context.Context) error {
	cooldown := m.machine.Settings().Cooldown

	logger.Infof(ctx, "Cooling down for %s", cooldown)

	if err := sleep(ctx, cooldown); err != nil {
		return err
	}

	measures, err := m.collect(ctx)
	if err != nil {
		return fmt.Errorf("refill history: %w", err)
	}

	directives, err := m.machine.Rearm(measures)
	if err != nil {
		return fmt.Errorf("re-arm machine: %w", err)
	}

	if _, err = m.dispatch(ctx, nil, nil, directives); err != nil {
		logger.ErrorKV(ctx, "Side effects failed", "error", err)
	}

	logger.InfoKV(ctx, "Monitoring resumed", "baseline", m.machine.Baseline())

	return nil
}

// collect acquires one measure per history slot.
func (m *monitor) collect(ctx context.Context) ([]uint8, error) {
	measures := make([]uint8, m.machine.Settings().HistoryLength)

	for i := range measures {
		f, err := m.source.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire frame %d/%d: %w", i+1, len(measures), err)
		}

		measures[i] = frame.Mean(f)
	}

	return measures, nil
}

// dispatch carries out directives in order. Failures never stop later
// directives; they are joined into the returned error.
func (m *monitor) dispatch(
	ctx context.Context,
	f *frame.Frame,
	event *alarm.Event,
	directives []alarm.Directive,
) (string, error) {
	var (
		snapshotPath string
		errs         []error
	)

	for _, d := range directives {
		switch d.Kind {
		case alarm.DirectiveIndicator:
			if err := m.bank.Set(ctx, d.Channel, d.Asserted); err != nil {
				errs = append(errs, fmt.Errorf("set %s indicator: %w", d.Channel, err))
			}
		case alarm.DirectivePersist:
			path, err := m.persist(ctx, f, event)
			if err != nil {
				errs = append(errs, err)
			}

			snapshotPath = path
		}
	}

	return snapshotPath, errors.Join(errs...)
}

// persist stores the triggering frame and records the alarm in the journal.
func (m *monitor) persist(ctx context.Context, f *frame.Frame, event *alarm.Event) (string, error) {
	var errs []error

	path, err := m.snapshots.Save(ctx, &snapshot.Snapshot{
		Event: event,
		Frame: f,
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("save snapshot: %w", err))
	}

	if m.journal != nil {
		if err = m.journal.Record(ctx, event, path); err != nil {
			errs = append(errs, fmt.Errorf("record alarm: %w", err))
		}
	}

	return path, errors.Join(errs...)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ignoreCanceled turns errors caused by shutdown into a clean exit.
func ignoreCanceled(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}

	return err
}
