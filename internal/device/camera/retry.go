package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/intruder-alarm/internal/domain/frame"
	"github.com/oshokin/intruder-alarm/internal/logger"
)

// ErrAcquisition is returned when every capture attempt for a frame failed.
var ErrAcquisition = errors.New("frame acquisition failed")

// Retrying wraps a Source with a bounded number of attempts per frame.
type Retrying struct {
	// source is the wrapped frame source.
	source Source
	// attempts is the maximum number of captures tried per frame.
	attempts int
	// delay is the pause between two attempts.
	delay time.Duration
}

// NewRetrying wraps source. Attempts below one are treated as one.
func NewRetrying(source Source, attempts int, delay time.Duration) *Retrying {
	return &Retrying{
		source:   source,
		attempts: max(attempts, 1),
		delay:    max(delay, 0),
	}
}

// Acquire tries the wrapped source until it succeeds or the attempts run out.
// Context cancellation is returned as is.
func (r *Retrying) Acquire(ctx context.Context) (*frame.Frame, error) {
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		f, err := r.source.Acquire(ctx)
		if err == nil {
			return f, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		logger.WarnKV(ctx, "Capture failed", "attempt", attempt, "max_attempts", r.attempts, "error", err)

		if attempt == r.attempts {
			break
		}

		if err := sleep(ctx, r.delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrAcquisition, r.attempts, lastErr)
}

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
