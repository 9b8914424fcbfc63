package baseline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLength is returned when the history length is not positive.
	ErrInvalidLength = errors.New("history length must be positive")
	// ErrShortFill is returned when Fill receives a number of measures other than the capacity.
	ErrShortFill = errors.New("fill requires exactly one measure per slot")
)

// History is a ring of the N most recent brightness measures.
// It is not safe for concurrent use.
type History struct {
	// slots holds the measures; its length never changes.
	slots []uint8
	// cursor is the index of the slot the next Insert overwrites.
	cursor int
	// filled reports whether Fill has populated every slot.
	filled bool
}

// New allocates a history with capacity n.
func New(n int) (*History, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}

	return &History{
		slots: make([]uint8, n),
	}, nil
}

// Fill replaces the whole history with measures, in order, and rewinds the cursor.
func (h *History) Fill(measures []uint8) error {
	if len(measures) != len(h.slots) {
		return fmt.Errorf("%w: got %d, want %d", ErrShortFill, len(measures), len(h.slots))
	}

	copy(h.slots, measures)
	h.cursor = 0
	h.filled = true

	return nil
}

// Baseline returns the truncated mean of all slots.
// It panics if the history has never been filled.
func (h *History) Baseline() uint8 {
	h.mustBeFilled("baseline")

	var sum uint64
	for _, m := range h.slots {
		sum += uint64(m)
	}

	return uint8(sum / uint64(len(h.slots)))
}

// Insert overwrites the oldest measure with m and advances the cursor.
// It panics if the history has never been filled.
func (h *History) Insert(m uint8) {
	h.mustBeFilled("insert")

	h.slots[h.cursor] = m
	h.cursor = (h.cursor + 1) % len(h.slots)
}

// Values returns a copy of the measures ordered from oldest to newest.
func (h *History) Values() []uint8 {
	values := make([]uint8, 0, len(h.slots))
	values = append(values, h.slots[h.cursor:]...)
	values = append(values, h.slots[:h.cursor]...)

	return values
}

// Len returns the capacity N.
func (h *History) Len() int {
	return len(h.slots)
}

// Cursor returns the index of the next slot to be overwritten.
func (h *History) Cursor() int {
	return h.cursor
}

// Filled reports whether the history has been populated.
func (h *History) Filled() bool {
	return h.filled
}

func (h *History) mustBeFilled(op string) {
	if !h.filled {
		panic("baseline: " + op + " before initial fill")
	}
}
