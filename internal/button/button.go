// Package button provides trigger sources polled by the capture loop in
// addition to the camera's own snapshot button.
package button

import (
	"time"

	"github.com/smazurov/camsnap/internal/capture"
)

// DefaultStable is the minimum time a level must hold before it counts.
const DefaultStable = 30 * time.Millisecond

// Source is a polled trigger. It satisfies capture.ButtonSource.
type Source interface {
	Name() string
	// Poll reports each debounced press exactly once.
	Poll() (capture.Press, bool)
	Close() error
}

var _ capture.ButtonSource = Source(nil)

// Debouncer turns raw level samples into press edges. A press is reported
// when the input has been stably active for Stable after being stably
// inactive.
type Debouncer struct {
	ActiveLow bool
	Stable    time.Duration

	initialized bool
	raw         bool      // last raw active state
	rawSince    time.Time // when raw last changed
	stable      bool      // debounced active state
}

// NewDebouncer creates a debouncer; stable <= 0 uses DefaultStable.
func NewDebouncer(activeLow bool, stable time.Duration) *Debouncer {
	if stable <= 0 {
		stable = DefaultStable
	}
	return &Debouncer{ActiveLow: activeLow, Stable: stable}
}

// Sample feeds one level reading taken at time at. It returns true exactly
// once per debounced transition to active.
func (d *Debouncer) Sample(high bool, at time.Time) bool {
	active := high != d.ActiveLow

	// The first sample only establishes the resting state, so a button held
	// down at startup does not fire.
	if !d.initialized {
		d.initialized = true
		d.raw = active
		d.rawSince = at
		d.stable = active
		return false
	}

	if active != d.raw {
		d.raw = active
		d.rawSince = at
		return false
	}
	if active == d.stable || at.Sub(d.rawSince) < d.Stable {
		return false
	}

	d.stable = active
	return active
}
