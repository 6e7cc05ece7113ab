//go:build !linux

package button

import (
	"errors"

	"github.com/smazurov/camsnap/internal/capture"
)

// Evdev is only available on Linux.
type Evdev struct{}

// OpenEvdev always fails on this platform.
func OpenEvdev(string, uint16) (*Evdev, error) {
	return nil, errors.New("evdev buttons require linux")
}

// Name implements Source.
func (e *Evdev) Name() string { return "evdev" }

// Poll implements Source.
func (e *Evdev) Poll() (capture.Press, bool) { return capture.Press{}, false }

// Close implements Source.
func (e *Evdev) Close() error { return nil }
