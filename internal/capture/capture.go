// Package capture drives a camera through one start / wait / poll / stop
// session and turns button presses into saved snapshots.
//
// The hardware side is abstracted as a Backend (the libcdshow library on
// Windows, V4L2 on Linux, or a synthetic source) that opens Sessions.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Errors returned by backends and the run loop.
var (
	ErrNoDevices         = errors.New("no camera found")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrFormatNotFound    = errors.New("format not found")
	ErrNoFormats         = errors.New("device reports no formats")
	ErrFirstFrameTimeout = errors.New("timed out waiting for first frame")
	ErrDeviceLost        = errors.New("device lost")
	ErrBufferTooSmall    = errors.New("frame buffer too small")
	ErrNotStarted        = errors.New("capture not started")
)

// Format is one capture mode of a device.
type Format struct {
	Index     int    `json:"index" doc:"Backend format index"`
	Width     uint32 `json:"width" example:"1920"`
	Height    uint32 `json:"height" example:"1080"`
	FrameRate uint32 `json:"frame_rate" example:"30" doc:"Maximum frames per second"`
	Type      string `json:"type" example:"MJPG" doc:"Subtype: MJPG, YUY2, NV12, RGB24, RGB32 or a GUID"`
}

// Pixels returns width*height.
func (f Format) Pixels() uint64 {
	return uint64(f.Width) * uint64(f.Height)
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d@%d %s", f.Width, f.Height, f.FrameRate, f.Type)
}

// Device is an enumerated capture device.
type Device struct {
	Index     int      `json:"index" doc:"Backend device index"`
	Name      string   `json:"name" example:"USB Camera"`
	UniqueID  string   `json:"unique_id" doc:"Device path or stable id"`
	ModelID   string   `json:"model_id,omitempty"`
	VendorID  int      `json:"vendor_id,omitempty" doc:"USB vendor id"`
	ProductID int      `json:"product_id,omitempty" doc:"USB product id"`
	Formats   []Format `json:"formats"`
}

// Press is one button edge.
type Press struct {
	// Timestamp is the device timestamp in 100ns units, 0 when unknown.
	Timestamp uint64
	// At is when the edge was observed.
	At     time.Time
	Source string
}

// Backend enumerates devices and opens capture sessions.
type Backend interface {
	Name() string
	// Init enumerates devices. Calling it again is a no-op.
	Init(ctx context.Context) error
	Devices() ([]Device, error)
	// Open starts capture with an explicit format.
	Open(ctx context.Context, dev Device, format Format) (Session, error)
	// OpenResolution starts capture at a resolution and lets the backend
	// choose the subtype.
	OpenResolution(ctx context.Context, dev Device, width, height uint32) (Session, error)
	// Close stops any running session and releases the backend.
	Close() error
}

// Session is a running capture.
type Session interface {
	HasFirstFrame() bool
	// FrameSize returns the negotiated frame size and row stride in bytes.
	FrameSize() (width, height, stride int)
	// Grab copies the latest BGRX frame into buf.
	Grab(buf []byte) error
	// ButtonPressed reports each hardware button press exactly once.
	ButtonPressed() (Press, bool)
	// Lost is closed when the device goes away. Nil when not supported.
	Lost() <-chan struct{}
	// Close stops capture.
	Close() error
}

// ButtonSource is an extra trigger polled alongside the camera button.
type ButtonSource interface {
	Name() string
	Poll() (Press, bool)
}

// sessionButton adapts a session's hardware button to ButtonSource.
type sessionButton struct {
	session Session
}

func (b sessionButton) Name() string { return "camera" }

func (b sessionButton) Poll() (Press, bool) {
	p, ok := b.session.ButtonPressed()
	if ok {
		p.Source = b.Name()
		if p.At.IsZero() {
			p.At = time.Now()
		}
	}
	return p, ok
}
