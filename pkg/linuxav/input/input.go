//go:build linux

// Package input reads Linux evdev key events without cgo.
//
// UVC cameras with a snapshot button register an input device next to their
// video node and report presses as KEY_CAMERA:
//
//	path, err := input.FindForVideo("/sys/class/video4linux/video0")
//	dev, err := input.Open(path)
//	defer dev.Close()
//	for {
//	    ev, err := dev.Read()
//	    if ev.IsPress(input.KeyCamera) { ... }
//	}
package input

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Event types and key codes from linux/input-event-codes.h.
const (
	EvSyn = 0x00
	EvKey = 0x01

	KeyCamera = 212
)

// Key values.
const (
	KeyReleased = 0
	KeyPressed  = 1
	KeyRepeat   = 2
)

// ErrNoInputDevice is returned when no input node belongs to a video device.
var ErrNoInputDevice = errors.New("no input device for video node")

// sysClassInput is replaced in tests.
var sysClassInput = "/sys/class/input"

type rawEvent struct {
	sec, usec int64
	typ       uint16
	code      uint16
	value     int32
}

// Event is one decoded input_event.
type Event struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// IsPress reports whether the event is a key-down of code.
func (e Event) IsPress(code uint16) bool {
	return e.Type == EvKey && e.Code == code && e.Value == KeyPressed
}

// Timestamp100ns returns the event time in 100 ns units since the Unix epoch.
func (e Event) Timestamp100ns() uint64 {
	if e.Time.IsZero() {
		return 0
	}
	return uint64(e.Time.UnixNano() / 100)
}

// Device is an open /dev/input/eventN node.
type Device struct {
	path string
	f    *os.File
	buf  []byte
}

// Open opens an evdev node for reading.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open input device %s: %w", path, err)
	}
	return &Device{path: path, f: f, buf: make([]byte, eventSize)}, nil
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// Read blocks until the next event. It returns os.ErrClosed after Close.
func (d *Device) Read() (Event, error) {
	if _, err := io.ReadFull(d.f, d.buf); err != nil {
		return Event{}, err
	}
	raw := decodeEvent(d.buf)
	return Event{
		Time:  time.Unix(raw.sec, raw.usec*1000),
		Type:  raw.typ,
		Code:  raw.code,
		Value: raw.value,
	}, nil
}

// Close closes the node, unblocking a pending Read.
func (d *Device) Close() error {
	return d.f.Close()
}

// FindForVideo returns the /dev/input/eventN node registered by the same USB
// device as the given video4linux sysfs node (for example
// /sys/class/video4linux/video0).
func FindForVideo(videoSysfs string) (string, error) {
	videoUSB, err := usbDeviceOf(filepath.Join(videoSysfs, "device"))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", videoSysfs, err)
	}

	entries, err := os.ReadDir(sysClassInput)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", sysClassInput, err)
	}

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "event") {
			continue
		}
		// eventN/device is the inputM node; its parent is the USB interface.
		inputUSB, err := usbDeviceOf(filepath.Join(sysClassInput, entry.Name(), "device", "device"))
		if err != nil {
			continue
		}
		if inputUSB == videoUSB {
			return "/dev/input/" + entry.Name(), nil
		}
	}

	return "", ErrNoInputDevice
}

// usbDeviceOf resolves an interface link and returns the USB device directory
// that owns it.
func usbDeviceOf(ifaceLink string) (string, error) {
	iface, err := filepath.EvalSymlinks(ifaceLink)
	if err != nil {
		return "", err
	}
	return filepath.Dir(iface), nil
}
