// Package cds binds the libcdshow capture API (cds_* exports) without cgo.
//
// The library is loaded at runtime with purego: LoadLibrary on Windows,
// dlopen elsewhere. Every export declared in libcdshow.h is bound; calls are
// thin pass-throughs and result codes are returned as [Error] values.
//
// Typical use:
//
//	lib, err := cds.Open("libcdshow.dll")
//	if err != nil {
//	    return err
//	}
//	defer lib.Close()
//
//	if err := lib.Initialize(); err != nil {
//	    return err
//	}
//	defer lib.Shutdown()
//
//	for i := 0; i < lib.DeviceCount(); i++ {
//	    fmt.Println(lib.DeviceName(i))
//	}
//
// Capture output is always RGB32 (B, G, R, X byte order), top-down.
package cds

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

// String buffer sizes used for the device string getters.
const (
	nameBufferSize     = 512
	uniqueIDBufferSize = 1024
	maxStringSize      = 64 * 1024
)

// Library is a loaded libcdshow instance.
type Library struct {
	path   string
	handle uintptr

	closeOnce sync.Once

	initialize     func() int32
	shutdown       func()
	setLogEnabled  func(int32)
	devicesCount   func() int32
	deviceName     func(int32, *byte, uintptr) uintptr
	deviceUniqueID func(int32, *byte, uintptr) uintptr
	deviceModelID  func(int32, *byte, uintptr) uintptr
	deviceVID      func(int32) int32
	devicePID      func(int32) int32

	formatsCount    func(int32) int32
	formatWidth     func(int32, int32) uint32
	formatHeight    func(int32, int32) uint32
	formatFrameRate func(int32, int32) uint32
	formatType      func(int32, int32, *byte, uintptr) uintptr

	startCapture           func(uint32, uint32, uint32) int32
	startCaptureWithFormat func(uint32, uint32) int32
	stopCapture            func(uint32) int32

	hasFirstFrame    func(uint32) int32
	grabFrame        func(uint32, *byte, uintptr) int32
	frameWidth       func(uint32) int32
	frameHeight      func(uint32) int32
	frameBytesPerRow func(uint32) int32

	buttonPressed   func(uint32) int32
	buttonTimestamp func(uint32) uint64
}

// Open loads the library at path and binds all exports.
func Open(path string) (*Library, error) {
	if path == "" {
		path = DefaultLibraryName
	}

	handle, err := loadLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("cds: load %s: %w", path, err)
	}

	lib := &Library{path: path, handle: handle}

	symbols := []struct {
		fptr any
		name string
	}{
		{&lib.initialize, "cds_initialize"},
		{&lib.shutdown, "cds_shutdown_capture_api"},
		{&lib.setLogEnabled, "cds_set_log_enabled"},
		{&lib.devicesCount, "cds_devices_count"},
		{&lib.deviceName, "cds_device_name"},
		{&lib.deviceUniqueID, "cds_device_unique_id"},
		{&lib.deviceModelID, "cds_device_model_id"},
		{&lib.deviceVID, "cds_device_vid"},
		{&lib.devicePID, "cds_device_pid"},
		{&lib.formatsCount, "cds_device_formats_count"},
		{&lib.formatWidth, "cds_device_format_width"},
		{&lib.formatHeight, "cds_device_format_height"},
		{&lib.formatFrameRate, "cds_device_format_frame_rate"},
		{&lib.formatType, "cds_device_format_type"},
		{&lib.startCapture, "cds_start_capture"},
		{&lib.startCaptureWithFormat, "cds_start_capture_with_format"},
		{&lib.stopCapture, "cds_stop_capture"},
		{&lib.hasFirstFrame, "cds_has_first_frame"},
		{&lib.grabFrame, "cds_grab_frame"},
		{&lib.frameWidth, "cds_frame_width"},
		{&lib.frameHeight, "cds_frame_height"},
		{&lib.frameBytesPerRow, "cds_frame_bytes_per_row"},
		{&lib.buttonPressed, "cds_button_pressed"},
		{&lib.buttonTimestamp, "cds_button_timestamp"},
	}

	var bindErrs []error
	for _, sym := range symbols {
		if bindErr := bind(handle, sym.fptr, sym.name); bindErr != nil {
			bindErrs = append(bindErrs, bindErr)
		}
	}
	if len(bindErrs) > 0 {
		_ = freeLibrary(handle)
		return nil, fmt.Errorf("cds: %s is not a compatible capture library: %w", path, errors.Join(bindErrs...))
	}

	return lib, nil
}

// bind registers one export, converting purego's panic on a missing symbol
// into an error.
func bind(handle uintptr, fptr any, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bind %s: %v", name, r)
		}
	}()
	purego.RegisterLibFunc(fptr, handle, name)
	return nil
}

// Path returns the path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Close unloads the library. Call Shutdown first.
func (l *Library) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = freeLibrary(l.handle)
	})
	return err
}

// Initialize enumerates devices and formats. Calling it twice is a no-op.
func (l *Library) Initialize() error {
	return Result(l.initialize())
}

// Shutdown stops every running capture session and releases device state.
func (l *Library) Shutdown() {
	l.shutdown()
}

// SetLogEnabled toggles the library's debug output.
func (l *Library) SetLogEnabled(enabled bool) {
	var v int32
	if enabled {
		v = 1
	}
	l.setLogEnabled(v)
}

// DeviceCount returns the number of enumerated devices (0 before Initialize).
func (l *Library) DeviceCount() int {
	return int(l.devicesCount())
}

// DeviceName returns the friendly name of a device.
func (l *Library) DeviceName(device int) string {
	return readString(nameBufferSize, func(buf *byte, n uintptr) uintptr {
		return l.deviceName(int32(device), buf, n)
	})
}

// DeviceUniqueID returns the device path (UTF-8) of a device.
func (l *Library) DeviceUniqueID(device int) string {
	return readString(uniqueIDBufferSize, func(buf *byte, n uintptr) uintptr {
		return l.deviceUniqueID(int32(device), buf, n)
	})
}

// DeviceModelID returns the model identifier of a device.
func (l *Library) DeviceModelID(device int) string {
	return readString(nameBufferSize, func(buf *byte, n uintptr) uintptr {
		return l.deviceModelID(int32(device), buf, n)
	})
}

// DeviceVID returns the USB vendor id, 0 if unknown.
func (l *Library) DeviceVID(device int) int {
	return int(l.deviceVID(int32(device)))
}

// DevicePID returns the USB product id, 0 if unknown.
func (l *Library) DevicePID(device int) int {
	return int(l.devicePID(int32(device)))
}

// FormatCount returns the number of deduplicated formats of a device.
func (l *Library) FormatCount(device int) (int, error) {
	n := l.formatsCount(int32(device))
	if n < 0 {
		return 0, Error(n)
	}
	return int(n), nil
}

// FormatWidth returns the width of a format, 0 if out of range.
func (l *Library) FormatWidth(device, format int) uint32 {
	return l.formatWidth(int32(device), int32(format))
}

// FormatHeight returns the height of a format, 0 if out of range.
func (l *Library) FormatHeight(device, format int) uint32 {
	return l.formatHeight(int32(device), int32(format))
}

// FormatFrameRate returns the maximum frame rate of a format.
func (l *Library) FormatFrameRate(device, format int) uint32 {
	return l.formatFrameRate(int32(device), int32(format))
}

// FormatType returns the subtype name ("MJPG", "YUY2", "NV12", "RGB24",
// "RGB32") or a GUID string.
func (l *Library) FormatType(device, format int) string {
	return readString(nameBufferSize, func(buf *byte, n uintptr) uintptr {
		return l.formatType(int32(device), int32(format), buf, n)
	})
}

// StartCapture starts capture at the given resolution. The library picks the
// best subtype for that size.
func (l *Library) StartCapture(device int, width, height uint32) error {
	return Result(l.startCapture(uint32(device), width, height))
}

// StartCaptureWithFormat starts capture using a format index.
func (l *Library) StartCaptureWithFormat(device, format int) error {
	return Result(l.startCaptureWithFormat(uint32(device), uint32(format)))
}

// StopCapture stops the capture session of a device.
func (l *Library) StopCapture(device int) error {
	return Result(l.stopCapture(uint32(device)))
}

// HasFirstFrame reports whether the session has delivered a frame.
func (l *Library) HasFirstFrame(device int) bool {
	return l.hasFirstFrame(uint32(device)) != 0
}

// GrabFrame copies the latest RGB32 frame into buf.
func (l *Library) GrabFrame(device int, buf []byte) error {
	if len(buf) == 0 {
		return ErrBufNull
	}
	return Result(l.grabFrame(uint32(device), &buf[0], uintptr(len(buf))))
}

// FrameWidth returns the width of the running session, 0 if not started.
func (l *Library) FrameWidth(device int) int {
	return int(l.frameWidth(uint32(device)))
}

// FrameHeight returns the height of the running session, 0 if not started.
func (l *Library) FrameHeight(device int) int {
	return int(l.frameHeight(uint32(device)))
}

// FrameBytesPerRow returns the row stride of grabbed frames.
func (l *Library) FrameBytesPerRow(device int) int {
	return int(l.frameBytesPerRow(uint32(device)))
}

// ButtonPressed returns true once per hardware button press.
func (l *Library) ButtonPressed(device int) bool {
	return l.buttonPressed(uint32(device)) != 0
}

// ButtonTimestamp returns the timestamp of the last press in 100ns units
// (best effort).
func (l *Library) ButtonTimestamp(device int) uint64 {
	return l.buttonTimestamp(uint32(device))
}

// readString calls a string getter, doubling the buffer while the library
// fills it to capacity (the getters truncate and return the copied length).
func readString(size int, get func(buf *byte, n uintptr) uintptr) string {
	for {
		buf := make([]byte, size)
		n := get(&buf[0], uintptr(len(buf)))
		if n+1 < uintptr(len(buf)) || size >= maxStringSize {
			return cstr(buf)
		}
		size *= 2
	}
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
