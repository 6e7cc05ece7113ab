// Package native is the capture backend backed by the libcdshow library.
package native

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/logging"
	"github.com/smazurov/camsnap/pkg/cds"
)

// Name is the backend name.
const Name = "native"

// Library is the subset of *cds.Library the backend uses.
type Library interface {
	Initialize() error
	Shutdown()
	SetLogEnabled(enabled bool)

	DeviceCount() int
	DeviceName(device int) string
	DeviceUniqueID(device int) string
	DeviceModelID(device int) string
	DeviceVID(device int) int
	DevicePID(device int) int

	FormatCount(device int) (int, error)
	FormatWidth(device, format int) uint32
	FormatHeight(device, format int) uint32
	FormatFrameRate(device, format int) uint32
	FormatType(device, format int) string

	StartCapture(device int, width, height uint32) error
	StartCaptureWithFormat(device, format int) error
	StopCapture(device int) error
	HasFirstFrame(device int) bool
	GrabFrame(device int, buf []byte) error
	FrameWidth(device int) int
	FrameHeight(device int) int
	FrameBytesPerRow(device int) int
	ButtonPressed(device int) bool
	ButtonTimestamp(device int) uint64
}

var _ Library = (*cds.Library)(nil)

// Backend drives capture through a loaded library.
type Backend struct {
	lib     Library
	logLib  bool
	logger  *slog.Logger
	mu      sync.Mutex
	started bool
}

// New creates a backend. logLibrary enables the library's own debug output.
func New(lib Library, logLibrary bool) *Backend {
	return &Backend{lib: lib, logLib: logLibrary, logger: logging.GetLogger("native")}
}

// Name implements capture.Backend.
func (b *Backend) Name() string { return Name }

// Init implements capture.Backend.
func (b *Backend) Init(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	b.lib.SetLogEnabled(b.logLib)
	if err := b.lib.Initialize(); err != nil {
		return err
	}
	b.started = true
	b.logger.Debug("Capture API initialized", "devices", b.lib.DeviceCount())
	return nil
}

// Devices implements capture.Backend.
func (b *Backend) Devices() ([]capture.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil, mapError(cds.ErrNotInitialized)
	}

	n := b.lib.DeviceCount()
	devices := make([]capture.Device, 0, n)
	for i := range n {
		dev := capture.Device{
			Index:     i,
			Name:      b.lib.DeviceName(i),
			UniqueID:  b.lib.DeviceUniqueID(i),
			ModelID:   b.lib.DeviceModelID(i),
			VendorID:  b.lib.DeviceVID(i),
			ProductID: b.lib.DevicePID(i),
			Formats:   []capture.Format{},
		}

		count, err := b.lib.FormatCount(i)
		if err != nil {
			b.logger.Warn("Failed to read formats", "device", i, "error", err)
		}
		for f := range count {
			dev.Formats = append(dev.Formats, capture.Format{
				Index:     f,
				Width:     b.lib.FormatWidth(i, f),
				Height:    b.lib.FormatHeight(i, f),
				FrameRate: b.lib.FormatFrameRate(i, f),
				Type:      b.lib.FormatType(i, f),
			})
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// Open implements capture.Backend.
func (b *Backend) Open(_ context.Context, dev capture.Device, format capture.Format) (capture.Session, error) {
	if err := b.lib.StartCaptureWithFormat(dev.Index, format.Index); err != nil {
		return nil, fmt.Errorf("start capture on %q format %d: %w", dev.Name, format.Index, mapError(err))
	}
	return &session{lib: b.lib, device: dev.Index}, nil
}

// OpenResolution implements capture.Backend.
func (b *Backend) OpenResolution(_ context.Context, dev capture.Device, width, height uint32) (capture.Session, error) {
	if err := b.lib.StartCapture(dev.Index, width, height); err != nil {
		return nil, fmt.Errorf("start capture on %q at %dx%d: %w", dev.Name, width, height, mapError(err))
	}
	return &session{lib: b.lib, device: dev.Index}, nil
}

// Close implements capture.Backend. The library itself stays loaded.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	b.lib.Shutdown()
	b.started = false
	return nil
}

type session struct {
	lib    Library
	device int
}

func (s *session) HasFirstFrame() bool {
	return s.lib.HasFirstFrame(s.device)
}

func (s *session) FrameSize() (width, height, stride int) {
	return s.lib.FrameWidth(s.device), s.lib.FrameHeight(s.device), s.lib.FrameBytesPerRow(s.device)
}

func (s *session) Grab(buf []byte) error {
	return mapError(s.lib.GrabFrame(s.device, buf))
}

func (s *session) ButtonPressed() (capture.Press, bool) {
	if !s.lib.ButtonPressed(s.device) {
		return capture.Press{}, false
	}
	return capture.Press{Timestamp: s.lib.ButtonTimestamp(s.device), At: time.Now()}, true
}

// Lost returns nil; the library does not report removal.
func (s *session) Lost() <-chan struct{} {
	return nil
}

func (s *session) Close() error {
	err := s.lib.StopCapture(s.device)
	if errors.Is(err, cds.ErrNotStarted) {
		return nil
	}
	return mapError(err)
}

// mapError adds the matching capture sentinel to library result codes so
// callers can test with errors.Is against either package.
func mapError(err error) error {
	var code cds.Error
	if !errors.As(err, &code) {
		return err
	}
	switch code {
	case cds.ErrDeviceNotFound:
		return fmt.Errorf("%w: %w", capture.ErrDeviceNotFound, err)
	case cds.ErrFormatNotFound:
		return fmt.Errorf("%w: %w", capture.ErrFormatNotFound, err)
	case cds.ErrBufTooSmall, cds.ErrBufNull:
		return fmt.Errorf("%w: %w", capture.ErrBufferTooSmall, err)
	case cds.ErrNotStarted, cds.ErrNotInitialized:
		return fmt.Errorf("%w: %w", capture.ErrNotStarted, err)
	default:
		return err
	}
}
