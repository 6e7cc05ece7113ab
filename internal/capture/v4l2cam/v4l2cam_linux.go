//go:build linux

// Package v4l2cam is the Linux capture backend. Devices and modes come from
// V4L2 enumeration, frames are streamed with blackjack/webcam, the snapshot
// button is read from the camera's evdev node and removal is detected via
// netlink uevents.
package v4l2cam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blackjack/webcam"

	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/logging"
	"github.com/smazurov/camsnap/pkg/linuxav/hotplug"
	"github.com/smazurov/camsnap/pkg/linuxav/input"
	"github.com/smazurov/camsnap/pkg/linuxav/v4l2"
)

// Name is the backend name.
const Name = "v4l2"

// Pixel formats the backend can convert to BGRX.
var supportedFormats = []uint32{v4l2.PixFmtYUYV, v4l2.PixFmtMJPEG}

// Backend enumerates V4L2 devices and streams from them.
type Backend struct {
	opts   Options
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	infos       []v4l2.DeviceInfo
	modes       [][]v4l2.Mode
	sessions    []*session
}

// New creates the backend.
func New(opts Options) *Backend {
	if opts.BufferCount == 0 {
		opts.BufferCount = DefaultOptions().BufferCount
	}
	return &Backend{opts: opts, logger: logging.GetLogger("v4l2")}
}

// Name implements capture.Backend.
func (b *Backend) Name() string { return Name }

// Init implements capture.Backend.
func (b *Backend) Init(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}

	infos, err := v4l2.FindDevices()
	if err != nil {
		return fmt.Errorf("find v4l2 devices: %w", err)
	}

	modes := make([][]v4l2.Mode, len(infos))
	for i, info := range infos {
		m, err := v4l2.Modes(info.DevicePath, supportedFormats...)
		if err != nil {
			b.logger.Warn("Failed to enumerate modes", "device", info.DevicePath, "error", err)
			continue
		}
		modes[i] = m
	}

	b.infos = infos
	b.modes = modes
	b.initialized = true
	b.logger.Debug("V4L2 devices enumerated", "count", len(infos))
	return nil
}

// Devices implements capture.Backend.
func (b *Backend) Devices() ([]capture.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, capture.ErrNotStarted
	}

	devices := make([]capture.Device, 0, len(b.infos))
	for i, info := range b.infos {
		dev := capture.Device{
			Index:     i,
			Name:      info.DeviceName,
			UniqueID:  info.DeviceID,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			Formats:   make([]capture.Format, 0, len(b.modes[i])),
		}
		if info.VendorID != 0 {
			dev.ModelID = fmt.Sprintf("%04x:%04x", info.VendorID, info.ProductID)
		}
		for f, m := range b.modes[i] {
			dev.Formats = append(dev.Formats, capture.Format{
				Index:     f,
				Width:     m.Width,
				Height:    m.Height,
				FrameRate: m.MaxFPS,
				Type:      m.FormatName(),
			})
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// Open implements capture.Backend.
func (b *Backend) Open(_ context.Context, dev capture.Device, format capture.Format) (capture.Session, error) {
	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return nil, capture.ErrNotStarted
	}
	if dev.Index < 0 || dev.Index >= len(b.infos) {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: index %d", capture.ErrDeviceNotFound, dev.Index)
	}
	info := b.infos[dev.Index]
	modes := b.modes[dev.Index]
	b.mu.Unlock()

	if format.Index < 0 || format.Index >= len(modes) {
		return nil, fmt.Errorf("%w: index %d on %s", capture.ErrFormatNotFound, format.Index, info.DevicePath)
	}

	s, err := b.start(info, modes[format.Index])
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()
	return s, nil
}

// OpenResolution implements capture.Backend.
func (b *Backend) OpenResolution(ctx context.Context, dev capture.Device, width, height uint32) (capture.Session, error) {
	format, err := capture.FormatForResolution(dev.Formats, width, height)
	if err != nil {
		return nil, err
	}
	return b.Open(ctx, dev, format)
}

// Close implements capture.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = nil
	b.initialized = false
	b.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func (b *Backend) start(info v4l2.DeviceInfo, mode v4l2.Mode) (*session, error) {
	cam, err := webcam.Open(info.DevicePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", info.DevicePath, err)
	}

	pf, w, h, err := cam.SetImageFormat(webcam.PixelFormat(mode.PixelFormat), mode.Width, mode.Height)
	if err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("set format %s on %s: %w", mode.FormatName(), info.DevicePath, err)
	}
	if uint32(pf) != mode.PixelFormat {
		_ = cam.Close()
		return nil, fmt.Errorf("%w: driver chose %s instead of %s", capture.ErrFormatNotFound, v4l2.FormatFourCC(uint32(pf)), mode.FormatName())
	}
	if err := cam.SetBufferCount(b.opts.BufferCount); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("set buffer count: %w", err)
	}
	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("start streaming %s: %w", info.DevicePath, err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		cam:         cam,
		logger:      b.logger.With("device", info.DevicePath),
		pixelFormat: mode.PixelFormat,
		width:       int(w),
		height:      int(h),
		latest:      make([]byte, int(w)*int(h)*4),
		presses:     make(chan capture.Press, 16),
		cancel:      cancel,
		readDone:    make(chan struct{}),
	}
	b.logger.Info("Streaming started", "device", info.DevicePath, "format", mode.FormatName(), "width", w, "height", h)

	go s.readLoop()

	if b.opts.Button {
		s.openButton(info)
	}
	if b.opts.Hotplug {
		var buttonPath string
		if s.button != nil {
			buttonPath = s.button.Path()
		}
		lost, err := hotplug.WatchRemoval(sctx, removalNodes(info.DevicePath, buttonPath)...)
		if err != nil {
			b.logger.Warn("Removal detection unavailable", "error", err)
		} else {
			s.lost = lost
		}
	}

	return s, nil
}

// removalNodes names the device nodes whose removal ends the session: the
// video node and, when open, the camera button's event node.
func removalNodes(videoPath, buttonPath string) []string {
	nodes := []string{filepath.Base(videoPath)}
	if buttonPath != "" {
		nodes = append(nodes, filepath.Base(buttonPath))
	}
	return nodes
}

type session struct {
	cam         *webcam.Webcam
	logger      *slog.Logger
	pixelFormat uint32
	width       int
	height      int

	mu       sync.Mutex
	latest   []byte
	hasFrame bool
	frameErr error

	button  *input.Device
	presses chan capture.Press
	lost    <-chan struct{}

	cancel   context.CancelFunc
	stopping sync.Once
	stopped  atomic.Bool
	readDone chan struct{}
	closeErr error
}

// readLoop keeps the latest converted frame.
func (s *session) readLoop() {
	defer close(s.readDone)
	scratch := make([]byte, len(s.latest))

	for !s.stopped.Load() {
		err := s.cam.WaitForFrame(1)
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			continue
		}
		if err != nil {
			s.setFrameErr(err)
			return
		}

		raw, err := s.cam.ReadFrame()
		if err != nil {
			s.setFrameErr(err)
			continue
		}
		if len(raw) == 0 {
			continue
		}

		switch s.pixelFormat {
		case v4l2.PixFmtYUYV:
			stride := 0
			if s.height > 0 && len(raw)%s.height == 0 {
				stride = len(raw) / s.height
			}
			err = yuyvToBGRX(scratch, raw, s.width, s.height, stride)
		case v4l2.PixFmtMJPEG:
			err = mjpegToBGRX(scratch, raw, s.width, s.height)
		default:
			err = fmt.Errorf("unsupported pixel format %s", v4l2.FormatFourCC(s.pixelFormat))
		}
		if err != nil {
			s.setFrameErr(err)
			continue
		}

		s.mu.Lock()
		s.latest, scratch = scratch, s.latest
		s.hasFrame = true
		s.frameErr = nil
		s.mu.Unlock()
	}
}

func (s *session) setFrameErr(err error) {
	s.mu.Lock()
	if s.frameErr == nil {
		s.logger.Debug("Frame read failed", "error", err)
	}
	s.frameErr = err
	s.mu.Unlock()
}

func (s *session) openButton(info v4l2.DeviceInfo) {
	path, err := input.FindForVideo(info.SysfsPath)
	if err != nil {
		s.logger.Debug("No camera button", "error", err)
		return
	}
	dev, err := input.Open(path)
	if err != nil {
		s.logger.Warn("Failed to open camera button", "path", path, "error", err)
		return
	}
	s.button = dev
	s.logger.Info("Camera button found", "path", path)

	go func() {
		for {
			ev, err := dev.Read()
			if err != nil {
				return
			}
			if !ev.IsPress(input.KeyCamera) {
				continue
			}
			select {
			case s.presses <- capture.Press{Timestamp: ev.Timestamp100ns(), At: time.Now()}:
			default:
			}
		}
	}()
}

func (s *session) HasFirstFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasFrame
}

func (s *session) FrameSize() (width, height, stride int) {
	return s.width, s.height, s.width * 4
}

func (s *session) Grab(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasFrame {
		if s.frameErr != nil {
			return fmt.Errorf("%w: %w", capture.ErrNotStarted, s.frameErr)
		}
		return capture.ErrNotStarted
	}
	if len(buf) < len(s.latest) {
		return fmt.Errorf("%w: have %d, need %d", capture.ErrBufferTooSmall, len(buf), len(s.latest))
	}
	copy(buf, s.latest)
	return nil
}

func (s *session) ButtonPressed() (capture.Press, bool) {
	select {
	case p := <-s.presses:
		return p, true
	default:
		return capture.Press{}, false
	}
}

func (s *session) Lost() <-chan struct{} {
	return s.lost
}

func (s *session) Close() error {
	s.stopping.Do(func() {
		s.stopped.Store(true)

		s.cancel()
		if s.button != nil {
			_ = s.button.Close()
		}
		<-s.readDone

		s.closeErr = errors.Join(s.cam.StopStreaming(), s.cam.Close())
	})
	return s.closeErr
}
