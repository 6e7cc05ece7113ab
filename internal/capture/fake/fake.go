// Package fake is a synthetic capture backend. It serves gradient frames and
// scripted button presses, for tests and for trying the tool without a
// camera.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/camsnap/internal/capture"
)

// Name is the backend name.
const Name = "fake"

// DefaultDevices returns a laptop webcam that automatic selection skips and
// a USB document camera.
func DefaultDevices() []capture.Device {
	return []capture.Device{
		{
			Index:    0,
			Name:     "FHD Webcam",
			UniqueID: `\\?\usb#vid_0c45&pid_6366#fake0`,
			Formats: []capture.Format{
				{Index: 0, Width: 640, Height: 480, FrameRate: 30, Type: "YUY2"},
				{Index: 1, Width: 1280, Height: 720, FrameRate: 30, Type: "MJPG"},
			},
		},
		{
			Index:     1,
			Name:      "USB Document Camera",
			UniqueID:  `\\?\usb#vid_1234&pid_5678#fake1`,
			VendorID:  0x1234,
			ProductID: 0x5678,
			Formats: []capture.Format{
				{Index: 0, Width: 640, Height: 480, FrameRate: 30, Type: "YUY2"},
				{Index: 1, Width: 1920, Height: 1080, FrameRate: 5, Type: "YUY2"},
				{Index: 2, Width: 1920, Height: 1080, FrameRate: 30, Type: "MJPG"},
				{Index: 3, Width: 2592, Height: 1944, FrameRate: 15, Type: "MJPG"},
			},
		},
	}
}

// Options tunes the synthetic sessions.
type Options struct {
	// FirstFrameDelay is how long a session waits before its first frame.
	FirstFrameDelay time.Duration
	// PressEvery generates a button press at this interval when non-zero.
	PressEvery time.Duration
	// OnOpen is called with every new session before Open returns.
	OnOpen func(*Session)
}

// Backend is the synthetic backend.
type Backend struct {
	opts    Options
	devices []capture.Device

	mu          sync.Mutex
	initialized bool
	closed      bool
	initErr     error
	openErr     error
	sessions    []*Session
}

// New creates a backend serving the given devices.
func New(devices []capture.Device, opts Options) *Backend {
	return &Backend{devices: devices, opts: opts}
}

// FailInit makes Init return err.
func (b *Backend) FailInit(err error) {
	b.mu.Lock()
	b.initErr = err
	b.mu.Unlock()
}

// FailOpen makes Open and OpenResolution return err.
func (b *Backend) FailOpen(err error) {
	b.mu.Lock()
	b.openErr = err
	b.mu.Unlock()
}

// Name implements capture.Backend.
func (b *Backend) Name() string { return Name }

// Init implements capture.Backend.
func (b *Backend) Init(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initErr != nil {
		return b.initErr
	}
	b.initialized = true
	b.closed = false
	return nil
}

// Devices implements capture.Backend.
func (b *Backend) Devices() ([]capture.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, errors.New("fake: not initialized")
	}
	return b.devices, nil
}

// Open implements capture.Backend.
func (b *Backend) Open(_ context.Context, dev capture.Device, format capture.Format) (capture.Session, error) {
	width, height := int(format.Width), int(format.Height)
	if width == 0 || height == 0 {
		width, height = 640, 480
	}
	return b.newSession(dev, width, height)
}

// OpenResolution implements capture.Backend.
func (b *Backend) OpenResolution(_ context.Context, dev capture.Device, width, height uint32) (capture.Session, error) {
	if _, err := capture.FormatForResolution(dev.Formats, width, height); err != nil {
		return nil, err
	}
	return b.newSession(dev, int(width), int(height))
}

func (b *Backend) newSession(dev capture.Device, width, height int) (*Session, error) {
	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return nil, capture.ErrNotStarted
	}
	if b.openErr != nil {
		err := b.openErr
		b.mu.Unlock()
		return nil, err
	}
	for _, s := range b.sessions {
		if s.device.Index == dev.Index && !s.Stopped() {
			b.mu.Unlock()
			return nil, fmt.Errorf("fake: device %d already started", dev.Index)
		}
	}

	s := &Session{
		device:       dev,
		width:        width,
		height:       height,
		firstFrameAt: time.Now().Add(b.opts.FirstFrameDelay),
		pressEvery:   b.opts.PressEvery,
		lastPress:    time.Now(),
		lost:         make(chan struct{}),
	}
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()

	if b.opts.OnOpen != nil {
		b.opts.OnOpen(s)
	}
	return s, nil
}

// Close implements capture.Backend. It stops every session.
func (b *Backend) Close() error {
	b.mu.Lock()
	sessions := b.sessions
	b.closed = true
	b.initialized = false
	b.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	return nil
}

// Closed reports whether Close was called after the last Init.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Sessions returns every session opened so far.
func (b *Backend) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Session, len(b.sessions))
	copy(out, b.sessions)
	return out
}

// Session is a synthetic capture session.
type Session struct {
	device        capture.Device
	width, height int
	firstFrameAt  time.Time
	pressEvery    time.Duration

	mu        sync.Mutex
	stopped   bool
	frames    int
	grabs     int
	grabErrs  []error
	presses   []capture.Press
	lastPress time.Time
	lost      chan struct{}
	lostOnce  sync.Once
}

// Press queues one button press.
func (s *Session) Press(timestamp uint64) {
	s.mu.Lock()
	s.presses = append(s.presses, capture.Press{Timestamp: timestamp, At: time.Now()})
	s.mu.Unlock()
}

// FailNextGrab makes the next Grab return err. Calls queue up.
func (s *Session) FailNextGrab(err error) {
	s.mu.Lock()
	s.grabErrs = append(s.grabErrs, err)
	s.mu.Unlock()
}

// Lose simulates the device being unplugged.
func (s *Session) Lose() {
	s.lostOnce.Do(func() { close(s.lost) })
}

// Stopped reports whether Close was called.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Grabs returns the number of Grab calls.
func (s *Session) Grabs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grabs
}

// HasFirstFrame implements capture.Session.
func (s *Session) HasFirstFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && !time.Now().Before(s.firstFrameAt)
}

// FrameSize implements capture.Session.
func (s *Session) FrameSize() (width, height, stride int) {
	return s.width, s.height, s.width * 4
}

// Grab implements capture.Session. Frames are a moving BGRX gradient.
func (s *Session) Grab(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grabs++
	if s.stopped {
		return capture.ErrNotStarted
	}
	if len(s.grabErrs) > 0 {
		err := s.grabErrs[0]
		s.grabErrs = s.grabErrs[1:]
		return err
	}
	stride := s.width * 4
	if len(buf) < stride*s.height {
		return fmt.Errorf("%w: have %d, need %d", capture.ErrBufferTooSmall, len(buf), stride*s.height)
	}

	s.frames++
	shift := s.frames * 8
	for y := 0; y < s.height; y++ {
		row := buf[y*stride : y*stride+stride]
		for x := 0; x < s.width; x++ {
			o := x * 4
			row[o+0] = byte((x + shift) * 255 / max(s.width, 1))
			row[o+1] = byte(y * 255 / max(s.height, 1))
			row[o+2] = byte(shift)
			row[o+3] = 0
		}
	}
	return nil
}

// ButtonPressed implements capture.Session.
func (s *Session) ButtonPressed() (capture.Press, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pressEvery > 0 && time.Since(s.lastPress) >= s.pressEvery {
		s.lastPress = time.Now()
		s.presses = append(s.presses, capture.Press{
			Timestamp: uint64(s.lastPress.UnixNano() / 100),
			At:        s.lastPress,
		})
	}
	if len(s.presses) == 0 {
		return capture.Press{}, false
	}
	p := s.presses[0]
	s.presses = s.presses[1:]
	return p, true
}

// Lost implements capture.Session.
func (s *Session) Lost() <-chan struct{} {
	return s.lost
}

// Close implements capture.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}
