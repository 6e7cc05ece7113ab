package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/camsnap/internal/events"
	"github.com/smazurov/camsnap/internal/logging"
	"github.com/smazurov/camsnap/internal/metrics"
	"github.com/smazurov/camsnap/internal/snapshot"
)

// Poll intervals of the run loop.
const (
	DefaultFirstFramePoll = 50 * time.Millisecond
	DefaultButtonPoll     = 10 * time.Millisecond
	DefaultGrabRetryDelay = 100 * time.Millisecond
)

// Options controls device selection and loop timing.
type Options struct {
	Device DeviceSelector
	Format FormatSelector

	// FirstFrameTimeout bounds the wait for the first frame; 0 waits forever.
	FirstFrameTimeout time.Duration
	FirstFramePoll    time.Duration
	ButtonPoll        time.Duration
	GrabRetryDelay    time.Duration

	// MaxSnapshots ends the loop after that many saved files; 0 is unlimited.
	MaxSnapshots int

	// Buttons are polled in addition to the camera's own button.
	Buttons []ButtonSource
}

// DefaultOptions returns automatic selection with the standard poll rates.
func DefaultOptions() Options {
	return Options{
		Device:         DefaultDeviceSelector(),
		Format:         FormatSelector{Index: AutoIndex},
		FirstFramePoll: DefaultFirstFramePoll,
		ButtonPoll:     DefaultButtonPoll,
		GrabRetryDelay: DefaultGrabRetryDelay,
	}
}

// Saver writes grabbed frames. *snapshot.Writer implements it.
type Saver interface {
	Save(frame snapshot.Frame) (snapshot.Result, error)
}

// State is the run loop phase.
type State string

// Run loop phases.
const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateWaiting   State = "waiting_first_frame"
	StateStreaming State = "streaming"
	StateStopped   State = "stopped"
)

// Status is a snapshot of the run loop for the API.
type Status struct {
	State     State     `json:"state" example:"streaming"`
	SessionID string    `json:"session_id,omitempty"`
	Backend   string    `json:"backend" example:"native"`
	Device    *Device   `json:"device,omitempty"`
	Format    *Format   `json:"format,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Snapshots int       `json:"snapshots" doc:"Snapshots saved in this session"`
	StartedAt time.Time `json:"started_at,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Runner owns one backend and runs capture sessions on it.
type Runner struct {
	backend Backend
	saver   Saver
	bus     *events.Bus
	opts    Options
	logger  *slog.Logger

	mu      sync.RWMutex
	status  Status
	devices []Device
}

// NewRunner creates a runner. bus may be nil.
func NewRunner(backend Backend, saver Saver, bus *events.Bus, opts Options) *Runner {
	defaults := DefaultOptions()
	if opts.FirstFramePoll <= 0 {
		opts.FirstFramePoll = defaults.FirstFramePoll
	}
	if opts.ButtonPoll <= 0 {
		opts.ButtonPoll = defaults.ButtonPoll
	}
	if opts.GrabRetryDelay <= 0 {
		opts.GrabRetryDelay = defaults.GrabRetryDelay
	}

	return &Runner{
		backend: backend,
		saver:   saver,
		bus:     bus,
		opts:    opts,
		logger:  logging.GetLogger("capture"),
		status:  Status{State: StateIdle, Backend: backend.Name()},
	}
}

// Status returns the current run loop state.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) setStatus(update func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(&r.status)
}

// Devices initializes the backend and returns its devices.
func (r *Runner) Devices(ctx context.Context) ([]Device, error) {
	if err := r.backend.Init(ctx); err != nil {
		return nil, fmt.Errorf("initialize %s backend: %w", r.backend.Name(), err)
	}
	devices, err := r.backend.Devices()
	if err == nil {
		r.rememberDevices(devices)
	}
	return devices, err
}

// EnumeratedDevices returns the device list seen by the last start or
// Devices call without touching the backend.
func (r *Runner) EnumeratedDevices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.devices)
}

func (r *Runner) rememberDevices(devices []Device) {
	r.mu.Lock()
	r.devices = slices.Clone(devices)
	r.mu.Unlock()
}

// active is a started session with its frame buffer.
type active struct {
	id      string
	device  Device
	format  Format
	session Session
	frame   snapshot.Frame
}

// start runs init, pick, open and first-frame wait. On error everything
// already acquired is released.
func (r *Runner) start(ctx context.Context) (*active, error) {
	r.setStatus(func(s *Status) {
		*s = Status{State: StateStarting, Backend: r.backend.Name()}
	})

	if err := r.backend.Init(ctx); err != nil {
		r.logger.Error("Capture API initialize failed", "backend", r.backend.Name(), "error", err)
		return nil, fmt.Errorf("initialize %s backend: %w", r.backend.Name(), err)
	}

	devices, err := r.backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	r.rememberDevices(devices)

	dev, err := r.opts.Device.Pick(devices)
	if err != nil {
		if errors.Is(err, ErrNoDevices) {
			r.logger.Error("No camera found", "backend", r.backend.Name())
		}
		return nil, err
	}
	r.logger.Info("Using device", "index", dev.Index, "name", dev.Name, "unique_id", dev.UniqueID, "formats", len(dev.Formats))

	session, format, err := r.open(ctx, dev)
	if err != nil {
		r.logger.Error("Failed to start capture", "device", dev.Name, "error", err)
		return nil, err
	}

	a := &active{id: uuid.NewString(), device: dev, format: format, session: session}
	r.setStatus(func(s *Status) {
		s.State = StateWaiting
		s.SessionID = a.id
		s.Device = &dev
		s.Format = &format
	})

	if err := r.waitFirstFrame(ctx, session); err != nil {
		r.closeSession(a)
		return nil, err
	}

	width, height, stride := session.FrameSize()
	if stride < width*4 {
		stride = width * 4
	}
	a.frame = snapshot.Frame{
		Pix:    make([]byte, stride*height),
		Width:  width,
		Height: height,
		Stride: stride,
	}

	r.logger.Info("Streaming", "width", width, "height", height, "stride", stride, "format", format.Type)
	metrics.SetStreaming(true, width, height)
	r.setStatus(func(s *Status) {
		s.State = StateStreaming
		s.Width = width
		s.Height = height
		s.StartedAt = time.Now()
	})
	r.bus.Publish(events.SessionStartedEvent{
		SessionID:  a.id,
		Backend:    r.backend.Name(),
		DeviceName: dev.Name,
		DeviceID:   dev.UniqueID,
		Format:     format.Type,
		Width:      width,
		Height:     height,
		Timestamp:  now(),
	})

	return a, nil
}

// open resolves the format selector and starts capture. A device without
// formats gets format 0 and the backend decides.
func (r *Runner) open(ctx context.Context, dev Device) (Session, Format, error) {
	sel := r.opts.Format

	if sel.HasResolution() && sel.Index < 0 {
		format, err := FormatForResolution(dev.Formats, sel.Width, sel.Height)
		if err != nil && len(dev.Formats) > 0 {
			return nil, Format{}, err
		}
		if err != nil {
			format = Format{Width: sel.Width, Height: sel.Height}
		}
		r.logger.Info("Starting capture", "width", sel.Width, "height", sel.Height, "format", format.String())
		session, err := r.backend.OpenResolution(ctx, dev, sel.Width, sel.Height)
		return session, format, err
	}

	format, err := sel.Pick(dev.Formats)
	if errors.Is(err, ErrNoFormats) {
		format = Format{Index: 0}
	} else if err != nil {
		return nil, Format{}, err
	}

	r.logger.Info("Starting capture", "format_index", format.Index, "format", format.String())
	session, err := r.backend.Open(ctx, dev, format)
	return session, format, err
}

func (r *Runner) waitFirstFrame(ctx context.Context, session Session) error {
	if session.HasFirstFrame() {
		return nil
	}

	var deadline <-chan time.Time
	if r.opts.FirstFrameTimeout > 0 {
		timer := time.NewTimer(r.opts.FirstFrameTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	r.logger.Debug("Waiting for first frame")
	ticker := time.NewTicker(r.opts.FirstFramePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w after %s", ErrFirstFrameTimeout, r.opts.FirstFrameTimeout)
		case <-session.Lost():
			return ErrDeviceLost
		case <-ticker.C:
			if session.HasFirstFrame() {
				return nil
			}
		}
	}
}

func (r *Runner) closeSession(a *active) {
	if err := a.session.Close(); err != nil {
		r.logger.Warn("Stop capture failed", "error", err)
	}
	metrics.SetStreaming(false, 0, 0)
}

func (r *Runner) shutdown() {
	if err := r.backend.Close(); err != nil {
		r.logger.Warn("Backend shutdown failed", "backend", r.backend.Name(), "error", err)
	}
}

// Run streams from the selected device and saves one snapshot per button
// press until ctx is cancelled, the device is lost, or MaxSnapshots is
// reached. Capture is always stopped and the backend shut down. A cancelled
// context is a clean exit and returns nil.
func (r *Runner) Run(ctx context.Context) (err error) {
	defer r.shutdown()

	a, err := r.start(ctx)
	if err != nil {
		r.finish(nil, 0, err)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	}

	saved := 0
	defer func() {
		r.closeSession(a)
		r.finish(a, saved, err)
	}()

	sources := append([]ButtonSource{sessionButton{a.session}}, r.opts.Buttons...)

	ticker := time.NewTicker(r.opts.ButtonPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping capture", "reason", ctx.Err())
			return nil
		case <-a.session.Lost():
			r.logger.Error("Device lost", "device", a.device.Name)
			r.bus.Publish(events.DeviceLostEvent{SessionID: a.id, DeviceName: a.device.Name, Timestamp: now()})
			return ErrDeviceLost
		case <-ticker.C:
		}

		for _, src := range sources {
			press, ok := src.Poll()
			if !ok {
				continue
			}
			if r.handlePress(ctx, a, press) {
				saved++
				r.setStatus(func(s *Status) { s.Snapshots = saved })
				if r.opts.MaxSnapshots > 0 && saved >= r.opts.MaxSnapshots {
					r.logger.Info("Snapshot limit reached", "count", saved)
					return nil
				}
			}
		}
	}
}

// handlePress grabs and saves one frame. It reports whether a file was written.
func (r *Runner) handlePress(ctx context.Context, a *active, press Press) bool {
	r.logger.Info("Button pressed", "source", press.Source, "timestamp_100ns", press.Timestamp)
	metrics.RecordButtonPress(press.Source)
	r.bus.Publish(events.ButtonPressedEvent{
		SessionID:       a.id,
		Source:          press.Source,
		DeviceTimestamp: press.Timestamp,
		Timestamp:       press.At.Format(time.RFC3339Nano),
	})

	if err := a.session.Grab(a.frame.Pix); err != nil {
		r.logger.Error("Grab frame failed", "error", err)
		metrics.RecordGrabError()
		r.publishFailure(a, "grab", err)
		sleepCtx(ctx, r.opts.GrabRetryDelay)
		return false
	}

	res, err := r.saver.Save(a.frame)
	if err != nil {
		r.logger.Error("Save snapshot failed", "error", err)
		metrics.RecordEncodeError()
		r.publishFailure(a, "encode", err)
		return false
	}

	r.logger.Info("Saved", "path", res.Path, "sequence", res.Sequence, "bytes", res.Bytes, "took", res.Took)
	metrics.RecordSnapshot(res.Took)
	r.bus.Publish(events.SnapshotSavedEvent{
		SessionID: a.id,
		Path:      res.Path,
		Sequence:  res.Sequence,
		Width:     res.Width,
		Height:    res.Height,
		Bytes:     res.Bytes,
		Timestamp: now(),
	})
	return true
}

func (r *Runner) publishFailure(a *active, stage string, err error) {
	r.setStatus(func(s *Status) { s.LastError = err.Error() })
	r.bus.Publish(events.SnapshotFailedEvent{
		SessionID: a.id,
		Stage:     stage,
		Error:     err.Error(),
		Timestamp: now(),
	})
}

func (r *Runner) finish(a *active, saved int, err error) {
	reason := "stopped"
	if err != nil {
		reason = err.Error()
	}
	r.setStatus(func(s *Status) {
		s.State = StateStopped
		if err != nil {
			s.LastError = err.Error()
		}
	})
	if a == nil {
		return
	}
	r.bus.Publish(events.SessionStoppedEvent{
		SessionID: a.id,
		Snapshots: saved,
		Reason:    reason,
		Timestamp: now(),
	})
}

// Snap opens the selected device, waits for the first frame, saves one
// snapshot and stops.
func (r *Runner) Snap(ctx context.Context) (res snapshot.Result, err error) {
	defer r.shutdown()

	a, err := r.start(ctx)
	if err != nil {
		r.finish(nil, 0, err)
		return snapshot.Result{}, err
	}
	defer func() {
		r.closeSession(a)
		saved := 0
		if err == nil {
			saved = 1
		}
		r.finish(a, saved, err)
	}()

	if err := a.session.Grab(a.frame.Pix); err != nil {
		metrics.RecordGrabError()
		r.publishFailure(a, "grab", err)
		return snapshot.Result{}, fmt.Errorf("grab frame: %w", err)
	}

	res, err = r.saver.Save(a.frame)
	if err != nil {
		metrics.RecordEncodeError()
		r.publishFailure(a, "encode", err)
		return snapshot.Result{}, fmt.Errorf("save snapshot: %w", err)
	}

	metrics.RecordSnapshot(res.Took)
	r.bus.Publish(events.SnapshotSavedEvent{
		SessionID: a.id,
		Path:      res.Path,
		Sequence:  res.Sequence,
		Width:     res.Width,
		Height:    res.Height,
		Bytes:     res.Bytes,
		Timestamp: now(),
	})
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
