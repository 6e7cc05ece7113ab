//go:build linux

// Package hotplug watches kernel uevents over netlink without cgo.
//
// The capture backend uses it to notice when the streaming camera (or its
// button input node) is unplugged:
//
//	gone, err := hotplug.WatchRemoval(ctx, "video0")
//	...
//	select {
//	case <-gone:
//	    // device lost
//	}
package hotplug

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Actions reported by the kernel.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// Subsystems relevant to cameras.
const (
	SubsystemVideo4Linux = "video4linux"
	SubsystemInput       = "input"
	SubsystemUSB         = "usb"
)

// Event is one parsed kernel uevent.
type Event struct {
	Action    string
	KObj      string // /devices/pci0000:00/...
	Subsystem string
	DevType   string
	DevName   string // "video0", "input/event5"
	DevPath   string
	Env       map[string]string
}

// Removes reports whether the event is the removal of the named device node.
// devName may be given with or without the /dev/ prefix.
func (e Event) Removes(devName string) bool {
	if e.Action != ActionRemove || e.DevName == "" {
		return false
	}
	devName = strings.TrimPrefix(devName, "/dev/")
	return e.DevName == devName || path.Base(e.DevName) == devName
}

// Monitor receives uevents from the kernel broadcast group.
type Monitor struct {
	fd        int
	closeOnce sync.Once

	filtersMu sync.RWMutex
	filters   map[string]struct{}
}

// NewMonitor opens a netlink socket. Only events from the given subsystems
// are delivered; with none given every event passes.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, err
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: 1, // kernel broadcast group
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	// Receive timeout lets Run notice context cancellation.
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	m := &Monitor{fd: fd, filters: make(map[string]struct{})}
	for _, s := range subsystems {
		m.AddSubsystemFilter(s)
	}
	return m, nil
}

// AddSubsystemFilter adds a subsystem to the delivered set. Safe for
// concurrent use.
func (m *Monitor) AddSubsystemFilter(subsystem string) {
	m.filtersMu.Lock()
	m.filters[subsystem] = struct{}{}
	m.filtersMu.Unlock()
}

func (m *Monitor) accepts(subsystem string) bool {
	m.filtersMu.RLock()
	defer m.filtersMu.RUnlock()
	if len(m.filters) == 0 {
		return true
	}
	_, ok := m.filters[subsystem]
	return ok
}

// Close releases the socket. Calling it more than once is harmless.
func (m *Monitor) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = unix.Close(m.fd)
	})
	return err
}

// Run delivers events until ctx is cancelled or the socket fails. The events
// channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	buf := make([]byte, 8192)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := unix.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}

		event := ParseUEvent(buf[:n])
		if event == nil || !m.accepts(event.Subsystem) {
			continue
		}

		select {
		case events <- *event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WatchRemoval returns a channel that is closed once any of the named device
// nodes is removed. The watch ends with ctx.
func WatchRemoval(ctx context.Context, devNames ...string) (<-chan struct{}, error) {
	m, err := NewMonitor(SubsystemVideo4Linux, SubsystemInput)
	if err != nil {
		return nil, err
	}

	gone := make(chan struct{})
	events := make(chan Event, 16)

	go func() {
		defer func() { _ = m.Close() }()
		_ = m.Run(ctx, events)
	}()

	go func() {
		for ev := range events {
			for _, name := range devNames {
				if ev.Removes(name) {
					close(gone)
					// drain until Run exits
					for range events {
					}
					return
				}
			}
		}
	}()

	return gone, nil
}

// ParseUEvent parses a kernel uevent datagram, "ACTION@KOBJ" followed by
// NUL separated KEY=VALUE pairs. It returns nil for anything else. A
// leading libudev header is skipped.
func ParseUEvent(data []byte) *Event {
	if bytes.HasPrefix(data, []byte("libudev")) {
		data = skipUdevHeader(data)
	}

	head, rest, _ := bytes.Cut(data, []byte{0})
	action, kobj, ok := strings.Cut(string(head), "@")
	if !ok || action == "" {
		return nil
	}

	ev := &Event{Action: action, KObj: kobj, Env: map[string]string{}}
	for field := range bytes.SplitSeq(rest, []byte{0}) {
		key, value, ok := strings.Cut(string(field), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVTYPE":
			ev.DevType = value
		case "DEVNAME":
			ev.DevName = value
		case "DEVPATH":
			ev.DevPath = value
		}
	}
	return ev
}

// skipUdevHeader returns data from the first NUL terminated segment that
// looks like "action@path".
func skipUdevHeader(data []byte) []byte {
	for i, b := range data {
		if b != 0 {
			continue
		}
		next := data[i+1:]
		seg, _, _ := bytes.Cut(next, []byte{0})
		if at := bytes.IndexByte(seg, '@'); at > 0 && at < 20 {
			return next
		}
	}
	return data
}
