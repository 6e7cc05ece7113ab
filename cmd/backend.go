package cmd

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/capture/fake"
	"github.com/smazurov/camsnap/internal/capture/native"
	"github.com/smazurov/camsnap/internal/capture/v4l2cam"
	"github.com/smazurov/camsnap/pkg/cds"
)

// backendFactory builds a backend. The returned release func frees what
// the backend itself does not own, such as the loaded library.
type backendFactory func(o *Options) (capture.Backend, func() error, error)

var backends = map[string]backendFactory{
	native.Name:  newNativeBackend,
	v4l2cam.Name: newV4L2Backend,
	fake.Name:    newFakeBackend,
}

// BackendNames lists the accepted --backend values.
func BackendNames() []string {
	names := []string{"auto"}
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names[1:])
	return names
}

// resolveBackend maps "auto" to the platform default.
func resolveBackend(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "auto" {
		if runtime.GOOS == "linux" {
			return v4l2cam.Name
		}
		return native.Name
	}
	return name
}

// OpenBackend creates the configured backend. Call release after the
// backend has been closed.
func OpenBackend(o *Options) (backend capture.Backend, release func() error, err error) {
	name := resolveBackend(o.Backend)
	factory, ok := backends[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown backend %q, want one of %s", o.Backend, strings.Join(BackendNames(), ", "))
	}
	backend, release, err = factory(o)
	if err != nil {
		return nil, nil, fmt.Errorf("%s backend: %w", name, err)
	}
	if release == nil {
		release = func() error { return nil }
	}
	return backend, release, nil
}

func newNativeBackend(o *Options) (capture.Backend, func() error, error) {
	lib, err := cds.Open(o.Library)
	if err != nil {
		return nil, nil, err
	}
	return native.New(lib, o.LibraryLog), lib.Close, nil
}

func newV4L2Backend(o *Options) (capture.Backend, func() error, error) {
	opts := v4l2cam.DefaultOptions()
	if o.V4L2Buffers > 0 {
		opts.BufferCount = uint32(o.V4L2Buffers)
	}
	return v4l2cam.New(opts), nil, nil
}

func newFakeBackend(o *Options) (capture.Backend, func() error, error) {
	return fake.New(fake.DefaultDevices(), fake.Options{
		FirstFrameDelay: time.Duration(o.FakeFirstMs) * time.Millisecond,
		PressEvery:      time.Duration(o.FakePressMs) * time.Millisecond,
	}), nil, nil
}
