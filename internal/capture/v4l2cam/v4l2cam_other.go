//go:build !linux

// Package v4l2cam is the Linux capture backend. On other systems every
// operation fails with ErrUnsupported.
package v4l2cam

import (
	"context"
	"errors"

	"github.com/smazurov/camsnap/internal/capture"
)

// Name is the backend name.
const Name = "v4l2"

// ErrUnsupported is returned on systems without V4L2.
var ErrUnsupported = errors.New("v4l2 backend is only available on linux")

// Backend is a placeholder that always fails.
type Backend struct{}

// New creates the backend.
func New(Options) *Backend { return &Backend{} }

// Name implements capture.Backend.
func (b *Backend) Name() string { return Name }

// Init implements capture.Backend.
func (b *Backend) Init(context.Context) error { return ErrUnsupported }

// Devices implements capture.Backend.
func (b *Backend) Devices() ([]capture.Device, error) { return nil, ErrUnsupported }

// Open implements capture.Backend.
func (b *Backend) Open(context.Context, capture.Device, capture.Format) (capture.Session, error) {
	return nil, ErrUnsupported
}

// OpenResolution implements capture.Backend.
func (b *Backend) OpenResolution(context.Context, capture.Device, uint32, uint32) (capture.Session, error) {
	return nil, ErrUnsupported
}

// Close implements capture.Backend.
func (b *Backend) Close() error { return nil }
