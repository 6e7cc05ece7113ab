package capture

import (
	"fmt"
	"slices"
	"strings"
)

// AutoIndex selects a device or format automatically.
const AutoIndex = -1

// DefaultExcludedName is skipped during automatic device selection; it is
// the built-in laptop camera on the reference hardware.
const DefaultExcludedName = "fhd webcam"

// DeviceSelector chooses which device to open.
type DeviceSelector struct {
	Index    int // AutoIndex for automatic
	UniqueID string
	Name     string
	// Exclude lists names skipped by automatic selection (trimmed,
	// case-insensitive).
	Exclude []string
}

// DefaultDeviceSelector picks automatically and skips DefaultExcludedName.
func DefaultDeviceSelector() DeviceSelector {
	return DeviceSelector{Index: AutoIndex, Exclude: []string{DefaultExcludedName}}
}

// Pick returns the selected device. Explicit index, unique id and name are
// tried in that order; otherwise the first non-excluded device wins, falling
// back to the first device.
func (s DeviceSelector) Pick(devices []Device) (Device, error) {
	if len(devices) == 0 {
		return Device{}, ErrNoDevices
	}

	if s.Index >= 0 {
		if s.Index >= len(devices) {
			return Device{}, fmt.Errorf("%w: index %d of %d", ErrDeviceNotFound, s.Index, len(devices))
		}
		return devices[s.Index], nil
	}

	if s.UniqueID != "" {
		for _, d := range devices {
			if d.UniqueID == s.UniqueID {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("%w: unique id %q", ErrDeviceNotFound, s.UniqueID)
	}

	if s.Name != "" {
		want := normalizeName(s.Name)
		for _, d := range devices {
			if normalizeName(d.Name) == want {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("%w: name %q", ErrDeviceNotFound, s.Name)
	}

	excluded := make([]string, 0, len(s.Exclude))
	for _, name := range s.Exclude {
		excluded = append(excluded, normalizeName(name))
	}
	for _, d := range devices {
		if !slices.Contains(excluded, normalizeName(d.Name)) {
			return d, nil
		}
	}
	return devices[0], nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FormatSelector chooses the capture format.
type FormatSelector struct {
	Index  int // AutoIndex for automatic
	Width  uint32
	Height uint32
}

// HasResolution reports whether an explicit resolution was requested.
func (s FormatSelector) HasResolution() bool {
	return s.Width > 0 && s.Height > 0
}

// Pick resolves the selector against a device's formats.
func (s FormatSelector) Pick(formats []Format) (Format, error) {
	if s.Index >= 0 {
		for _, f := range formats {
			if f.Index == s.Index {
				return f, nil
			}
		}
		return Format{}, fmt.Errorf("%w: index %d", ErrFormatNotFound, s.Index)
	}
	if s.HasResolution() {
		return FormatForResolution(formats, s.Width, s.Height)
	}
	if f, ok := BestFormat(formats); ok {
		return f, nil
	}
	return Format{}, ErrNoFormats
}

// BestFormat returns the format with the most pixels, preferring the higher
// frame rate on equal pixel counts. The first format wins a full tie.
func BestFormat(formats []Format) (Format, bool) {
	if len(formats) == 0 {
		return Format{}, false
	}
	best := formats[0]
	for _, f := range formats[1:] {
		if f.Pixels() > best.Pixels() ||
			(f.Pixels() == best.Pixels() && f.FrameRate > best.FrameRate) {
			best = f
		}
	}
	return best, true
}

// SubtypePriority ranks subtypes for a fixed resolution: uncompressed RGB
// first, then NV12, YUY2, MJPG.
func SubtypePriority(subtype string) int {
	switch strings.ToUpper(subtype) {
	case "RGB24", "RGB32":
		return 4
	case "NV12":
		return 3
	case "YUY2":
		return 2
	case "MJPG":
		return 1
	default:
		return 0
	}
}

// FormatForResolution picks among formats of exactly width x height the one
// with the highest subtype priority, then the highest frame rate.
func FormatForResolution(formats []Format, width, height uint32) (Format, error) {
	var (
		best  Format
		found bool
	)
	for _, f := range formats {
		if f.Width != width || f.Height != height {
			continue
		}
		if !found {
			best, found = f, true
			continue
		}
		fp, bp := SubtypePriority(f.Type), SubtypePriority(best.Type)
		if fp > bp || (fp == bp && f.FrameRate > best.FrameRate) {
			best = f
		}
	}
	if !found {
		return Format{}, fmt.Errorf("%w: %dx%d", ErrFormatNotFound, width, height)
	}
	return best, nil
}
