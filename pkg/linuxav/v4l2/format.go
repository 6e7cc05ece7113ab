//go:build linux

package v4l2

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Modes returns the capture modes of a device restricted to the given pixel
// formats (all formats when none are given). Each resolution is reported once
// per format at its highest frame rate; the result is deduplicated and sorted
// by width, height, fps, then format name.
func Modes(devicePath string, pixelFormats ...uint32) ([]Mode, error) {
	fd, err := openDevice(devicePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", devicePath, err)
	}
	defer closeDevice(fd)

	formats, err := enumFormats(fd)
	if err != nil {
		return nil, err
	}

	var modes []Mode
	for _, f := range formats {
		if len(pixelFormats) > 0 && !slices.Contains(pixelFormats, f.PixelFormat) {
			continue
		}

		resolutions, err := enumResolutions(fd, f.PixelFormat)
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", FormatFourCC(f.PixelFormat), err)
		}

		for _, res := range resolutions {
			framerates, err := enumFramerates(fd, f.PixelFormat, res.Width, res.Height)
			if err != nil {
				return nil, fmt.Errorf("format %s %dx%d: %w", FormatFourCC(f.PixelFormat), res.Width, res.Height, err)
			}
			modes = append(modes, Mode{
				PixelFormat: f.PixelFormat,
				Width:       res.Width,
				Height:      res.Height,
				MaxFPS:      maxFPS(framerates),
			})
		}
	}

	return SortModes(modes), nil
}

// SortModes deduplicates modes by (width, height, fps, format) and sorts them.
// The input slice is reused.
func SortModes(modes []Mode) []Mode {
	slices.SortFunc(modes, func(a, b Mode) int {
		return cmp.Or(
			cmp.Compare(a.Width, b.Width),
			cmp.Compare(a.Height, b.Height),
			cmp.Compare(a.MaxFPS, b.MaxFPS),
			cmp.Compare(a.FormatName(), b.FormatName()),
		)
	})
	return slices.Compact(modes)
}

// maxFPS returns the highest rounded framerate, 0 when none is known.
func maxFPS(framerates []Framerate) uint32 {
	var best uint32
	for _, fr := range framerates {
		if fps := uint32(math.Round(fr.FPS())); fps > best {
			best = fps
		}
	}
	return best
}

func enumFormats(fd int) ([]FormatInfo, error) {
	var formats []FormatInfo

	for i := uint32(0); ; i++ {
		fmtdesc := v4l2Fmtdesc{
			index: i,
			typ:   v4l2BufTypeVideoCapture,
		}

		if ioctlErr := ioctl(fd, vidiocEnumFmt, unsafe.Pointer(&fmtdesc)); ioctlErr != nil {
			if errors.Is(ioctlErr, unix.EINVAL) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, ioctlErr)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: fmtdesc.pixelformat,
			FormatName:  cstr(fmtdesc.description[:]),
			Emulated:    fmtdesc.flags&v4l2FmtFlagEmulated != 0,
		})
	}

	return formats, nil
}

func enumResolutions(fd int, pixelFormat uint32) ([]Resolution, error) {
	var resolutions []Resolution

	for i := uint32(0); ; i++ {
		frmsize := v4l2Frmsizeenum{
			index:       i,
			pixelFormat: pixelFormat,
		}

		if ioctlErr := ioctl(fd, vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); ioctlErr != nil {
			if errors.Is(ioctlErr, unix.EINVAL) {
				break // End of enumeration
			}
			// ENOTTY means device doesn't support frame size enumeration
			if errors.Is(ioctlErr, unix.ENOTTY) {
				return []Resolution{}, nil
			}
			return nil, fmt.Errorf("failed to enumerate frame size %d: %w", i, ioctlErr)
		}

		switch frmsize.typ {
		case v4l2FrmsizeTypeDiscrete:
			resolutions = append(resolutions, Resolution{
				Width:  frmsize.discrete.width,
				Height: frmsize.discrete.height,
			})
		case v4l2FrmsizeTypeContinuous, v4l2FrmsizeTypeStepwise:
			stepwise := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&frmsize.discrete))
			return append(resolutions, stepwiseResolutions(stepwise)...), nil
		}
	}

	return resolutions, nil
}

func enumFramerates(fd int, pixelFormat uint32, width, height uint32) ([]Framerate, error) {
	var framerates []Framerate

	for i := uint32(0); ; i++ {
		frmival := v4l2Frmivalenum{
			index:       i,
			pixelFormat: pixelFormat,
			width:       width,
			height:      height,
		}

		if ioctlErr := ioctl(fd, vidiocEnumFrameintervals, unsafe.Pointer(&frmival)); ioctlErr != nil {
			if errors.Is(ioctlErr, unix.EINVAL) || errors.Is(ioctlErr, unix.ENOTTY) {
				break
			}
			return nil, fmt.Errorf("failed to enumerate frame interval %d: %w", i, ioctlErr)
		}

		switch frmival.typ {
		case v4l2FrmivalTypeDiscrete:
			framerates = append(framerates, Framerate{
				Numerator:   frmival.discrete.numerator,
				Denominator: frmival.discrete.denominator,
			})
		case v4l2FrmivalTypeContinuous, v4l2FrmivalTypeStepwise:
			// min interval is the first fract of the stepwise union
			return append(framerates, Framerate{
				Numerator:   frmival.discrete.numerator,
				Denominator: frmival.discrete.denominator,
			}), nil
		}
	}

	return framerates, nil
}

// commonResolutions are probed for devices reporting stepwise frame sizes.
var commonResolutions = [][2]uint32{
	{320, 240},
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 720},
	{1280, 960},
	{1280, 1024},
	{1920, 1080},
	{1920, 1200},
	{2560, 1440},
	{3840, 2160},
	{4096, 2160},
}

func stepwiseResolutions(stepwise *v4l2FrmsizeStepwise) []Resolution {
	var resolutions []Resolution
	for _, res := range commonResolutions {
		w, h := res[0], res[1]
		if w >= stepwise.minWidth && w <= stepwise.maxWidth &&
			h >= stepwise.minHeight && h <= stepwise.maxHeight {
			resolutions = append(resolutions, Resolution{Width: w, Height: h})
		}
	}
	return resolutions
}

// SubtypeName maps a V4L2 pixel format to the subtype names used by the
// Windows capture library ("YUY2", "MJPG", ...). Unknown formats return
// their FourCC.
func SubtypeName(pixelFormat uint32) string {
	switch pixelFormat {
	case PixFmtYUYV:
		return "YUY2"
	case PixFmtMJPEG:
		return "MJPG"
	case PixFmtNV12:
		return "NV12"
	case PixFmtRGB24:
		return "RGB24"
	case PixFmtBGR32:
		return "RGB32"
	default:
		return FormatFourCC(pixelFormat)
	}
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}
