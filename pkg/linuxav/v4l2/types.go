//go:build linux

package v4l2

// DeviceInfo describes one streaming capture node.
type DeviceInfo struct {
	DevicePath string // /dev/videoN
	DeviceName string // card name reported by the driver
	DeviceID   string // udev by-id link name, or one built from bus info
	BusInfo    string
	Driver     string
	VendorID   int // USB idVendor, 0 when not on USB
	ProductID  int
	SysfsPath  string
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a supported frame interval as a fraction.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Mode is one capture mode: a resolution in a pixel format at its maximum
// frame rate.
type Mode struct {
	PixelFormat uint32
	Width       uint32
	Height      uint32
	MaxFPS      uint32
}

// FormatName returns the short subtype name used across backends.
func (m Mode) FormatName() string {
	return SubtypeName(m.PixelFormat)
}

// Capability flags.
const (
	v4l2CapVideoCapture = 0x00000001
	v4l2CapStreaming    = 0x04000000
	v4l2CapDeviceCaps   = 0x80000000
)

// Format flags.
const (
	v4l2FmtFlagEmulated = 0x0002
)

// Pixel formats understood by the capture backend.
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtMJPEG = 0x47504A4D // 'MJPG'
	PixFmtNV12  = 0x3231564E // 'NV12'
	PixFmtRGB24 = 0x33424752 // 'RGB3'
	PixFmtBGR32 = 0x34524742 // 'BGR4'
)

// Frame size types.
const (
	v4l2FrmsizeTypeDiscrete   = 1
	v4l2FrmsizeTypeContinuous = 2
	v4l2FrmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	v4l2FrmivalTypeDiscrete   = 1
	v4l2FrmivalTypeContinuous = 2
	v4l2FrmivalTypeStepwise   = 3
)

// Buffer type.
const (
	v4l2BufTypeVideoCapture = 1
)
