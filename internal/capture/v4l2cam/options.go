package v4l2cam

// Options configures the V4L2 backend.
type Options struct {
	// BufferCount is the number of mmap buffers requested from the driver.
	BufferCount uint32
	// Button reads KEY_CAMERA presses from the camera's input node.
	Button bool
	// Hotplug closes Session.Lost when the video node is removed.
	Hotplug bool
}

// DefaultOptions enables the button and removal detection with two buffers.
func DefaultOptions() Options {
	return Options{BufferCount: 2, Button: true, Hotplug: true}
}
