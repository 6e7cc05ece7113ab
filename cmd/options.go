package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/camsnap/internal/button"
	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/logging"
	"github.com/smazurov/camsnap/internal/snapshot"
)

// Options for the CLI - flat structure with toml mapping. Every field is
// also a flag on the root command and a CAMSNAP_* environment variable.
type Options struct {
	Config string `help:"Path to configuration file (.toml, .yaml)" short:"c" default:"camsnap.toml"`

	// Capture settings
	Backend             string `help:"Capture backend: auto, native, v4l2, fake" short:"b" default:"auto" toml:"capture.backend" env:"CAPTURE_BACKEND"`
	DeviceIndex         int    `help:"Device index, -1 for automatic" short:"d" default:"-1" toml:"capture.device_index" env:"CAPTURE_DEVICE_INDEX"`
	DeviceID            string `help:"Device unique id" toml:"capture.device_id" env:"CAPTURE_DEVICE_ID"`
	DeviceName          string `help:"Device friendly name" toml:"capture.device_name" env:"CAPTURE_DEVICE_NAME"`
	Exclude             string `help:"Comma separated device names skipped by automatic selection" default:"fhd webcam" toml:"capture.exclude" env:"CAPTURE_EXCLUDE"`
	FormatIndex         int    `help:"Format index, -1 for automatic" short:"f" default:"-1" toml:"capture.format_index" env:"CAPTURE_FORMAT_INDEX"`
	Width               int    `help:"Requested width, 0 for automatic" toml:"capture.width" env:"CAPTURE_WIDTH"`
	Height              int    `help:"Requested height, 0 for automatic" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	FirstFrameTimeoutMs int    `help:"Give up waiting for the first frame after this many milliseconds, 0 waits forever" toml:"capture.first_frame_timeout_ms" env:"CAPTURE_FIRST_FRAME_TIMEOUT_MS"`
	MaxSnapshots        int    `help:"Exit after this many snapshots, 0 for unlimited" short:"n" toml:"capture.max_snapshots" env:"CAPTURE_MAX_SNAPSHOTS"`

	// Backend specific settings
	Library      string `help:"Path to the libcdshow shared library" toml:"native.library" env:"NATIVE_LIBRARY"`
	LibraryLog   bool   `help:"Enable libcdshow debug output" toml:"native.log" env:"NATIVE_LOG"`
	V4L2Buffers  int    `help:"Number of V4L2 mmap buffers" default:"2" toml:"v4l2.buffers" env:"V4L2_BUFFERS"`
	FakePressMs  int    `help:"Fake backend: press the button every N milliseconds, 0 never" toml:"fake.press_every_ms" env:"FAKE_PRESS_EVERY_MS"`
	FakeFirstMs  int    `help:"Fake backend: delay before the first frame in milliseconds" toml:"fake.first_frame_ms" env:"FAKE_FIRST_FRAME_MS"`

	// Snapshot settings
	Output      string `help:"Directory snapshots are written to" short:"o" default:"." toml:"snapshot.dir" env:"SNAPSHOT_DIR"`
	Pattern     string `help:"File name pattern with one integer verb" default:"frame_%05d.jpg" toml:"snapshot.pattern" env:"SNAPSHOT_PATTERN"`
	JPEGQuality int    `help:"JPEG quality 1..100" short:"q" default:"90" toml:"snapshot.quality" env:"SNAPSHOT_QUALITY"`
	Continue    bool   `help:"Continue numbering after the highest existing file instead of starting at 0" toml:"snapshot.continue" env:"SNAPSHOT_CONTINUE"`
	Rotate      int    `help:"Counter-clockwise rotation: 0, 90, 180, 270" toml:"snapshot.rotate" env:"SNAPSHOT_ROTATE"`
	FlipH       bool   `name:"flip" help:"Mirror snapshots horizontally" toml:"snapshot.flip" env:"SNAPSHOT_FLIP"`
	MaxWidth    int    `help:"Downscale snapshots to fit this width, 0 keeps the size" toml:"snapshot.max_width" env:"SNAPSHOT_MAX_WIDTH"`
	MaxHeight   int    `help:"Downscale snapshots to fit this height, 0 keeps the size" toml:"snapshot.max_height" env:"SNAPSHOT_MAX_HEIGHT"`

	// Extra buttons
	GPIOPin        int    `help:"BCM pin of an extra push button, -1 disables" default:"-1" toml:"button.gpio_pin" env:"BUTTON_GPIO_PIN"`
	GPIOActiveHigh bool   `help:"The GPIO button drives the line high when pressed" toml:"button.gpio_active_high" env:"BUTTON_GPIO_ACTIVE_HIGH"`
	EvdevPath      string `help:"Input device whose KEY_CAMERA presses also trigger snapshots" toml:"button.evdev" env:"BUTTON_EVDEV"`
	DebounceMs     int    `help:"Button debounce time in milliseconds" default:"30" toml:"button.debounce_ms" env:"BUTTON_DEBOUNCE_MS"`

	// API settings
	Listen       string `help:"Serve the status API on this address, empty disables" short:"l" toml:"api.listen" env:"API_LISTEN"`
	AuthUsername string `help:"Basic auth username" toml:"api.username" env:"API_USERNAME"`
	AuthPassword string `help:"Basic auth password" toml:"api.password" env:"API_PASSWORD"`

	// LED settings
	LEDEnabled bool   `help:"Show capture state on a board LED" toml:"led.enabled" env:"LED_ENABLED"`
	LEDName    string `help:"sysfs LED name, empty to detect from the board model" toml:"led.sysfs_name" env:"LED_SYSFS_NAME"`
	LEDType    string `help:"LED type driven by capture state" toml:"led.type" env:"LED_TYPE"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture  string `help:"Capture loop logging level" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingNative   string `help:"libcdshow backend logging level" toml:"logging.native" env:"LOGGING_NATIVE"`
	LoggingV4L2     string `help:"V4L2 backend logging level" toml:"logging.v4l2" env:"LOGGING_V4L2"`
	LoggingButton   string `help:"Button logging level" toml:"logging.button" env:"LOGGING_BUTTON"`
	LoggingSnapshot string `help:"Snapshot writer logging level" toml:"logging.snapshot" env:"LOGGING_SNAPSHOT"`
	LoggingAPI      string `help:"API logging level" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP     string `help:"HTTP access logging level" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingLED      string `help:"LED logging level" toml:"logging.led" env:"LOGGING_LED"`
	LoggingWatcher  string `help:"Config watcher logging level" toml:"logging.config" env:"LOGGING_CONFIG"`
}

// moduleLevels returns the per-module overrides that are set. Modules
// without one follow the global level.
func (o *Options) moduleLevels() map[string]string {
	all := map[string]string{
		"capture":  o.LoggingCapture,
		"native":   o.LoggingNative,
		"v4l2":     o.LoggingV4L2,
		"button":   o.LoggingButton,
		"snapshot": o.LoggingSnapshot,
		"api":      o.LoggingAPI,
		"http":     o.LoggingHTTP,
		"led":      o.LoggingLED,
		"config":   o.LoggingWatcher,
	}
	levels := make(map[string]string)
	for module, level := range all {
		if level != "" {
			levels[module] = level
		}
	}
	return levels
}

// LoggingConfig returns the logging configuration.
func (o *Options) LoggingConfig() logging.Config {
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: o.moduleLevels(),
	}
}

// ApplyLogLevels pushes the logging levels to the running loggers.
func (o *Options) ApplyLogLevels() {
	logging.SetModuleLevel("", o.LoggingLevel)
	for module, level := range o.moduleLevels() {
		logging.SetModuleLevel(module, level)
	}
}

// SnapshotSettings returns the writer settings.
func (o *Options) SnapshotSettings() (snapshot.Settings, error) {
	s := snapshot.Settings{
		Dir:       o.Output,
		Pattern:   o.Pattern,
		Quality:   o.JPEGQuality,
		Overwrite: !o.Continue,
		Transform: snapshot.Transform{
			Rotate:    o.Rotate,
			FlipH:     o.FlipH,
			MaxWidth:  o.MaxWidth,
			MaxHeight: o.MaxHeight,
		},
	}
	if s.Dir == "" {
		s.Dir = "."
	}
	if s.Pattern == "" {
		s.Pattern = snapshot.DefaultPattern
	}
	return s, s.Validate()
}

// CaptureOptions returns device and format selection and loop limits.
func (o *Options) CaptureOptions() (capture.Options, error) {
	if (o.Width > 0) != (o.Height > 0) {
		return capture.Options{}, errors.New("width and height must be given together")
	}
	if o.Width < 0 || o.Height < 0 {
		return capture.Options{}, fmt.Errorf("invalid resolution %dx%d", o.Width, o.Height)
	}
	if o.FirstFrameTimeoutMs < 0 || o.MaxSnapshots < 0 {
		return capture.Options{}, errors.New("timeouts and limits must not be negative")
	}

	opts := capture.DefaultOptions()
	opts.Device = capture.DeviceSelector{
		Index:    normalizeIndex(o.DeviceIndex),
		UniqueID: o.DeviceID,
		Name:     o.DeviceName,
		Exclude:  splitList(o.Exclude),
	}
	opts.Format = capture.FormatSelector{
		Index:  normalizeIndex(o.FormatIndex),
		Width:  uint32(o.Width),
		Height: uint32(o.Height),
	}
	opts.FirstFrameTimeout = time.Duration(o.FirstFrameTimeoutMs) * time.Millisecond
	opts.MaxSnapshots = o.MaxSnapshots
	return opts, nil
}

// GPIOConfig returns the extra GPIO button, if one is configured.
func (o *Options) GPIOConfig() (button.GPIOConfig, bool) {
	if o.GPIOPin < 0 {
		return button.GPIOConfig{}, false
	}
	return button.GPIOConfig{
		Pin:       o.GPIOPin,
		ActiveLow: !o.GPIOActiveHigh,
		PullUp:    !o.GPIOActiveHigh,
		Stable:    o.debounce(),
	}, true
}

func (o *Options) debounce() time.Duration {
	if o.DebounceMs <= 0 {
		return button.DefaultStable
	}
	return time.Duration(o.DebounceMs) * time.Millisecond
}

func normalizeIndex(i int) int {
	if i < 0 {
		return capture.AutoIndex
	}
	return i
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
