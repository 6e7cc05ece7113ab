//go:build linux

package button

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/logging"
	"github.com/smazurov/camsnap/pkg/linuxav/input"
)

// Evdev reports key presses from a Linux input node, by default KEY_CAMERA.
type Evdev struct {
	dev     *input.Device
	code    uint16
	presses chan capture.Press
	logger  *slog.Logger
}

// OpenEvdev opens path and starts reading key events. code 0 means
// input.KeyCamera.
func OpenEvdev(path string, code uint16) (*Evdev, error) {
	if code == 0 {
		code = input.KeyCamera
	}
	dev, err := input.Open(path)
	if err != nil {
		return nil, err
	}
	e := &Evdev{
		dev:     dev,
		code:    code,
		presses: make(chan capture.Press, 16),
		logger:  logging.GetLogger("button"),
	}
	go e.read()
	e.logger.Info("Evdev button ready", "path", path, "code", code)
	return e, nil
}

func (e *Evdev) read() {
	for {
		ev, err := e.dev.Read()
		if err != nil {
			e.logger.Debug("Evdev reader stopped", "error", err)
			return
		}
		if !ev.IsPress(e.code) {
			continue
		}
		select {
		case e.presses <- capture.Press{Timestamp: ev.Timestamp100ns(), At: time.Now(), Source: e.Name()}:
		default:
		}
	}
}

// Name implements Source.
func (e *Evdev) Name() string {
	return fmt.Sprintf("evdev:%s", e.dev.Path())
}

// Poll implements Source.
func (e *Evdev) Poll() (capture.Press, bool) {
	select {
	case p := <-e.presses:
		return p, true
	default:
		return capture.Press{}, false
	}
}

// Close stops the reader.
func (e *Evdev) Close() error {
	return e.dev.Close()
}
