package button

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/logging"
)

// Pin is the part of rpio.Pin the GPIO source reads.
type Pin interface {
	Read() rpio.State
}

// GPIOConfig selects a BCM pin and its electrical behaviour.
type GPIOConfig struct {
	Pin       int
	ActiveLow bool // button pulls the line to ground
	PullUp    bool
	Stable    time.Duration
}

// GPIO is a debounced push button on a Raspberry Pi pin.
type GPIO struct {
	cfg      GPIOConfig
	pin      Pin
	debounce *Debouncer
	release  func() error
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// OpenGPIO maps GPIO memory and configures the pin as an input.
// Requires /dev/gpiomem or root.
func OpenGPIO(cfg GPIOConfig) (*GPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	p := rpio.Pin(cfg.Pin)
	p.Input()
	if cfg.PullUp {
		p.PullUp()
	} else {
		p.PullOff()
	}

	g := NewGPIO(cfg, p)
	g.release = rpio.Close
	g.logger.Info("GPIO button ready", "pin", cfg.Pin, "active_low", cfg.ActiveLow, "pull_up", cfg.PullUp)
	return g, nil
}

// NewGPIO wraps an already configured pin.
func NewGPIO(cfg GPIOConfig, pin Pin) *GPIO {
	return &GPIO{
		cfg:      cfg,
		pin:      pin,
		debounce: NewDebouncer(cfg.ActiveLow, cfg.Stable),
		logger:   logging.GetLogger("button"),
		now:      time.Now,
	}
}

// Name implements Source.
func (g *GPIO) Name() string {
	return fmt.Sprintf("gpio%d", g.cfg.Pin)
}

// Poll implements Source.
func (g *GPIO) Poll() (capture.Press, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	at := g.now()
	if !g.debounce.Sample(g.pin.Read() == rpio.High, at) {
		return capture.Press{}, false
	}
	g.logger.Debug("GPIO press", "pin", g.cfg.Pin)
	return capture.Press{At: at, Source: g.Name()}, true
}

// Close unmaps GPIO memory when it was opened by OpenGPIO.
func (g *GPIO) Close() error {
	if g.release == nil {
		return nil
	}
	return g.release()
}
