// Package cmd wires the capture loop, its optional services and the CLI
// subcommands together.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsnap/internal/api"
	"github.com/smazurov/camsnap/internal/button"
	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/config"
	"github.com/smazurov/camsnap/internal/events"
	"github.com/smazurov/camsnap/internal/led"
	"github.com/smazurov/camsnap/internal/logging"
	"github.com/smazurov/camsnap/internal/metrics/exporters"
	"github.com/smazurov/camsnap/internal/snapshot"
)

// ShutdownTimeout bounds how long shutdown waits for the loop and the API.
const ShutdownTimeout = 5 * time.Second

// App is one run of the capture loop plus the services around it.
type App struct {
	opts   *Options
	logger *slog.Logger

	bus     *events.Bus
	backend capture.Backend
	release func() error
	writer  *snapshot.Writer
	runner  *capture.Runner
	buttons []button.Source

	leds    *led.Manager
	server  *api.Server
	watcher *config.Watcher[Options]

	running atomic.Bool
}

// NewApp builds everything the root command runs. base holds the options
// before the config file was applied: defaults plus command line flags.
// Reloads start from it, so a key removed from the file falls back to its
// default. root keeps command line flags ahead of the file; it may be nil.
func NewApp(opts *Options, base Options, root *cobra.Command) (app *App, err error) {
	a := &App{
		opts:   opts,
		logger: logging.GetLogger("main"),
		bus:    events.New(),
	}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	settings, err := opts.SnapshotSettings()
	if err != nil {
		return nil, err
	}
	captureOpts, err := opts.CaptureOptions()
	if err != nil {
		return nil, err
	}

	if a.writer, err = snapshot.NewWriter(settings); err != nil {
		return nil, err
	}

	if cfg, ok := opts.GPIOConfig(); ok {
		gpio, gpioErr := button.OpenGPIO(cfg)
		if gpioErr != nil {
			return nil, gpioErr
		}
		a.buttons = append(a.buttons, gpio)
	}
	if opts.EvdevPath != "" {
		ev, evErr := button.OpenEvdev(opts.EvdevPath, 0)
		if evErr != nil {
			return nil, fmt.Errorf("open %s: %w", opts.EvdevPath, evErr)
		}
		a.buttons = append(a.buttons, ev)
	}
	for _, b := range a.buttons {
		captureOpts.Buttons = append(captureOpts.Buttons, b)
	}

	if a.backend, a.release, err = OpenBackend(opts); err != nil {
		return nil, err
	}
	a.runner = capture.NewRunner(a.backend, a.writer, a.bus, captureOpts)

	var ledController led.Controller
	if opts.LEDEnabled {
		ledLogger := logging.GetLogger("led")
		ledController = led.New(ledLogger, opts.LEDName)
		a.leds = led.NewManager(ledController, led.DefaultType(ledController, opts.LEDType), a.bus, ledLogger)
	}

	if opts.Listen != "" {
		logging.SetLogCallback(api.LogForwarder(a.bus))
		a.server = api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Capture:           a.runner,
			Snapshots:         a.writer,
			EventBus:          a.bus,
			LEDController:     ledController,
			PrometheusHandler: exporters.HTTPHandler(),
		})
	}

	if opts.Config != "" {
		a.watcher = config.NewConfigWatcher(opts.Config, config.Loader(base, root), logging.GetLogger("config"),
			config.WithErrorHandler[Options](func(err error) {
				a.logger.Warn("Config reload failed, keeping current settings", "error", err)
			}))
		a.watcher.OnReload(a.reload)
	}

	return a, nil
}

// Runner returns the capture runner.
func (a *App) Runner() *capture.Runner {
	return a.runner
}

// reload applies settings that can change while streaming: snapshot
// output and log levels. Device and format changes need a restart.
func (a *App) reload(o Options) {
	settings, err := o.SnapshotSettings()
	if err != nil {
		a.logger.Warn("Ignoring invalid snapshot settings", "error", err)
		return
	}
	if err := a.writer.Update(settings); err != nil {
		a.logger.Warn("Failed to apply snapshot settings", "error", err)
		return
	}
	o.ApplyLogLevels()
	a.logger.Info("Configuration reloaded",
		"dir", settings.Dir,
		"quality", settings.Quality,
		"next", a.writer.Next())
}

// Run starts the services and blocks in the capture loop until ctx is
// cancelled, the device is lost or the snapshot limit is reached. An App
// runs once.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("app already ran")
	}

	if a.leds != nil {
		a.leds.Start()
	}
	if a.watcher != nil {
		if err := a.watcher.Start(); err != nil {
			a.logger.Warn("Config watcher not started", "path", a.opts.Config, "error", err)
		}
	}

	var serverErr chan error
	if a.server != nil {
		serverErr = make(chan error, 1)
		go func() {
			err := a.server.Start(a.opts.Listen)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("API server failed", "addr", a.opts.Listen, "error", err)
			}
			serverErr <- err
		}()
	}

	err := a.runner.Run(ctx)
	if err != nil {
		a.logger.Error("Capture stopped", "error", err)
	}

	if a.server != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		if stopErr := a.server.Stop(stopCtx); stopErr != nil {
			a.logger.Warn("Error stopping API server", "error", stopErr)
		}
		stopCancel()
		<-serverErr
	}
	a.closeResources()
	return err
}

// closeResources releases everything NewApp acquired. The runner has
// already closed the backend when Run returns.
func (a *App) closeResources() {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Debug("Config watcher stop", "error", err)
		}
	}
	if a.leds != nil {
		a.leds.Stop()
	}
	for _, b := range a.buttons {
		if err := b.Close(); err != nil {
			a.logger.Warn("Failed to close button", "button", b.Name(), "error", err)
		}
	}
	a.buttons = nil
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Warn("Failed to close backend", "backend", a.backend.Name(), "error", err)
		}
	}
	if a.release != nil {
		if err := a.release(); err != nil {
			a.logger.Warn("Failed to unload backend", "error", err)
		}
		a.release = nil
	}
}
