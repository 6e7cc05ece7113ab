package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/camsnap/cmd"
	"github.com/smazurov/camsnap/internal/config"
	"github.com/smazurov/camsnap/internal/logging"
)

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *cmd.Options) {
		// Flags set on the command line win over env and the config file.
		base := *opts
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Error("Failed to load config", "path", opts.Config, "error", loadErr)
			os.Exit(1)
		}

		logging.Initialize(opts.LoggingConfig())
		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)
			app, err := cmd.NewApp(opts, base, cli.Root())
			if err != nil {
				logger.Error("Failed to start", "error", err)
				os.Exit(1)
			}

			logger.Info("camsnap starting",
				"backend", opts.Backend,
				"output", opts.Output,
				"api", opts.Listen)
			if err := app.Run(ctx); err != nil {
				os.Exit(1)
			}
			logger.Info("camsnap stopped")
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			select {
			case <-done:
			case <-time.After(cmd.ShutdownTimeout):
				logger.Warn("Timed out waiting for capture to stop")
			}
		})
	})

	root := cli.Root()
	root.Use = "camsnap"
	root.Short = "Save a numbered JPEG every time the camera button is pressed"
	root.AddCommand(cmd.CreateDevicesCmd(), cmd.CreateSnapCmd(), cmd.CreateVersionCmd())

	cli.Run()
}
