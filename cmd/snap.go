package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/camsnap/internal/capture"
	"github.com/smazurov/camsnap/internal/snapshot"
)

// CreateSnapCmd saves a single frame without waiting for a button.
func CreateSnapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snap",
		Short: "Capture one snapshot and exit",
		Long: "Opens the selected device, waits for the first frame, saves it with the " +
			"configured snapshot settings and prints the file path.",
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(c *cobra.Command, _ []string, opts *Options) {
			res, err := Snap(c, opts)
			if err == nil {
				fmt.Fprintln(c.OutOrStdout(), res.Path)
			}
			exitOnError(c, err)
		}),
	}
}

// Snap runs a one-shot capture. Ctrl-C aborts the first-frame wait.
func Snap(c *cobra.Command, opts *Options) (snapshot.Result, error) {
	settings, err := opts.SnapshotSettings()
	if err != nil {
		return snapshot.Result{}, err
	}
	captureOpts, err := opts.CaptureOptions()
	if err != nil {
		return snapshot.Result{}, err
	}
	writer, err := snapshot.NewWriter(settings)
	if err != nil {
		return snapshot.Result{}, err
	}

	backend, release, err := OpenBackend(opts)
	if err != nil {
		return snapshot.Result{}, err
	}
	defer release()

	ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return capture.NewRunner(backend, writer, nil, captureOpts).Snap(ctx)
}

// exitOnError prints err and exits with status 1, like a failed RunE.
func exitOnError(c *cobra.Command, err error) {
	if err == nil {
		return
	}
	c.PrintErrln("Error:", err)
	os.Exit(1)
}
