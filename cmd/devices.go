package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/camsnap/internal/capture"
)

// DeviceReport is one enumerated device and what automatic selection
// would do with it.
type DeviceReport struct {
	capture.Device
	Selected bool            `json:"selected"`
	Format   *capture.Format `json:"selected_format,omitempty"`
}

// CreateDevicesCmd lists capture devices and their formats.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices and formats",
		Long: "Enumerates devices through the configured backend and marks the device and format " +
			"the run loop would pick with the current selection options.",
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(c *cobra.Command, _ []string, opts *Options) {
			reports, err := ListDevices(c.Context(), opts)
			if err == nil {
				if asJSON {
					enc := json.NewEncoder(c.OutOrStdout())
					enc.SetIndent("", "  ")
					err = enc.Encode(reports)
				} else {
					err = writeDeviceTable(c.OutOrStdout(), reports)
				}
			}
			exitOnError(c, err)
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// ListDevices initializes the backend, enumerates and shuts it down again.
func ListDevices(ctx context.Context, opts *Options) (reports []DeviceReport, err error) {
	captureOpts, err := opts.CaptureOptions()
	if err != nil {
		return nil, err
	}
	backend, release, err := OpenBackend(opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if relErr := release(); relErr != nil && err == nil {
			err = relErr
		}
	}()

	if err := backend.Init(ctx); err != nil {
		return nil, fmt.Errorf("initialize %s backend: %w", backend.Name(), err)
	}
	devices, err := backend.Devices()
	if err != nil {
		return nil, err
	}
	return reportDevices(devices, captureOpts), nil
}

func reportDevices(devices []capture.Device, opts capture.Options) []DeviceReport {
	reports := make([]DeviceReport, 0, len(devices))
	picked, pickErr := opts.Device.Pick(devices)
	for _, d := range devices {
		r := DeviceReport{Device: d}
		if pickErr == nil && d.Index == picked.Index && d.UniqueID == picked.UniqueID {
			r.Selected = true
			if f, err := opts.Format.Pick(d.Formats); err == nil {
				r.Format = &f
			}
		}
		reports = append(reports, r)
	}
	return reports
}

func writeDeviceTable(w io.Writer, reports []DeviceReport) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "No capture devices found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range reports {
		mark := " "
		if r.Selected {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s [%d]\t%s\t%s\n", mark, r.Index, r.Name, r.UniqueID)
		for _, f := range r.Formats {
			fmark := " "
			if r.Format != nil && f.Index == r.Format.Index {
				fmark = "*"
			}
			fmt.Fprintf(tw, "   %s %d\t%s\t\n", fmark, f.Index, f)
		}
	}
	return tw.Flush()
}
