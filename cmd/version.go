package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsnap/internal/version"
)

// CreateVersionCmd prints build information.
func CreateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			fmt.Fprintln(c.OutOrStdout(), version.Full())
		},
	}
}
