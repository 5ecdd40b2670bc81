package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/mesh-intelligence/bib"

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/mesh-intelligence/bib/internal/cli.Version=...".
var Version = "0.1.0"

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bib version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": Version,
					"module":  modulePath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bib v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
