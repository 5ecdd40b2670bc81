package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bib/internal/engine"
)

func (a *app) newStatusCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active stack, its size and its top authors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
				res, err := e.Status(cmd.Context(), top)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if a.flags.jsonMode {
					return printJSON(out, res)
				}

				line := func(label, value string) {
					fmt.Fprintf(out, "%s %s\n", pad(a.styles.label.Render(label), label, 8), value)
				}
				line("stack", a.styles.stack(res.Stack, res.Color, true))
				line("papers", strconv.Itoa(res.Papers))
				if len(res.TopAuthors) == 0 {
					return nil
				}
				fmt.Fprintln(out, a.styles.label.Render("top authors"))
				for i, author := range res.TopAuthors {
					fmt.Fprintf(out, "  %d. %s %s\n", i+1, author.Name,
						a.styles.muted.Render(fmt.Sprintf("(%d)", author.Papers)))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 10, "number of authors to show (0 for all)")
	return cmd
}
