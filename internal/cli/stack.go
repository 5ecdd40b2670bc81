package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bib/internal/command"
	"github.com/mesh-intelligence/bib/internal/engine"
)

// dispatch runs a registry command and prints its summary.
func (a *app) dispatch(cmd *cobra.Command, c command.Command) error {
	return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
		res, err := command.Dispatch(cmd.Context(), e, c)
		if err != nil {
			return err
		}
		if a.flags.jsonMode {
			return printJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Summary)
		return nil
	})
}

func (a *app) newStackCmd() *cobra.Command {
	var (
		del    bool
		isNew  bool
		rename string
	)
	cmd := &cobra.Command{
		Use:   "stack [name]",
		Short: "List, create, rename or delete stacks",
		Long: "With no name, list stacks with the active one marked '*'.\n" +
			"With a name, create it, or delete, rename or check it out with the flags.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if del || isNew || rename != "" {
					return errors.New("a stack name is required")
				}
				return a.listStacks(cmd)
			}
			name := args[0]
			switch {
			case del:
				return a.dispatch(cmd, command.Delete{Stack: name})
			case rename != "":
				return a.dispatch(cmd, command.Rename{Stack: name, NewName: rename})
			case isNew:
				return a.dispatch(cmd, command.Create{Stack: name, Checkout: true})
			default:
				return a.dispatch(cmd, command.Create{Stack: name})
			}
		},
	}
	cmd.Flags().BoolVarP(&del, "delete", "d", false, "delete the stack")
	cmd.Flags().StringVarP(&rename, "rename", "m", "", "rename the stack")
	cmd.Flags().BoolVar(&isNew, "new", false, "create the stack and check it out")
	cmd.MarkFlagsMutuallyExclusive("delete", "rename", "new")
	return cmd
}

func (a *app) listStacks(cmd *cobra.Command) error {
	return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
		entries, err := e.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if a.flags.jsonMode {
			return printJSON(out, entries)
		}

		width := 0
		for _, s := range entries {
			width = max(width, len([]rune(s.Name)))
		}
		for _, s := range entries {
			marker := " "
			if s.Active {
				marker = "*"
			}
			name := a.styles.stack(s.Name, s.Color, s.Active)
			fmt.Fprintf(out, "%s %s  %s\n", marker, pad(name, s.Name, width),
				a.styles.muted.Render(plural(s.PaperCount, "paper")))
		}
		return nil
	})
}

func (a *app) newCheckoutCmd() *cobra.Command {
	var isNew bool
	cmd := &cobra.Command{
		Use:   "checkout <stack>",
		Short: "Make a stack active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, command.Checkout{Stack: args[0], New: isNew})
		},
	}
	cmd.Flags().BoolVarP(&isNew, "new", "b", false, "create the stack if it does not exist")
	return cmd
}

func (a *app) newForkCmd() *cobra.Command {
	var (
		from     string
		checkout bool
	)
	cmd := &cobra.Command{
		Use:   "fork <new-stack>",
		Short: "Copy a stack's papers into a new stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, command.Fork{Stack: args[0], From: from, Checkout: checkout})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "stack to copy (default: active stack)")
	cmd.Flags().BoolVar(&checkout, "checkout", false, "make the new stack active")
	return cmd
}

func (a *app) newYankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "yank <stack>",
		Short: "Pull a stack's papers into the active stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, command.Yank{Target: args[0]})
		},
	}
}

func (a *app) newYeetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "yeet <stack>",
		Short: "Push the active stack's papers into another stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, command.Yeet{Target: args[0]})
		},
	}
}

func (a *app) newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <stack>",
		Short: "Yank a stack into the active stack, then delete it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, command.Merge{Target: args[0]})
		},
	}
}

func (a *app) newToggleCmd() *cobra.Command {
	var stack string
	cmd := &cobra.Command{
		Use:   "toggle <paper-id>",
		Short: "Add a paper to a stack, or remove it if present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, command.Toggle{Stack: stack, PaperID: args[0]})
		},
	}
	cmd.Flags().StringVarP(&stack, "stack", "s", "", "stack to toggle in (default: active stack)")
	return cmd
}
