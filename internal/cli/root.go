// Package cli implements the bib command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bib/internal/engine"
	"github.com/mesh-intelligence/bib/internal/paths"
	"github.com/mesh-intelligence/bib/internal/rank"
	"github.com/mesh-intelligence/bib/internal/sqlite"
	"github.com/mesh-intelligence/bib/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
	exitLocked    = 3
)

// rootFlags holds global flag values.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

// app is the state of one invocation, shared by every subcommand.
type app struct {
	flags  rootFlags
	cfg    types.Config
	log    *slog.Logger
	styles styles
}

// NewRootCmd creates the top-level "bib" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{
		cfg: types.DefaultConfig(),
		log: slog.New(slog.DiscardHandler),
	}

	root := &cobra.Command{
		Use:   "bib",
		Short: "Keep papers in stacks",
		Long: "bib stores papers once, keyed by their content, and groups them into\n" +
			"named stacks that can be forked, yanked, yeeted and merged.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/bib)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/bib)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.newInitCmd(),
		a.newVersionCmd(),
		a.newStackCmd(),
		a.newCheckoutCmd(),
		a.newForkCmd(),
		a.newYankCmd(),
		a.newYeetCmd(),
		a.newMergeCmd(),
		a.newToggleCmd(),
		a.newAddCmd(),
		a.newShowCmd(),
		a.newPapersCmd(),
		a.newFindCmd(),
		a.newDetachCmd(),
		a.newRmCmd(),
		a.newExportCmd(),
		a.newImportCmd(),
		a.newStatusCmd(),
		a.newSyncCmd(),
	)
	return root
}

// setup loads configuration and builds the logger and styles.
func (a *app) setup(cmd *cobra.Command) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("%w: resolve config dir: %w", types.ErrIO, err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, a.flags.verbose)
	a.styles = newStyles(cmd.OutOrStdout(), cfg.Color)
	a.log.Debug("configuration loaded", slog.String("config_dir", configDir))
	return nil
}

func (a *app) dataDir() (string, error) {
	dir, err := paths.ResolveDataDir(a.flags.dataDir, a.cfg.DataDir)
	if err != nil {
		return "", fmt.Errorf("%w: resolve data dir: %w", types.ErrIO, err)
	}
	return dir, nil
}

// withEngine opens the store for the duration of fn.
func (a *app) withEngine(ctx context.Context, fn func(*engine.Engine) error) (err error) {
	dir, err := a.dataDir()
	if err != nil {
		return err
	}
	backend, err := sqlite.Open(ctx, sqlite.Options{
		DataDir:      dir,
		DefaultStack: a.cfg.DefaultStack,
	})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, backend.Close())
	}()
	a.log.Debug("store opened", slog.String("data_dir", dir))

	e := engine.New(backend,
		engine.WithLogger(a.log),
		engine.WithRanker(rank.New()),
	)
	return fn(e)
}

// Run executes bib with args and returns the process exit code. Errors are
// written to stderr as "error [kind]: message".
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		return reportError(stderr, err)
	}
	return exitSuccess
}

// Execute runs bib against the process arguments and exits. SIGINT and
// SIGTERM cancel the running command, rolling back any open transaction.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitCode maps an error to the exit code for its kind.
func exitCode(err error) int {
	switch types.Kind(err) {
	case types.KindLocked:
		return exitLocked
	case types.KindIO:
		return exitSysError
	default:
		return exitUserError
	}
}

func reportError(w io.Writer, err error) int {
	kind := types.Kind(err)
	if kind == types.KindUnknown {
		fmt.Fprintf(w, "error: %s\n", err)
	} else {
		fmt.Fprintf(w, "error [%s]: %s\n", kind, err)
	}
	if types.Retryable(err) {
		fmt.Fprintln(w, "another bib command is running; try again")
	}
	return exitCode(err)
}
