package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bib/internal/engine"
	"github.com/mesh-intelligence/bib/internal/importer"
	"github.com/mesh-intelligence/bib/internal/paths"
	"github.com/mesh-intelligence/bib/pkg/types"
)

// syncResult is the JSON shape of "bib sync".
type syncResult struct {
	Dir        string   `json:"dir"`
	Stack      string   `json:"stack"`
	Added      []string `json:"added"`
	Skipped    int      `json:"skipped"`
	Unreadable []string `json:"unreadable,omitempty"`
}

func (a *app) newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [dir]",
		Short: "Add the PDFs in a directory that are not stored yet",
		Long: "Sync scans dir, or the configured pdf_dir, for PDF files and adds those\n" +
			"whose content is not stored yet to the active stack. Stored papers are\n" +
			"left untouched.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			dir, err := paths.ResolvePDFDir(arg, a.cfg.PDFDir)
			if err != nil {
				return fmt.Errorf("%w: resolve pdf dir: %w", types.ErrIO, err)
			}
			if dir == "" {
				return fmt.Errorf("%w: no directory given and pdf_dir is not set", types.ErrInvalidConfig)
			}

			files, err := importer.ScanDir(dir)
			if err != nil {
				return err
			}
			res := syncResult{Dir: dir}
			imp := importer.New()
			raws := make([]types.RawContent, 0, len(files))
			for _, file := range files {
				raw, err := imp.Fetch(cmd.Context(), file)
				if err != nil {
					if ctxErr := cmd.Context().Err(); ctxErr != nil {
						return ctxErr
					}
					a.log.Warn("skipping unreadable file", slog.String("file", file), slog.String("error", err.Error()))
					res.Unreadable = append(res.Unreadable, file)
					continue
				}
				raws = append(raws, raw)
			}
			a.log.Debug("scanned pdf dir", slog.String("dir", dir), slog.Int("files", len(files)))

			return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
				out, err := e.Sync(cmd.Context(), raws)
				if err != nil {
					return err
				}
				res.Stack, res.Added, res.Skipped = out.Stack, out.Added, out.Skipped
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "synced %s into %s: %d added, %d already stored\n",
					dir, res.Stack, len(res.Added), res.Skipped)
				if n := len(res.Unreadable); n > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s could not be read\n", plural(n, "file"))
				}
				return nil
			})
		},
	}
}
