package cli

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bib/internal/engine"
	"github.com/mesh-intelligence/bib/internal/export"
	"github.com/mesh-intelligence/bib/internal/filter"
	"github.com/mesh-intelligence/bib/internal/importer"
	"github.com/mesh-intelligence/bib/pkg/types"
)

func (a *app) newAddCmd() *cobra.Command {
	var (
		notes string
		pdf   string
	)
	fieldFlags := []struct{ name, usage string }{
		{types.FieldTitle, "title"},
		{types.FieldAuthor, "authors"},
		{types.FieldYear, "publication year"},
		{types.FieldDOI, "DOI"},
		{types.FieldKey, "citation key"},
	}
	fields := make(map[string]*string, len(fieldFlags))

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Add a PDF, BibTeX or text file to the active stack",
		Long: "Add stores the file's content once, keyed by a hash of the content.\n" +
			"Adding identical content again updates the existing paper's metadata.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if y := *fields[types.FieldYear]; y != "" {
				if _, err := strconv.Atoi(y); err != nil {
					return fmt.Errorf("invalid --year %q: must be a number", y)
				}
			}

			raw, err := importer.New().Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if raw.Meta.Fields == nil {
				raw.Meta.Fields = make(map[string]string)
			}
			for name, v := range fields {
				if *v != "" {
					raw.Meta.Fields[name] = *v
				}
			}
			if notes != "" {
				raw.Meta.Notes = notes
			}
			if pdf != "" {
				raw.Meta.PDFLocation = &pdf
			}

			return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
				res, err := e.Add(cmd.Context(), raw)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if a.flags.jsonMode {
					return printJSON(out, res)
				}
				verb := "added"
				if !res.Created {
					verb = "updated"
				}
				fmt.Fprintf(out, "%s %s %s\n", verb, a.styles.id.Render(res.Paper.ShortID()), res.Paper.Title())
				if !res.Added {
					fmt.Fprintf(out, "already in %s\n", res.Stack)
				}
				return nil
			})
		},
	}
	for _, f := range fieldFlags {
		fields[f.name] = cmd.Flags().String(f.name, "", f.usage)
	}
	cmd.Flags().StringVar(&notes, "notes", "", "notes to append")
	cmd.Flags().StringVar(&pdf, "pdf", "", "path or URL of the paper's PDF")
	return cmd
}

func (a *app) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <paper-id>",
		Short: "Show a paper and the stacks holding it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
				l, err := e.Describe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), export.Record{Paper: l.Paper, Stacks: l.Stacks})
				}
				a.printPaper(cmd.OutOrStdout(), l)
				return nil
			})
		},
	}
}

func (a *app) printPaper(w io.Writer, l engine.Listing) {
	p := l.Paper
	line := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", pad(a.styles.label.Render(label), label, 8), value)
	}

	line("id", a.styles.id.Render(p.PaperID))
	line("title", p.Title())
	if v := p.Fields[types.FieldAuthor]; v != "" {
		line("author", v)
	}
	for _, k := range slices.Sorted(maps.Keys(p.Fields)) {
		if k == types.FieldTitle || k == types.FieldAuthor {
			continue
		}
		line(k, p.Fields[k])
	}
	if p.HasPDF() {
		line("pdf", *p.PDFLocation)
	}
	stacks := "none"
	if len(l.Stacks) > 0 {
		stacks = strings.Join(l.Stacks, ", ")
	}
	line("stacks", stacks)
	line("added", humanize.Time(p.CreatedAt))
	line("seen", humanize.Time(p.LastAccessed))
	if p.Notes != "" {
		fmt.Fprintf(w, "\n%s\n", p.Notes)
	}
}

func (a *app) newPapersCmd() *cobra.Command {
	var (
		stack string
		where string
	)
	cmd := &cobra.Command{
		Use:   "papers",
		Short: "List the papers of a stack",
		Long: "List the papers of the active stack, another stack, or every stored\n" +
			"paper with --stack all. --where filters with an expression such as\n" +
			`'year >= 2020 && author contains "Hinton"'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var f *filter.Filter
			if where != "" {
				var err error
				if f, err = filter.Compile(where); err != nil {
					return err
				}
				a.log.Debug("filter compiled", slog.String("where", f.String()))
			}
			return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
				papers, err := e.Papers(cmd.Context(), stack)
				if err != nil {
					return err
				}
				if f != nil {
					if papers, err = f.Apply(papers); err != nil {
						return err
					}
				}
				if papers == nil {
					papers = []*types.Paper{}
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), papers)
				}
				for _, p := range papers {
					a.printPaperLine(cmd.OutOrStdout(), p, "")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&stack, "stack", "s", "", "stack to list, or \"all\" (default: active stack)")
	cmd.Flags().StringVarP(&where, "where", "w", "", "filter expression")
	return cmd
}

// printPaperLine writes "<short id>  <year>  <title> (<authors>)" with an
// optional prefix column.
func (a *app) printPaperLine(w io.Writer, p *types.Paper, prefix string) {
	year := "----"
	if y := p.Year(); y != 0 {
		year = strconv.Itoa(y)
	}
	fmt.Fprintf(w, "%s%s  %s  %s %s\n", prefix,
		a.styles.id.Render(p.ShortID()), year, p.Title(),
		a.styles.muted.Render("("+p.Authors()+")"))
}

func (a *app) newFindCmd() *cobra.Command {
	var (
		stack string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "find <query>...",
		Short: "Search papers by title, author, year and notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
				matches, err := e.Find(cmd.Context(), query, stack, limit)
				if err != nil {
					return err
				}
				if matches == nil {
					matches = []engine.Match{}
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), matches)
				}
				for _, m := range matches {
					a.printPaperLine(cmd.OutOrStdout(), m.Paper, fmt.Sprintf("%.2f  ", m.Score))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&stack, "stack", "s", types.AllStacks, "stack to search, or \"all\"")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results (0 for all)")
	return cmd
}

func (a *app) newDetachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <paper-id>",
		Short: "Remove a paper from every stack, keeping its record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
				id, n, err := e.Detach(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]any{"paper_id": id, "removed": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "detached %s from %s\n", shortID(id), plural(n, "stack"))
				return nil
			})
		},
	}
}

func (a *app) newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <paper-id>",
		Short: "Delete a paper that no stack references",
		Long:  "Delete a paper record. Papers still in a stack are refused; run detach first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
				id, err := e.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]string{"paper_id": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", shortID(id))
				return nil
			})
		},
	}
}

func (a *app) newExportCmd() *cobra.Command {
	var (
		stack  string
		out    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write papers as JSON lines or BibTeX",
		Long: "Export writes one JSON object per paper, including its stacks, which\n" +
			"import reads back. --format bib writes BibTeX entries instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := export.ForFormat(format)
			if err != nil {
				return err
			}
			return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
				listings, err := e.Catalog(cmd.Context(), stack)
				if err != nil {
					return err
				}
				records := make([]export.Record, len(listings))
				for i, l := range listings {
					records[i] = export.Record{Paper: l.Paper, Stacks: l.Stacks}
				}
				if out == "" {
					return enc(cmd.OutOrStdout(), records)
				}
				if err := export.WriteFile(out, records, enc); err != nil {
					return fmt.Errorf("%w: export: %w", types.ErrIO, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %s to %s\n", plural(len(records), "paper"), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&stack, "stack", "s", types.AllStacks, "stack to export, or \"all\"")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", export.FormatJSONL, "output format: jsonl or bib")
	return cmd
}

func (a *app) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Merge papers and stacks from an export file",
		Long: "Import reads JSON lines written by export. Papers are reconciled with\n" +
			"existing records, missing stacks are created and memberships restored.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", types.ErrInvalidContent, err)
			}
			defer f.Close()
			records, skipped, err := export.Read(f)
			if err != nil {
				return fmt.Errorf("%w: %w", types.ErrIO, err)
			}
			if skipped > 0 {
				a.log.Warn("skipped malformed records", slog.String("file", args[0]), slog.Int("skipped", skipped))
			}

			listings := make([]engine.Listing, len(records))
			for i, rec := range records {
				listings[i] = engine.Listing{Paper: rec.Paper, Stacks: rec.Stacks}
			}
			return a.withEngine(cmd.Context(), func(e *engine.Engine) error {
				res, err := e.Restore(cmd.Context(), listings)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d new), %s restored\n",
					plural(res.Papers, "paper"), res.Created, plural(res.Memberships, "membership"))
				if len(res.StacksCreated) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "created stacks: %s\n", strings.Join(res.StacksCreated, ", "))
				}
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
