package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bib/internal/engine"
	"github.com/mesh-intelligence/bib/internal/paths"
	"github.com/mesh-intelligence/bib/pkg/types"
)

// initResult is the JSON shape of "bib init".
type initResult struct {
	ConfigFile    string `json:"config_file"`
	ConfigWritten bool   `json:"config_written"`
	DataDir       string `json:"data_dir"`
	Active        string `json:"active"`
	PDFDir        string `json:"pdf_dir,omitempty"`
}

func (a *app) newInitCmd() *cobra.Command {
	var pdfDir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize bib storage",
		Long: "Write config.yaml if missing and create the data directory with its default stack.\n" +
			"With --pdf-dir, also record and create the directory \"bib sync\" scans.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, pdfDir)
		},
	}
	cmd.Flags().StringVar(&pdfDir, "pdf-dir", "", "directory scanned by bib sync")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, pdfDir string) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("%w: resolve config dir: %w", types.ErrIO, err)
	}

	cfg := a.cfg
	if a.flags.dataDir != "" {
		abs, err := filepath.Abs(a.flags.dataDir)
		if err != nil {
			return fmt.Errorf("%w: %w", types.ErrIO, err)
		}
		cfg.DataDir = abs
	}
	if pdfDir != "" {
		abs, err := paths.ResolvePDFDir(pdfDir, "")
		if err != nil {
			return fmt.Errorf("%w: %w", types.ErrIO, err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return fmt.Errorf("%w: create pdf dir: %w", types.ErrIO, err)
		}
		cfg.PDFDir = abs
	}
	written, err := writeConfigIfMissing(configDir, cfg)
	if err != nil {
		return err
	}
	if !written && pdfDir != "" && a.cfg.PDFDir != cfg.PDFDir {
		a.log.Warn("config.yaml already exists; pdf_dir not recorded",
			"config_dir", configDir, "pdf_dir", cfg.PDFDir)
	}

	dataDir, err := a.dataDir()
	if err != nil {
		return err
	}
	res := initResult{
		ConfigFile:    filepath.Join(configDir, configFileExt),
		ConfigWritten: written,
		DataDir:       dataDir,
		PDFDir:        cfg.PDFDir,
	}
	err = a.withEngine(cmd.Context(), func(e *engine.Engine) error {
		var err error
		res.Active, err = e.Active(cmd.Context())
		return err
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		return printJSON(out, res)
	}
	if written {
		fmt.Fprintf(out, "wrote %s\n", res.ConfigFile)
	}
	fmt.Fprintf(out, "initialized %s (active stack %s)\n", res.DataDir, a.styles.bold.Render(res.Active))
	return nil
}
