// Package export writes papers as JSONL, one JSON object per line, or as
// BibTeX, and reads JSONL back.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// Export formats.
const (
	FormatJSONL  = "jsonl"
	FormatBibTeX = "bib"
)

// Encoder writes records to w in one export format.
type Encoder func(w io.Writer, records []Record) error

// ForFormat returns the encoder for format.
func ForFormat(format string) (Encoder, error) {
	switch format {
	case FormatJSONL:
		return Write, nil
	case FormatBibTeX:
		return WriteBibTeX, nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want %s or %s)", format, FormatJSONL, FormatBibTeX)
	}
}

// Record is one exported line. Stacks lists the stacks referencing the
// paper, sorted by name.
type Record struct {
	*types.Paper
	Stacks []string `json:"stacks,omitempty"`
}

// Write encodes records to w, one per line.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding %s: %w", rec.PaperID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	return nil
}

// WriteFile atomically replaces path with the records encoded by enc,
// using the temp-file, fsync, rename pattern. A failed export leaves any
// existing file intact.
func WriteFile(path string, records []Record, enc Encoder) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bib-export-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := enc(tmp, records); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
