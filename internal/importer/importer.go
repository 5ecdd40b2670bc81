// Package importer turns local files into raw paper content. It reads the
// disk and nothing else: remote sources are rejected.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// ErrRemoteSource is returned for URLs; download the file first.
var ErrRemoteSource = fmt.Errorf("%w: remote sources are not supported", types.ErrInvalidContent)

var pdfMagic = []byte("%PDF-")

// Local reads papers from the local filesystem.
type Local struct {
	readFile func(string) ([]byte, error)
}

var _ types.Importer = (*Local)(nil)

// New returns a Local importer.
func New() *Local {
	return &Local{readFile: os.ReadFile}
}

// Fetch reads source and classifies it:
//   - PDF files (by extension or magic bytes) are hashed as-is and their
//     path recorded as the PDF location;
//   - BibTeX (.bib files or text starting with '@') is reduced to a
//     canonical form of its first entry and its fields extracted;
//   - anything else is plain text, titled by its first line.
func (l *Local) Fetch(ctx context.Context, source string) (types.RawContent, error) {
	if err := ctx.Err(); err != nil {
		return types.RawContent{}, err
	}
	if isRemote(source) {
		return types.RawContent{}, fmt.Errorf("%w: %s", ErrRemoteSource, source)
	}

	path, err := filepath.Abs(source)
	if err != nil {
		return types.RawContent{}, fmt.Errorf("resolve %s: %w", source, err)
	}
	data, err := l.readFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.RawContent{}, fmt.Errorf("%w: no such file %s", types.ErrInvalidContent, source)
		}
		return types.RawContent{}, fmt.Errorf("read %s: %w", source, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return types.RawContent{}, fmt.Errorf("%w: %s is empty", types.ErrInvalidContent, source)
	}

	raw := types.RawContent{Path: path}
	ext := strings.ToLower(filepath.Ext(path))
	trimmed := bytes.TrimSpace(data)

	switch {
	case ext == ".pdf" || bytes.HasPrefix(data, pdfMagic):
		raw.Kind = types.ContentPDF
		raw.Bytes = data
		raw.Meta.PDFLocation = &path
		raw.Meta.Defaults = map[string]string{
			types.FieldTitle: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		}

	case ext == ".bib" || ext == ".bibtex" || bytes.HasPrefix(trimmed, []byte("@")):
		entry, err := ParseBibTeX(data)
		if err != nil {
			return types.RawContent{}, fmt.Errorf("%s: %w", source, err)
		}
		raw.Kind = types.ContentText
		raw.Bytes = []byte(entry.Canonical())
		raw.OriginURL = entry.Fields["url"]
		raw.Meta.Fields = entry.Meta()

	default:
		raw.Kind = types.ContentText
		raw.Bytes = data
		raw.Meta.Defaults = map[string]string{types.FieldTitle: firstLine(string(trimmed))}
	}
	return raw, nil
}

// ScanDir lists the PDF files directly inside dir, by name. Subdirectories
// are not descended into.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no such directory %s", types.ErrInvalidContent, dir)
		}
		return nil, fmt.Errorf("%w: read %s: %w", types.ErrIO, dir, err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	return out, nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	for _, scheme := range []string{"http://", "https://", "ftp://"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

const maxTitle = 200

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	line = strings.Join(strings.Fields(line), " ")
	if r := []rune(line); len(r) > maxTitle {
		line = string(r[:maxTitle])
	}
	return line
}
