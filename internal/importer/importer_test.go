package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bib/internal/contentid"
	"github.com/mesh-intelligence/bib/pkg/types"
)

const vaswani = `@article{vaswani2017,
  title = {Attention Is All You Need},
  author = {Ashish Vaswani and Noam Shazeer},
  year = {2017},
  url = {https://arxiv.org/abs/1706.03762}
}
`

const vaswaniReordered = `@article{vaswani2017,
    year   = {2017},
    url    = {https://arxiv.org/abs/1706.03762},
    author = {Ashish   Vaswani and Noam Shazeer},
    title  = {Attention  Is All You Need}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFetch_BibTeX(t *testing.T) {
	path := writeFile(t, "paper.bib", vaswani)

	raw, err := New().Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, types.ContentText, raw.Kind)
	assert.Equal(t, path, raw.Path)
	assert.Equal(t, "https://arxiv.org/abs/1706.03762", raw.OriginURL)
	assert.Equal(t, "Attention Is All You Need", raw.Meta.Fields[types.FieldTitle])
	assert.Equal(t, "Ashish Vaswani and Noam Shazeer", raw.Meta.Fields[types.FieldAuthor])
	assert.Equal(t, "2017", raw.Meta.Fields[types.FieldYear])
	assert.Equal(t, "vaswani2017", raw.Meta.Fields[types.FieldKey])
	assert.Equal(t, "article", raw.Meta.Fields[types.FieldEntryType])
	assert.Nil(t, raw.Meta.PDFLocation)
}

func TestFetch_BibTeXFormattingDoesNotChangeID(t *testing.T) {
	imp := New()
	ctx := context.Background()

	a, err := imp.Fetch(ctx, writeFile(t, "a.bib", vaswani))
	require.NoError(t, err)
	b, err := imp.Fetch(ctx, writeFile(t, "b.txt", vaswaniReordered))
	require.NoError(t, err)

	idA, err := contentid.Sum(a.Kind, a.Bytes)
	require.NoError(t, err)
	idB, err := contentid.Sum(b.Kind, b.Bytes)
	require.NoError(t, err)
	assert.Equal(t, idA, idB)
}

func TestFetch_PDF(t *testing.T) {
	t.Run("by extension", func(t *testing.T) {
		path := writeFile(t, "Attention.pdf", "not really a pdf")
		raw, err := New().Fetch(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, types.ContentPDF, raw.Kind)
		require.NotNil(t, raw.Meta.PDFLocation)
		assert.Equal(t, path, *raw.Meta.PDFLocation)
		assert.Equal(t, "Attention", raw.Meta.Defaults[types.FieldTitle])
		assert.Empty(t, raw.Meta.Fields[types.FieldTitle])
	})

	t.Run("by magic bytes", func(t *testing.T) {
		path := writeFile(t, "download", "%PDF-1.7\n...")
		raw, err := New().Fetch(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, types.ContentPDF, raw.Kind)
		assert.Equal(t, []byte("%PDF-1.7\n..."), raw.Bytes)
	})
}

func TestFetch_PlainText(t *testing.T) {
	path := writeFile(t, "notes.txt", "\n  Deep   Residual Learning \nfor image recognition\n")
	raw, err := New().Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, types.ContentText, raw.Kind)
	assert.Equal(t, "Deep Residual Learning", raw.Meta.Defaults[types.FieldTitle])
}

func TestFetch_Errors(t *testing.T) {
	ctx := context.Background()
	imp := New()

	_, err := imp.Fetch(ctx, "https://example.org/paper.pdf")
	assert.ErrorIs(t, err, ErrRemoteSource)
	assert.ErrorIs(t, err, types.ErrInvalidContent)

	_, err = imp.Fetch(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, types.ErrInvalidContent)

	_, err = imp.Fetch(ctx, writeFile(t, "blank.txt", " \n\t"))
	assert.ErrorIs(t, err, types.ErrInvalidContent)

	_, err = imp.Fetch(ctx, writeFile(t, "empty.bib", "% just a comment\n"))
	assert.ErrorIs(t, err, types.ErrInvalidContent)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = imp.Fetch(cancelled, writeFile(t, "x.txt", "x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "A.PDF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	got, err := ScanDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "A.PDF"), filepath.Join(dir, "b.pdf")}, got)

	_, err = ScanDir(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, types.ErrInvalidContent)
}

func TestFetch_ReadFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	imp := &Local{readFile: func(string) ([]byte, error) { return nil, boom }}

	_, err := imp.Fetch(context.Background(), "paper.pdf")
	assert.ErrorIs(t, err, boom)
}

func TestEntry_Canonical(t *testing.T) {
	e := &Entry{Key: "k", Fields: map[string]string{"year": "2020", "author": "A"}}
	assert.Equal(t, "key=k\nauthor=A\nyear=2020\n", e.Canonical())
}
