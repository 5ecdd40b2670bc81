package export

import (
	"fmt"
	"io"

	"github.com/nickng/bibtex"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// fallbackEntryType is used for papers not imported from BibTeX.
const fallbackEntryType = "misc"

// WriteBibTeX writes one BibTeX entry per record. The entry type and cite
// key come from the stored entrytype and key fields, falling back to misc
// and the paper's short id. The PDF location is written as a file field.
// Stack names are not part of BibTeX and are dropped.
func WriteBibTeX(w io.Writer, records []Record) error {
	bib := bibtex.NewBibTex()
	for _, rec := range records {
		bib.AddEntry(bibEntry(rec.Paper))
	}
	if _, err := io.WriteString(w, bib.PrettyString()); err != nil {
		return fmt.Errorf("writing bibtex: %w", err)
	}
	return nil
}

func bibEntry(p *types.Paper) *bibtex.BibEntry {
	entryType := p.Fields[types.FieldEntryType]
	if entryType == "" {
		entryType = fallbackEntryType
	}
	key := p.Fields[types.FieldKey]
	if key == "" {
		key = p.ShortID()
	}

	entry := bibtex.NewBibEntry(entryType, key)
	for name, value := range p.Fields {
		if name == types.FieldKey || name == types.FieldEntryType || value == "" {
			continue
		}
		entry.AddField(name, bibtex.NewBibConst(value))
	}
	if _, ok := p.Fields["file"]; !ok && p.HasPDF() {
		entry.AddField("file", bibtex.NewBibConst(*p.PDFLocation))
	}
	return entry
}
