package importer

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/nickng/bibtex"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// Entry is the first entry of a BibTeX document, with field names
// lowercased and values stripped of braces.
type Entry struct {
	Type   string
	Key    string
	Fields map[string]string
}

// ParseBibTeX parses data and returns its first entry.
func ParseBibTeX(data []byte) (*Entry, error) {
	doc, err := bibtex.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse bibtex: %v", types.ErrInvalidContent, err)
	}
	if len(doc.Entries) == 0 {
		return nil, fmt.Errorf("%w: no bibtex entries", types.ErrInvalidContent)
	}

	src := doc.Entries[0]
	e := &Entry{
		Type:   strings.ToLower(src.Type),
		Key:    strings.TrimSpace(src.CiteName),
		Fields: make(map[string]string, len(src.Fields)),
	}
	for name, value := range src.Fields {
		if value == nil {
			continue
		}
		if v := cleanValue(value.String()); v != "" {
			e.Fields[strings.ToLower(name)] = v
		}
	}
	return e, nil
}

// Canonical renders the entry with its key first and fields sorted by
// name, so that field order and formatting do not affect the paper id.
func (e *Entry) Canonical() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "key=%s\n", e.Key)
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%s\n", name, e.Fields[name])
	}
	return b.String()
}

// Meta maps the entry onto paper fields. All fields are kept; the cite key
// is stored under types.FieldKey and the entry type under
// types.FieldEntryType.
func (e *Entry) Meta() map[string]string {
	out := make(map[string]string, len(e.Fields)+2)
	for k, v := range e.Fields {
		out[k] = v
	}
	if e.Key != "" {
		out[types.FieldKey] = e.Key
	}
	if e.Type != "" {
		out[types.FieldEntryType] = e.Type
	}
	return out
}

// cleanValue removes grouping braces and quotes and collapses whitespace.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
