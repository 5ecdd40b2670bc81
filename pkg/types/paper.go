package types

import (
	"strconv"
	"strings"
	"time"
)

// Well-known citation field names.
const (
	FieldTitle  = "title"
	FieldAuthor = "author"
	FieldYear   = "year"
	FieldDOI    = "doi"
	FieldKey    = "key"
	FieldURL    = "url"

	// FieldEntryType holds the BibTeX entry type (article, inproceedings).
	FieldEntryType = "entrytype"
)

// NotesSeparator joins note segments when a re-import appends notes.
const NotesSeparator = "\n---\n"

// Paper is a deduplicated bibliographic record. PaperID is derived from the
// paper's normalized content, so identical content always maps to the same
// record. Stacks reference papers by ID and never hold copies.
type Paper struct {
	PaperID      string            `json:"paper_id"`
	Fields       map[string]string `json:"fields"`
	Notes        string            `json:"notes,omitempty"`
	PDFLocation  *string           `json:"pdf_location,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
}

// PaperMeta is the metadata supplied alongside content on import.
// Empty values mean "not provided".
type PaperMeta struct {
	Fields map[string]string
	// Defaults are guesses (a title from a file name, a source URL). They
	// fill fields the record lacks and never replace a stored value.
	Defaults    map[string]string
	Notes       string
	PDFLocation *string
}

// NewPaper builds a fresh record for content seen for the first time.
func NewPaper(id string, meta PaperMeta, now time.Time) *Paper {
	p := &Paper{
		PaperID:      id,
		Fields:       make(map[string]string, len(meta.Fields)),
		Notes:        strings.TrimSpace(meta.Notes),
		CreatedAt:    now,
		LastAccessed: now,
	}
	for k, v := range meta.Defaults {
		if v = strings.TrimSpace(v); v != "" {
			p.Fields[k] = v
		}
	}
	for k, v := range meta.Fields {
		if v = strings.TrimSpace(v); v != "" {
			p.Fields[k] = v
		}
	}
	if meta.PDFLocation != nil && *meta.PDFLocation != "" {
		loc := *meta.PDFLocation
		p.PDFLocation = &loc
	}
	return p
}

// Reconcile merges metadata from a re-import of the same content into p.
// The incoming side is favored: its non-empty fields overwrite, its PDF
// location replaces a different one, and its notes are appended. Defaults
// only fill fields that are still empty. Empty incoming values never clear
// populated ones. LastAccessed is always
// refreshed. Reconcile reports whether any field other than LastAccessed
// changed.
func (p *Paper) Reconcile(meta PaperMeta, now time.Time) bool {
	changed := false
	if p.Fields == nil {
		p.Fields = make(map[string]string, len(meta.Fields))
	}
	for k, v := range meta.Fields {
		v = strings.TrimSpace(v)
		if v == "" || p.Fields[k] == v {
			continue
		}
		p.Fields[k] = v
		changed = true
	}
	for k, v := range meta.Defaults {
		v = strings.TrimSpace(v)
		if v == "" || p.Fields[k] != "" {
			continue
		}
		p.Fields[k] = v
		changed = true
	}

	if meta.PDFLocation != nil && *meta.PDFLocation != "" {
		if p.PDFLocation == nil || *p.PDFLocation != *meta.PDFLocation {
			loc := *meta.PDFLocation
			p.PDFLocation = &loc
			changed = true
		}
	}

	if notes := JoinNotes(p.Notes, meta.Notes); notes != p.Notes {
		p.Notes = notes
		changed = true
	}

	p.LastAccessed = now
	return changed
}

// JoinNotes appends incoming to existing with NotesSeparator. A blank
// incoming note, or one already present as a segment, leaves existing as is.
func JoinNotes(existing, incoming string) string {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" {
		return existing
	}
	if existing == "" {
		return incoming
	}
	for _, seg := range strings.Split(existing, NotesSeparator) {
		if strings.TrimSpace(seg) == incoming {
			return existing
		}
	}
	return existing + NotesSeparator + incoming
}

// Title returns the title field, or "Untitled".
func (p *Paper) Title() string {
	if t := p.Fields[FieldTitle]; t != "" {
		return t
	}
	return "Untitled"
}

// AuthorList splits the author field on BibTeX "and", or on commas when no
// "and" appears.
func (p *Paper) AuthorList() []string {
	raw := strings.TrimSpace(p.Fields[FieldAuthor])
	if raw == "" {
		return nil
	}
	sep := ", "
	if strings.Contains(raw, " and ") {
		sep = " and "
	}
	var names []string
	for _, n := range strings.Split(raw, sep) {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// Authors returns a short author line: "A", "A and B" or "A et al.".
func (p *Paper) Authors() string {
	names := p.AuthorList()
	switch len(names) {
	case 0:
		return "Unknown"
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return names[0] + " et al."
	}
}

// Year returns the numeric year field, or 0 when absent or malformed.
func (p *Paper) Year() int {
	y, err := strconv.Atoi(strings.TrimSpace(p.Fields[FieldYear]))
	if err != nil {
		return 0
	}
	return y
}

// HasPDF reports whether a PDF location is recorded.
func (p *Paper) HasPDF() bool {
	return p.PDFLocation != nil && *p.PDFLocation != ""
}

// ShortID returns the first eight characters of the paper ID.
func (p *Paper) ShortID() string {
	if len(p.PaperID) <= 8 {
		return p.PaperID
	}
	return p.PaperID[:8]
}
