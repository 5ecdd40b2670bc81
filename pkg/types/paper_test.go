package types

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestNewPaper(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewPaper("abc", PaperMeta{
		Fields:      map[string]string{FieldTitle: " Attention ", FieldDOI: ""},
		Notes:       "  first read  ",
		PDFLocation: strPtr(""),
	}, now)

	if p.Fields[FieldTitle] != "Attention" {
		t.Errorf("title = %q", p.Fields[FieldTitle])
	}
	if _, ok := p.Fields[FieldDOI]; ok {
		t.Error("empty fields should not be stored")
	}
	if p.Notes != "first read" {
		t.Errorf("notes = %q", p.Notes)
	}
	if p.PDFLocation != nil {
		t.Error("empty pdf location should stay nil")
	}
	if !p.CreatedAt.Equal(now) || !p.LastAccessed.Equal(now) {
		t.Error("timestamps should be set to now")
	}

	q := NewPaper("def", PaperMeta{
		Fields:   map[string]string{FieldTitle: "Given"},
		Defaults: map[string]string{FieldTitle: "guess", FieldYear: "2020"},
	}, now)
	if q.Fields[FieldTitle] != "Given" || q.Fields[FieldYear] != "2020" {
		t.Errorf("fields = %v", q.Fields)
	}
}

func TestPaperReconcile(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)

	base := func() *Paper {
		return NewPaper("abc", PaperMeta{
			Fields:      map[string]string{FieldTitle: "Old", FieldYear: "2017"},
			Notes:       "first",
			PDFLocation: strPtr("/papers/a.pdf"),
		}, created)
	}

	t.Run("newer non-empty fields win", func(t *testing.T) {
		p := base()
		changed := p.Reconcile(PaperMeta{Fields: map[string]string{FieldTitle: "New", FieldAuthor: "Vaswani"}}, later)
		if !changed {
			t.Fatal("expected a change")
		}
		if p.Fields[FieldTitle] != "New" || p.Fields[FieldAuthor] != "Vaswani" || p.Fields[FieldYear] != "2017" {
			t.Fatalf("fields = %v", p.Fields)
		}
	})

	t.Run("empty values never overwrite", func(t *testing.T) {
		p := base()
		changed := p.Reconcile(PaperMeta{Fields: map[string]string{FieldTitle: ""}, PDFLocation: strPtr("")}, later)
		if changed {
			t.Fatal("expected no change")
		}
		if p.Fields[FieldTitle] != "Old" || *p.PDFLocation != "/papers/a.pdf" {
			t.Fatalf("populated values were cleared: %+v", p)
		}
		if !p.LastAccessed.Equal(later) {
			t.Error("last accessed should be refreshed")
		}
	})

	t.Run("pdf location replaced only when different", func(t *testing.T) {
		p := base()
		if p.Reconcile(PaperMeta{PDFLocation: strPtr("/papers/a.pdf")}, later) {
			t.Fatal("same location is not a change")
		}
		if !p.Reconcile(PaperMeta{PDFLocation: strPtr("https://arxiv.org/pdf/1706.03762")}, later) {
			t.Fatal("different location is a change")
		}
		if *p.PDFLocation != "https://arxiv.org/pdf/1706.03762" {
			t.Fatalf("pdf location = %q", *p.PDFLocation)
		}
	})

	t.Run("defaults fill gaps only", func(t *testing.T) {
		p := base()
		changed := p.Reconcile(PaperMeta{Defaults: map[string]string{
			FieldTitle: "download (1)",
			FieldURL:   "https://arxiv.org/abs/1706.03762",
		}}, later)
		if !changed {
			t.Fatal("expected the url to be filled")
		}
		if p.Fields[FieldTitle] != "Old" {
			t.Fatalf("default replaced a stored title: %q", p.Fields[FieldTitle])
		}
		if p.Fields[FieldURL] != "https://arxiv.org/abs/1706.03762" {
			t.Fatalf("url = %q", p.Fields[FieldURL])
		}
	})

	t.Run("notes are appended, never overwritten", func(t *testing.T) {
		p := base()
		p.Reconcile(PaperMeta{Notes: "second"}, later)
		if p.Notes != "first"+NotesSeparator+"second" {
			t.Fatalf("notes = %q", p.Notes)
		}
		p.Reconcile(PaperMeta{Notes: "second"}, later)
		if p.Notes != "first"+NotesSeparator+"second" {
			t.Fatalf("repeated note was appended again: %q", p.Notes)
		}
	})
}

func TestPaperAccessors(t *testing.T) {
	p := &Paper{PaperID: "0123456789abcdef", Fields: map[string]string{}}
	if p.Title() != "Untitled" || p.Authors() != "Unknown" || p.Year() != 0 {
		t.Fatalf("unexpected defaults: %q %q %d", p.Title(), p.Authors(), p.Year())
	}
	if p.ShortID() != "01234567" {
		t.Errorf("short id = %q", p.ShortID())
	}

	tests := []struct {
		author string
		want   string
	}{
		{"Vaswani", "Vaswani"},
		{"Vaswani, Shazeer", "Vaswani and Shazeer"},
		{"Vaswani and Shazeer and Parmar", "Vaswani et al."},
		{"  ", "Unknown"},
	}
	for _, tt := range tests {
		p.Fields[FieldAuthor] = tt.author
		if got := p.Authors(); got != tt.want {
			t.Errorf("Authors(%q) = %q, want %q", tt.author, got, tt.want)
		}
	}

	p.Fields[FieldYear] = "2017"
	if p.Year() != 2017 {
		t.Errorf("year = %d", p.Year())
	}
}
