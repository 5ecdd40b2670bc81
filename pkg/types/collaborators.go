package types

import "context"

// Content kinds. The kind selects how raw bytes are normalized before
// hashing.
const (
	ContentPDF  = "pdf"
	ContentText = "text"
)

// RawContent is what an Importer hands to the store: the bytes a paper id is
// derived from, plus where they came from.
type RawContent struct {
	Bytes     []byte
	Kind      string
	OriginURL string
	// Path is the local file the bytes were read from, if any.
	Path string
	// Meta holds citation data the importer could extract itself.
	Meta PaperMeta
}

// Importer fetches and parses source material. It never touches the store.
type Importer interface {
	Fetch(ctx context.Context, source string) (RawContent, error)
}

// Ranked is one scored search hit.
type Ranked struct {
	PaperID string  `json:"paper_id"`
	Score   float64 `json:"score"`
}

// Ranker orders papers by relevance to a query. It is read-only.
type Ranker interface {
	Rank(query string, papers []*Paper) []Ranked
}
