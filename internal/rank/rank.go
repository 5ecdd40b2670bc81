// Package rank scores papers against a free-text query. It only reads the
// papers it is given.
package rank

import (
	"sort"
	"strings"
	"unicode"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// Per-token match strengths.
const (
	exactMatch  = 1.0
	prefixMatch = 0.8
	typoMatch   = 0.5
)

// Weights scale matches by the field they were found in.
type Weights struct {
	Title  float64
	Author float64
	Year   float64
	Notes  float64
}

// DefaultWeights favor titles, then authors.
var DefaultWeights = Weights{Title: 1.0, Author: 0.7, Year: 0.5, Notes: 0.3}

// TokenRanker matches query tokens against paper fields, tolerating
// prefixes and small typos.
type TokenRanker struct {
	weights Weights
}

var _ types.Ranker = (*TokenRanker)(nil)

// New returns a TokenRanker using DefaultWeights.
func New() *TokenRanker {
	return &TokenRanker{weights: DefaultWeights}
}

type field struct {
	tokens []string
	weight float64
}

// Rank returns the papers matching query, best first. Scores are in (0, 1];
// ties are ordered by paper id. A blank query matches nothing.
func (r *TokenRanker) Rank(query string, papers []*types.Paper) []types.Ranked {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	var out []types.Ranked
	for _, p := range papers {
		fields := []field{
			{Tokenize(p.Fields[types.FieldTitle]), r.weights.Title},
			{Tokenize(p.Fields[types.FieldAuthor]), r.weights.Author},
			{Tokenize(p.Fields[types.FieldYear]), r.weights.Year},
			{Tokenize(p.Notes), r.weights.Notes},
		}

		var total float64
		for _, term := range terms {
			var best float64
			for _, f := range fields {
				if s := bestMatch(term, f.tokens) * f.weight; s > best {
					best = s
				}
			}
			total += best
		}
		if total > 0 {
			out = append(out, types.Ranked{PaperID: p.PaperID, Score: total / float64(len(terms))})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PaperID < out[j].PaperID
	})
	return out
}

// Tokenize lowercases s and splits it on anything that is not a letter or
// digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func bestMatch(term string, tokens []string) float64 {
	var best float64
	for _, tok := range tokens {
		var s float64
		switch {
		case tok == term:
			return exactMatch
		case strings.HasPrefix(tok, term):
			s = prefixMatch
		case withinTypos(term, tok):
			s = typoMatch
		}
		if s > best {
			best = s
		}
	}
	return best
}

// withinTypos allows one edit for terms of four or more runes and two for
// eight or more. Shorter terms must match exactly or as a prefix.
func withinTypos(term, tok string) bool {
	n := len([]rune(term))
	var maxEdits int
	switch {
	case n >= 8:
		maxEdits = 2
	case n >= 4:
		maxEdits = 1
	default:
		return false
	}
	return levenshtein(term, tok) <= maxEdits
}

// levenshtein returns the edit distance between a and b, counted in runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		for i := 1; i <= len(ra); i++ {
			if ra[i-1] == rb[j-1] {
				curr[i] = prev[i-1]
			} else {
				curr[i] = 1 + min(prev[i-1], prev[i], curr[i-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}
