// Package contentid derives paper ids from normalized content. Identical
// content always produces the same id regardless of how it was imported.
package contentid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// Size is the number of hash bytes kept in an id.
const Size = 16

// MinPrefix is the shortest id prefix accepted when resolving papers.
const MinPrefix = 4

// Sum returns the hex-encoded id for content of the given kind. Text is
// normalized first; PDF and unknown kinds are hashed byte for byte.
func Sum(kind string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", types.ErrInvalidContent
	}
	if kind == "" {
		kind = types.ContentPDF
	}
	if kind == types.ContentText {
		data = []byte(NormalizeText(string(data)))
		if len(data) == 0 {
			return "", fmt.Errorf("%w: text is blank", types.ErrInvalidContent)
		}
	}

	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)[:Size]), nil
}

// NormalizeText canonicalizes bibliographic text so that cosmetic
// differences do not change its id: line endings are unified, each line is
// trimmed, runs of blanks collapse to one space, and blank lines are dropped.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

// Valid reports whether s looks like a full id produced by Sum.
func Valid(s string) bool {
	if len(s) != 2*Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
