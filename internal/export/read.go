package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/bib/internal/contentid"
)

// maxLine bounds a single JSONL record; papers with long notes still fit.
const maxLine = 4 << 20

// Read parses JSONL written by Write. Blank lines are ignored. Lines that
// are not valid JSON or carry a malformed paper id are skipped and counted.
// Unknown fields are ignored.
func Read(r io.Reader) (records []Record, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.Paper == nil || !contentid.Valid(rec.PaperID) {
			skipped++
			continue
		}
		rec.PaperID = strings.ToLower(rec.PaperID)
		if rec.Fields == nil {
			rec.Fields = map[string]string{}
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return records, skipped, fmt.Errorf("reading records: %w", err)
	}
	return records, skipped, nil
}
