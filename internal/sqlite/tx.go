package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/bib/pkg/types"
)

var _ types.Tx = (*txn)(nil)

// txn implements types.Tx over one SQL transaction. Store operations live
// in papers_table.go, registry operations in stacks_table.go.
type txn struct {
	ctx      context.Context
	tx       *sql.Tx
	writable bool
	now      func() time.Time
}

// timeLayout is used for every persisted timestamp. The fraction is fixed
// width so that text order in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse timestamp %q: %w", types.ErrIO, s, err)
	}
	return t, nil
}

// checkWritable rejects mutations attempted inside View.
func (t *txn) checkWritable(op string) error {
	if !t.writable {
		return fmt.Errorf("%w: %s in read-only transaction", types.ErrIO, op)
	}
	return nil
}

func (t *txn) exec(op, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(t.ctx, query, args...)
	if err != nil {
		return nil, ioErr(op, err)
	}
	return res, nil
}

func rowsAffected(op string, res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ioErr(op, err)
	}
	return int(n), nil
}
