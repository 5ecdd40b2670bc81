// This file implements the reference store: content-addressed paper records.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/bib/internal/contentid"
	"github.com/mesh-intelligence/bib/pkg/types"
)

const paperColumns = "p.paper_id, p.fields, p.notes, p.pdf_location, p.created_at, p.last_accessed"

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// hydratePaper converts a papers row into a Paper.
func hydratePaper(row scanner) (*types.Paper, error) {
	var (
		p                   types.Paper
		fields              string
		pdf                 sql.NullString
		createdAt, accessed string
	)
	if err := row.Scan(&p.PaperID, &fields, &p.Notes, &pdf, &createdAt, &accessed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &p.Fields); err != nil {
		return nil, fmt.Errorf("%w: decode fields of %s: %w", types.ErrIO, p.PaperID, err)
	}
	if p.Fields == nil {
		p.Fields = map[string]string{}
	}
	if pdf.Valid {
		loc := pdf.String
		p.PDFLocation = &loc
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.LastAccessed, err = parseTime(accessed); err != nil {
		return nil, err
	}
	return &p, nil
}

func nullablePDF(p *types.Paper) any {
	if p.PDFLocation == nil {
		return nil
	}
	return *p.PDFLocation
}

// UpsertPaper is the only place duplicate content is detected: a second
// upsert of the same id reconciles metadata into the stored row instead of
// inserting.
func (t *txn) UpsertPaper(id string, meta types.PaperMeta) (*types.Paper, bool, error) {
	if err := t.checkWritable("upsert paper"); err != nil {
		return nil, false, err
	}
	if id == "" {
		return nil, false, types.ErrInvalidContent
	}

	existing, err := t.GetPaper(id)
	switch {
	case errors.Is(err, types.ErrPaperNotFound):
		p := types.NewPaper(id, meta, t.now())
		fields, err := json.Marshal(p.Fields)
		if err != nil {
			return nil, false, fmt.Errorf("encode fields: %w", err)
		}
		if _, err := t.exec("insert paper",
			"INSERT INTO papers (paper_id, fields, notes, pdf_location, created_at, last_accessed) VALUES (?, ?, ?, ?, ?, ?)",
			p.PaperID, string(fields), p.Notes, nullablePDF(p), formatTime(p.CreatedAt), formatTime(p.LastAccessed),
		); err != nil {
			return nil, false, err
		}
		return p, true, nil
	case err != nil:
		return nil, false, err
	}

	existing.Reconcile(meta, t.now())
	fields, err := json.Marshal(existing.Fields)
	if err != nil {
		return nil, false, fmt.Errorf("encode fields: %w", err)
	}
	if _, err := t.exec("update paper",
		"UPDATE papers SET fields = ?, notes = ?, pdf_location = ?, last_accessed = ? WHERE paper_id = ?",
		string(fields), existing.Notes, nullablePDF(existing), formatTime(existing.LastAccessed), id,
	); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetPaper returns ErrPaperNotFound for an unknown id.
func (t *txn) GetPaper(id string) (*types.Paper, error) {
	row := t.tx.QueryRowContext(t.ctx,
		"SELECT "+paperColumns+" FROM papers p WHERE p.paper_id = ?", id)
	p, err := hydratePaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", types.ErrPaperNotFound, id)
	}
	if err != nil {
		if errors.Is(err, types.ErrIO) {
			return nil, err
		}
		return nil, ioErr("get paper", err)
	}
	return p, nil
}

// ResolvePaperID accepts a full id or a unique prefix of at least
// contentid.MinPrefix characters.
func (t *txn) ResolvePaperID(prefix string) (string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < contentid.MinPrefix {
		return "", fmt.Errorf("%w: id prefix %q is shorter than %d characters",
			types.ErrPaperNotFound, prefix, contentid.MinPrefix)
	}
	if strings.ContainsAny(prefix, "%_") {
		return "", fmt.Errorf("%w: %q", types.ErrPaperNotFound, prefix)
	}

	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT paper_id FROM papers WHERE paper_id LIKE ? ORDER BY paper_id LIMIT 2", prefix+"%")
	if err != nil {
		return "", ioErr("resolve paper id", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", ioErr("resolve paper id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", ioErr("resolve paper id", err)
	}

	switch {
	case len(ids) == 0:
		return "", fmt.Errorf("%w: %q", types.ErrPaperNotFound, prefix)
	case len(ids) > 1 && ids[0] != prefix:
		return "", fmt.Errorf("%w: %q matches more than one paper", types.ErrAmbiguousID, prefix)
	}
	return ids[0], nil
}

// ListPapers returns papers ordered by creation time.
func (t *txn) ListPapers(stack string) ([]*types.Paper, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if stack == types.AllStacks {
		rows, err = t.tx.QueryContext(t.ctx,
			"SELECT "+paperColumns+" FROM papers p ORDER BY p.created_at, p.paper_id")
	} else {
		s, serr := t.GetStack(stack)
		if serr != nil {
			return nil, serr
		}
		rows, err = t.tx.QueryContext(t.ctx,
			"SELECT "+paperColumns+" FROM papers p JOIN memberships m ON m.paper_id = p.paper_id"+
				" WHERE m.stack_id = ? ORDER BY p.created_at, p.paper_id", s.StackID)
	}
	if err != nil {
		return nil, ioErr("list papers", err)
	}
	defer rows.Close()

	var papers []*types.Paper
	for rows.Next() {
		p, err := hydratePaper(rows)
		if err != nil {
			if errors.Is(err, types.ErrIO) {
				return nil, err
			}
			return nil, ioErr("list papers", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list papers", err)
	}
	return papers, nil
}

// DetachPaper strips id from every stack without touching the record.
func (t *txn) DetachPaper(id string) (int, error) {
	if err := t.checkWritable("detach paper"); err != nil {
		return 0, err
	}
	if _, err := t.GetPaper(id); err != nil {
		return 0, err
	}
	res, err := t.exec("detach paper", "DELETE FROM memberships WHERE paper_id = ?", id)
	if err != nil {
		return 0, err
	}
	return rowsAffected("detach paper", res)
}

// DeletePaper refuses to orphan memberships: a referenced paper fails with
// ErrConflict and must be detached first.
func (t *txn) DeletePaper(id string) error {
	if err := t.checkWritable("delete paper"); err != nil {
		return err
	}
	if _, err := t.GetPaper(id); err != nil {
		return err
	}

	var refs int
	if err := t.tx.QueryRowContext(t.ctx,
		"SELECT COUNT(*) FROM memberships WHERE paper_id = ?", id,
	).Scan(&refs); err != nil {
		return ioErr("count memberships", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: %q is in %d stack(s); detach it first", types.ErrConflict, id, refs)
	}

	_, err := t.exec("delete paper", "DELETE FROM papers WHERE paper_id = ?", id)
	return err
}
