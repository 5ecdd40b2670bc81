// This file implements the stack registry: named stacks, their membership
// sets and the active pointer.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/bib/pkg/types"
)

func hydrateStack(row scanner) (*types.Stack, error) {
	var (
		s         types.Stack
		createdAt string
	)
	if err := row.Scan(&s.StackID, &s.Name, &s.Color, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// stacks returns every stack ordered by name.
func (t *txn) stacks() ([]types.Stack, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT stack_id, name, color, created_at FROM stacks ORDER BY name")
	if err != nil {
		return nil, ioErr("list stacks", err)
	}
	defer rows.Close()

	var out []types.Stack
	for rows.Next() {
		s, err := hydrateStack(rows)
		if err != nil {
			if errors.Is(err, types.ErrIO) {
				return nil, err
			}
			return nil, ioErr("list stacks", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list stacks", err)
	}
	return out, nil
}

// activeName returns the stored pointer, or "" when none is set.
func (t *txn) activeName() (string, error) {
	var name string
	err := t.tx.QueryRowContext(t.ctx, "SELECT name FROM active_stack WHERE singleton = 1").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", ioErr("read active stack", err)
	}
	return name, nil
}

func (t *txn) stackExists(name string) (bool, error) {
	var n int
	if err := t.tx.QueryRowContext(t.ctx,
		"SELECT COUNT(*) FROM stacks WHERE name = ?", name,
	).Scan(&n); err != nil {
		return false, ioErr("lookup stack", err)
	}
	return n > 0, nil
}

// ListStacks returns every stack with its paper count, ordered by name.
func (t *txn) ListStacks() ([]types.StackEntry, error) {
	active, err := t.activeName()
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT s.stack_id, s.name, s.color, s.created_at, COUNT(m.paper_id)
		FROM stacks s
		LEFT JOIN memberships m ON m.stack_id = s.stack_id
		GROUP BY s.stack_id
		ORDER BY s.name`)
	if err != nil {
		return nil, ioErr("list stacks", err)
	}
	defer rows.Close()

	var out []types.StackEntry
	for rows.Next() {
		var (
			e         types.StackEntry
			createdAt string
		)
		if err := rows.Scan(&e.StackID, &e.Name, &e.Color, &createdAt, &e.PaperCount); err != nil {
			return nil, ioErr("list stacks", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		e.Active = e.Name == active
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list stacks", err)
	}
	return out, nil
}

// GetStack returns ErrStackNotFound for an unknown name, including "all".
func (t *txn) GetStack(name string) (*types.Stack, error) {
	row := t.tx.QueryRowContext(t.ctx,
		"SELECT stack_id, name, color, created_at FROM stacks WHERE name = ?", name)
	s, err := hydrateStack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", types.ErrStackNotFound, name)
	}
	if err != nil {
		if errors.Is(err, types.ErrIO) {
			return nil, err
		}
		return nil, ioErr("get stack", err)
	}
	return s, nil
}

// CreateStack adds an empty stack with the least-used palette color.
func (t *txn) CreateStack(name string) (*types.Stack, error) {
	if err := t.checkWritable("create stack"); err != nil {
		return nil, err
	}
	if err := types.ValidateStackName(name); err != nil {
		return nil, err
	}
	exists, err := t.stackExists(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %q", types.ErrAlreadyExists, name)
	}

	existing, err := t.stacks()
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate stack id: %w", err)
	}
	s := &types.Stack{
		StackID:   id.String(),
		Name:      name,
		Color:     types.PickColor(existing),
		CreatedAt: t.now(),
	}
	if _, err := t.exec("insert stack",
		"INSERT INTO stacks (stack_id, name, color, created_at) VALUES (?, ?, ?, ?)",
		s.StackID, s.Name, s.Color, formatTime(s.CreatedAt),
	); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteStack removes name and, through the foreign key cascade, its
// memberships. Papers are never deleted.
func (t *txn) DeleteStack(name string) error {
	if err := t.checkWritable("delete stack"); err != nil {
		return err
	}
	active, err := t.activeName()
	if err != nil {
		return err
	}
	if name == active {
		return fmt.Errorf("%w: %q", types.ErrCannotDeleteActive, name)
	}
	res, err := t.exec("delete stack", "DELETE FROM stacks WHERE name = ?", name)
	if err != nil {
		return err
	}
	n, err := rowsAffected("delete stack", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", types.ErrStackNotFound, name)
	}
	return nil
}

// RenameStack keeps the stack id, color and memberships; only the name
// changes. The active pointer follows the rename.
func (t *txn) RenameStack(name, newName string) error {
	if err := t.checkWritable("rename stack"); err != nil {
		return err
	}
	if err := types.ValidateStackName(newName); err != nil {
		return err
	}
	if _, err := t.GetStack(name); err != nil {
		return err
	}
	if name == newName {
		return nil
	}
	exists, err := t.stackExists(newName)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %q", types.ErrAlreadyExists, newName)
	}

	if _, err := t.exec("rename stack",
		"UPDATE stacks SET name = ? WHERE name = ?", newName, name); err != nil {
		return err
	}
	_, err = t.exec("move active pointer",
		"UPDATE active_stack SET name = ? WHERE singleton = 1 AND name = ?", newName, name)
	return err
}

// Active returns the active stack name.
func (t *txn) Active() (string, error) {
	name, err := t.activeName()
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("%w: no active stack", types.ErrStackNotFound)
	}
	return name, nil
}

// SetActive points the active pointer at name.
func (t *txn) SetActive(name string) error {
	if err := t.checkWritable("set active stack"); err != nil {
		return err
	}
	if _, err := t.GetStack(name); err != nil {
		return err
	}
	_, err := t.exec("set active stack",
		"INSERT INTO active_stack (singleton, name) VALUES (1, ?) ON CONFLICT(singleton) DO UPDATE SET name = excluded.name",
		name)
	return err
}

// Members returns the sorted paper ids referenced by stack.
func (t *txn) Members(stack string) ([]string, error) {
	s, err := t.GetStack(stack)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT paper_id FROM memberships WHERE stack_id = ? ORDER BY paper_id", s.StackID)
	if err != nil {
		return nil, ioErr("list members", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ioErr("list members", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list members", err)
	}
	return ids, nil
}

func (t *txn) StacksOf(id string) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT s.name FROM memberships m JOIN stacks s ON s.stack_id = m.stack_id WHERE m.paper_id = ? ORDER BY s.name", id)
	if err != nil {
		return nil, ioErr("list stacks of paper", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, ioErr("list stacks of paper", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list stacks of paper", err)
	}
	return names, nil
}

func (t *txn) HasMember(stack, id string) (bool, error) {
	s, err := t.GetStack(stack)
	if err != nil {
		return false, err
	}
	var n int
	if err := t.tx.QueryRowContext(t.ctx,
		"SELECT COUNT(*) FROM memberships WHERE stack_id = ? AND paper_id = ?", s.StackID, id,
	).Scan(&n); err != nil {
		return false, ioErr("lookup membership", err)
	}
	return n > 0, nil
}

// AddMember requires both the stack and the paper to exist.
func (t *txn) AddMember(stack, id string) (bool, error) {
	if err := t.checkWritable("add member"); err != nil {
		return false, err
	}
	s, err := t.GetStack(stack)
	if err != nil {
		return false, err
	}
	if _, err := t.GetPaper(id); err != nil {
		return false, err
	}
	res, err := t.exec("add member",
		"INSERT OR IGNORE INTO memberships (stack_id, paper_id, added_at) VALUES (?, ?, ?)",
		s.StackID, id, formatTime(t.now()))
	if err != nil {
		return false, err
	}
	n, err := rowsAffected("add member", res)
	return n > 0, err
}

func (t *txn) RemoveMember(stack, id string) (bool, error) {
	if err := t.checkWritable("remove member"); err != nil {
		return false, err
	}
	s, err := t.GetStack(stack)
	if err != nil {
		return false, err
	}
	res, err := t.exec("remove member",
		"DELETE FROM memberships WHERE stack_id = ? AND paper_id = ?", s.StackID, id)
	if err != nil {
		return false, err
	}
	n, err := rowsAffected("remove member", res)
	return n > 0, err
}

// Union copies src's memberships into dst in one statement.
func (t *txn) Union(dst, src string) (int, error) {
	if err := t.checkWritable("union"); err != nil {
		return 0, err
	}
	d, err := t.GetStack(dst)
	if err != nil {
		return 0, err
	}
	s, err := t.GetStack(src)
	if err != nil {
		return 0, err
	}
	if d.StackID == s.StackID {
		return 0, nil
	}
	res, err := t.exec("union stacks",
		"INSERT OR IGNORE INTO memberships (stack_id, paper_id, added_at) SELECT ?, paper_id, ? FROM memberships WHERE stack_id = ?",
		d.StackID, formatTime(t.now()), s.StackID)
	if err != nil {
		return 0, err
	}
	return rowsAffected("union stacks", res)
}
