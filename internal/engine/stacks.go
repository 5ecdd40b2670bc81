package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// List returns every stack ordered by name with the active one flagged.
func (e *Engine) List(ctx context.Context) ([]types.StackEntry, error) {
	var entries []types.StackEntry
	err := e.view(ctx, func(tx types.Tx) error {
		var err error
		entries, err = tx.ListStacks()
		return err
	})
	return entries, err
}

// Active returns the name of the active stack.
func (e *Engine) Active(ctx context.Context) (string, error) {
	var name string
	err := e.view(ctx, func(tx types.Tx) error {
		var err error
		name, err = tx.Active()
		return err
	})
	return name, err
}

// Create adds an empty stack. The active pointer does not move.
func (e *Engine) Create(ctx context.Context, name string) (*types.Stack, error) {
	var s *types.Stack
	err := e.update(ctx, "create", func(tx types.Tx) ([]slog.Attr, error) {
		var err error
		s, err = tx.CreateStack(name)
		return []slog.Attr{slog.String("stack", name)}, err
	})
	return s, err
}

// Delete removes a stack and its memberships. The active stack cannot be
// deleted.
func (e *Engine) Delete(ctx context.Context, name string) error {
	return e.update(ctx, "delete", func(tx types.Tx) ([]slog.Attr, error) {
		return []slog.Attr{slog.String("stack", name)}, tx.DeleteStack(name)
	})
}

// Rename renames a stack; the active pointer follows.
func (e *Engine) Rename(ctx context.Context, name, newName string) error {
	return e.update(ctx, "rename", func(tx types.Tx) ([]slog.Attr, error) {
		return []slog.Attr{slog.String("stack", name), slog.String("target", newName)},
			tx.RenameStack(name, newName)
	})
}

// CheckoutResult describes a completed Checkout.
type CheckoutResult struct {
	Stack    string `json:"stack"`
	Previous string `json:"previous"`
	Created  bool   `json:"created"`
}

// Checkout points the active pointer at name. A missing stack fails with
// ErrStackNotFound unless create is set, in which case it is created empty
// in the same transaction.
func (e *Engine) Checkout(ctx context.Context, name string, create bool) (CheckoutResult, error) {
	res := CheckoutResult{Stack: name}
	err := e.update(ctx, "checkout", func(tx types.Tx) ([]slog.Attr, error) {
		var err error
		if res.Previous, err = tx.Active(); err != nil {
			return nil, err
		}
		_, err = tx.GetStack(name)
		switch {
		case errors.Is(err, types.ErrStackNotFound) && create:
			if _, err := tx.CreateStack(name); err != nil {
				return nil, err
			}
			res.Created = true
		case err != nil:
			return nil, err
		}
		return []slog.Attr{slog.String("stack", name), slog.Bool("created", res.Created)},
			tx.SetActive(name)
	})
	return res, err
}

// CreateAndCheckout creates name and makes it active in one transaction.
// Unlike Checkout with create set, an existing stack fails with
// ErrAlreadyExists.
func (e *Engine) CreateAndCheckout(ctx context.Context, name string) (CheckoutResult, error) {
	res := CheckoutResult{Stack: name, Created: true}
	err := e.update(ctx, "checkout", func(tx types.Tx) ([]slog.Attr, error) {
		var err error
		if res.Previous, err = tx.Active(); err != nil {
			return nil, err
		}
		if _, err := tx.CreateStack(name); err != nil {
			return nil, err
		}
		return []slog.Attr{slog.String("stack", name), slog.Bool("created", true)},
			tx.SetActive(name)
	})
	return res, err
}

// AuthorCount is one row of Status's author ranking.
type AuthorCount struct {
	Name   string `json:"name"`
	Papers int    `json:"papers"`
}

// StatusResult summarizes the active stack.
type StatusResult struct {
	Stack      string        `json:"stack"`
	Color      string        `json:"color"`
	Papers     int           `json:"papers"`
	TopAuthors []AuthorCount `json:"top_authors"`
}

// Status reports the active stack, its paper count and its top authors by
// paper count (ties by name), at most top of them when top > 0.
func (e *Engine) Status(ctx context.Context, top int) (StatusResult, error) {
	var res StatusResult
	err := e.view(ctx, func(tx types.Tx) error {
		active, err := tx.Active()
		if err != nil {
			return err
		}
		s, err := tx.GetStack(active)
		if err != nil {
			return err
		}
		papers, err := tx.ListPapers(active)
		if err != nil {
			return err
		}
		res = StatusResult{Stack: s.Name, Color: s.Color, Papers: len(papers)}

		counts := make(map[string]int)
		for _, p := range papers {
			for _, name := range p.AuthorList() {
				counts[name]++
			}
		}
		res.TopAuthors = make([]AuthorCount, 0, len(counts))
		for name, n := range counts {
			res.TopAuthors = append(res.TopAuthors, AuthorCount{Name: name, Papers: n})
		}
		sort.Slice(res.TopAuthors, func(i, j int) bool {
			a, b := res.TopAuthors[i], res.TopAuthors[j]
			if a.Papers != b.Papers {
				return a.Papers > b.Papers
			}
			return a.Name < b.Name
		})
		if top > 0 && len(res.TopAuthors) > top {
			res.TopAuthors = res.TopAuthors[:top]
		}
		return nil
	})
	return res, err
}

// ToggleResult describes a completed Toggle.
type ToggleResult struct {
	Stack   string `json:"stack"`
	PaperID string `json:"paper_id"`
	Added   bool   `json:"added"`
}

// Toggle adds the paper to stack if absent and removes it if present. An
// empty stack means the active stack; paperRef may be a unique id prefix.
func (e *Engine) Toggle(ctx context.Context, stack, paperRef string) (ToggleResult, error) {
	var res ToggleResult
	err := e.update(ctx, "toggle", func(tx types.Tx) ([]slog.Attr, error) {
		name, err := stackOrActive(tx, stack)
		if err != nil {
			return nil, err
		}
		if _, err := tx.GetStack(name); err != nil {
			return nil, err
		}
		id, err := tx.ResolvePaperID(paperRef)
		if err != nil {
			return nil, err
		}
		res = ToggleResult{Stack: name, PaperID: id}

		present, err := tx.HasMember(name, id)
		if err != nil {
			return nil, err
		}
		if present {
			_, err = tx.RemoveMember(name, id)
		} else {
			res.Added, err = tx.AddMember(name, id)
		}
		return []slog.Attr{
			slog.String("stack", name),
			slog.String("paper", id),
			slog.Bool("added", res.Added),
		}, err
	})
	return res, err
}
