package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// ForkResult describes a completed Fork.
type ForkResult struct {
	Stack      string `json:"stack"`
	From       string `json:"from"`
	Papers     int    `json:"papers"`
	CheckedOut bool   `json:"checked_out"`
}

// Fork creates newName holding a copy of from's membership. An empty from
// means the active stack. The two sets are independent afterwards. With
// checkout set the active pointer moves to the fork in the same
// transaction.
func (e *Engine) Fork(ctx context.Context, newName, from string, checkout bool) (ForkResult, error) {
	var res ForkResult
	err := e.update(ctx, "fork", func(tx types.Tx) ([]slog.Attr, error) {
		src, err := stackOrActive(tx, from)
		if err != nil {
			return nil, err
		}
		if _, err := tx.GetStack(src); err != nil {
			return nil, err
		}
		if _, err := tx.CreateStack(newName); err != nil {
			return nil, err
		}
		n, err := tx.Union(newName, src)
		if err != nil {
			return nil, err
		}
		if checkout {
			if err := tx.SetActive(newName); err != nil {
				return nil, err
			}
		}
		res = ForkResult{Stack: newName, From: src, Papers: n, CheckedOut: checkout}
		return []slog.Attr{
			slog.String("stack", newName),
			slog.String("target", src),
			slog.Int("added", n),
		}, nil
	})
	return res, err
}

// TransferResult describes a completed Yank, Yeet or Merge: Added papers
// entered To from From.
type TransferResult struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Added   int    `json:"added"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Yank unions target's membership into the active stack. target is left
// unchanged; yanking the active stack into itself is a no-op. No paper
// metadata is touched.
func (e *Engine) Yank(ctx context.Context, target string) (TransferResult, error) {
	var res TransferResult
	err := e.update(ctx, "yank", func(tx types.Tx) ([]slog.Attr, error) {
		active, err := tx.Active()
		if err != nil {
			return nil, err
		}
		res = TransferResult{From: target, To: active}
		if res.Added, err = transfer(tx, active, target); err != nil {
			return nil, err
		}
		return transferAttrs(res), nil
	})
	return res, err
}

// Yeet unions the active stack's membership into target. The active stack is
// left unchanged and target is not deleted.
func (e *Engine) Yeet(ctx context.Context, target string) (TransferResult, error) {
	var res TransferResult
	err := e.update(ctx, "yeet", func(tx types.Tx) ([]slog.Attr, error) {
		active, err := tx.Active()
		if err != nil {
			return nil, err
		}
		res = TransferResult{From: active, To: target}
		if res.Added, err = transfer(tx, target, active); err != nil {
			return nil, err
		}
		return transferAttrs(res), nil
	})
	return res, err
}

// Merge yanks target into the active stack and then deletes target, as one
// transaction. Merging the active stack fails with ErrSameStack.
func (e *Engine) Merge(ctx context.Context, target string) (TransferResult, error) {
	var res TransferResult
	err := e.update(ctx, "merge", func(tx types.Tx) ([]slog.Attr, error) {
		active, err := tx.Active()
		if err != nil {
			return nil, err
		}
		if target == active {
			return nil, fmt.Errorf("%w: cannot merge %q into itself", types.ErrSameStack, target)
		}
		res = TransferResult{From: target, To: active}
		if res.Added, err = transfer(tx, active, target); err != nil {
			return nil, err
		}
		if err := tx.DeleteStack(target); err != nil {
			return nil, err
		}
		res.Deleted = true
		return transferAttrs(res), nil
	})
	return res, err
}

// transfer unions src into dst after checking both exist.
func transfer(tx types.Tx, dst, src string) (int, error) {
	for _, name := range []string{src, dst} {
		if _, err := tx.GetStack(name); err != nil {
			return 0, err
		}
	}
	if dst == src {
		return 0, nil
	}
	return tx.Union(dst, src)
}

func transferAttrs(res TransferResult) []slog.Attr {
	return []slog.Attr{
		slog.String("stack", res.To),
		slog.String("target", res.From),
		slog.Int("added", res.Added),
	}
}
