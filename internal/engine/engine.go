// Package engine implements the registry operations over a types.Transactor.
// Every mutating operation runs as a single Update, so a failure at any step
// rolls back the membership changes and metadata reconciliation made before
// it.
package engine

import (
	"context"
	"log/slog"

	"github.com/mesh-intelligence/bib/pkg/types"
)

// Engine applies stack and paper operations atomically.
type Engine struct {
	store  types.Transactor
	log    *slog.Logger
	ranker types.Ranker
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for committed operations.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRanker sets the ranker used by Find.
func WithRanker(r types.Ranker) Option {
	return func(e *Engine) {
		e.ranker = r
	}
}

// New returns an Engine backed by store.
func New(store types.Transactor, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		log:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// update runs fn in a write transaction and logs op once it commits.
func (e *Engine) update(ctx context.Context, op string, fn func(types.Tx) ([]slog.Attr, error)) error {
	var attrs []slog.Attr
	err := e.store.Update(ctx, func(tx types.Tx) error {
		var err error
		attrs, err = fn(tx)
		return err
	})
	if err != nil {
		e.log.LogAttrs(ctx, slog.LevelDebug, "operation aborted",
			slog.String("op", op), slog.String("error", err.Error()))
		return err
	}
	e.log.LogAttrs(ctx, slog.LevelDebug, "operation committed",
		append([]slog.Attr{slog.String("op", op)}, attrs...)...)
	return nil
}

func (e *Engine) view(ctx context.Context, fn func(types.Tx) error) error {
	return e.store.View(ctx, fn)
}

// stackOrActive resolves an empty stack argument to the active stack.
func stackOrActive(tx types.Tx, stack string) (string, error) {
	if stack != "" {
		return stack, nil
	}
	return tx.Active()
}
