// Package sqlite exposes the SQLite store to programs that embed bib while
// keeping the implementation internal.
package sqlite

import (
	"context"

	"github.com/mesh-intelligence/bib/internal/sqlite"
	"github.com/mesh-intelligence/bib/pkg/types"
)

// Options configures Open. See the field docs on the internal type.
type Options = sqlite.Options

// Store is an open registry. Close releases the database handle.
type Store interface {
	types.Transactor
	Close() error
}

// Open opens (creating if needed) the registry in opts.DataDir.
//
// Example:
//
//	store, err := sqlite.Open(ctx, sqlite.Options{DataDir: dir})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//	err = store.View(ctx, func(tx types.Tx) error {
//		stacks, err := tx.ListStacks()
//		...
//	})
func Open(ctx context.Context, opts Options) (Store, error) {
	b, err := sqlite.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return b, nil
}
