// Package sqlite implements the reference store and stack registry on top of
// a single SQLite database. Writers serialize on an exclusive lock file and
// run inside one SQL transaction; readers use WAL snapshots and never take
// the lock.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/bib/internal/lock"
	"github.com/mesh-intelligence/bib/pkg/types"
)

// DatabaseFile is the database created inside the data directory.
const DatabaseFile = "bib.db"

// Options configures Open.
type Options struct {
	// DataDir holds the database and lock file. Created if missing.
	DataDir string

	// DefaultStack names the stack created on first open. Empty means
	// types.DefaultStackName.
	DefaultStack string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

var _ types.Transactor = (*Backend)(nil)

// Backend owns the database handle and implements types.Transactor.
type Backend struct {
	mu       sync.Mutex
	db       *sql.DB
	dataDir  string
	lockPath string
	now      func() time.Time
}

// Open opens (creating if needed) the database in opts.DataDir, applies the
// schema and seeds the default stack and active pointer on first use. The
// bootstrap runs under the registry lock, so Open fails with ErrLocked while
// another process is mid-transaction on a fresh directory.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", types.ErrIO, err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	dsn := "file:" + dbPath +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", types.ErrIO, err)
	}
	// One process, one command at a time: a single connection keeps the
	// per-connection pragmas and the transaction on the same handle.
	db.SetMaxOpenConns(1)

	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	b := &Backend{
		db:       db,
		dataDir:  dataDir,
		lockPath: filepath.Join(dataDir, lock.FileName),
		now:      now,
	}

	defaultStack := opts.DefaultStack
	if defaultStack == "" {
		defaultStack = types.DefaultStackName
	}
	if err := b.bootstrap(ctx, defaultStack); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Close releases the database handle. Idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// DataDir returns the directory holding the database.
func (b *Backend) DataDir() string {
	return b.dataDir
}

// Update runs fn inside a write transaction while holding the registry
// lock. The transaction commits only if fn returns nil; otherwise, or if
// ctx is cancelled, every change fn made is rolled back.
func (b *Backend) Update(ctx context.Context, fn func(types.Tx) error) (err error) {
	l, err := lock.Acquire(b.lockPath)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(); rerr != nil && err == nil {
			err = fmt.Errorf("%w: release lock %s: %w", types.ErrIO, l.Path(), rerr)
		}
	}()
	return b.run(ctx, true, fn)
}

// View runs fn against a read-only snapshot without taking the lock.
func (b *Backend) View(ctx context.Context, fn func(types.Tx) error) error {
	return b.run(ctx, false, fn)
}

func (b *Backend) run(ctx context.Context, writable bool, fn func(types.Tx) error) error {
	b.mu.Lock()
	db := b.db
	b.mu.Unlock()
	if db == nil {
		return fmt.Errorf("%w: backend is closed", types.ErrIO)
	}

	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ioErr("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txn{ctx: ctx, tx: sqlTx, writable: writable, now: b.now}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return ioErr("commit", err)
	}
	return nil
}

// bootstrap creates the schema and guarantees the registry is never empty
// and the active pointer names an existing stack. A store that is already
// consistent is left alone without taking the lock, so readers can open it
// while a writer holds the lock.
func (b *Backend) bootstrap(ctx context.Context, defaultStack string) error {
	if b.ready(ctx) {
		return nil
	}
	return b.Update(ctx, func(tx types.Tx) error {
		t := tx.(*txn)
		for _, stmt := range schemaDDL {
			if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
				return ioErr("apply schema", err)
			}
		}

		stacks, err := t.stacks()
		if err != nil {
			return err
		}
		if len(stacks) == 0 {
			if _, err := t.CreateStack(defaultStack); err != nil {
				return err
			}
			stacks, err = t.stacks()
			if err != nil {
				return err
			}
		}

		active, err := t.activeName()
		if err != nil {
			return err
		}
		for _, s := range stacks {
			if s.Name == active {
				return nil
			}
		}
		// Missing or dangling pointer: prefer the default stack, else the
		// first stack by name.
		target := stacks[0].Name
		for _, s := range stacks {
			if s.Name == defaultStack {
				target = s.Name
				break
			}
		}
		return t.SetActive(target)
	})
}

// ioErr wraps a driver error so that it matches types.ErrIO.
func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrIO, op, err)
}

// ready reports whether the schema exists and the active pointer names an
// existing stack.
func (b *Backend) ready(ctx context.Context) bool {
	err := b.View(ctx, func(tx types.Tx) error {
		name, err := tx.Active()
		if err != nil {
			return err
		}
		_, err = tx.GetStack(name)
		return err
	})
	return err == nil
}
