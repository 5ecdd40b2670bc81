package types

import "context"

// Tx is the view of the reference store and stack registry available inside
// one transaction. Every method either applies fully as part of the
// enclosing transaction or returns an error; the transaction owner decides
// whether to commit.
type Tx interface {
	// UpsertPaper inserts a record for id or reconciles meta into the
	// existing one. created reports whether a new record was inserted.
	UpsertPaper(id string, meta PaperMeta) (paper *Paper, created bool, err error)

	// GetPaper returns ErrPaperNotFound if no record has the given id.
	GetPaper(id string) (*Paper, error)

	// ResolvePaperID expands a unique id prefix into a full paper id.
	// Returns ErrPaperNotFound or ErrAmbiguousID.
	ResolvePaperID(prefix string) (string, error)

	// ListPapers returns the papers in stack, or every stored paper when
	// stack is AllStacks.
	ListPapers(stack string) ([]*Paper, error)

	// DetachPaper removes id from every stack and returns the number of
	// memberships removed. The record itself is kept.
	DetachPaper(id string) (int, error)

	// DeletePaper removes the record. Returns ErrConflict while any stack
	// still references it.
	DeletePaper(id string) error

	// ListStacks returns every stack ordered by name, the active one flagged.
	ListStacks() ([]StackEntry, error)

	// GetStack returns ErrStackNotFound if name is not a stack.
	GetStack(name string) (*Stack, error)

	// CreateStack returns ErrAlreadyExists if name is taken and
	// ErrInvalidName if name is not usable.
	CreateStack(name string) (*Stack, error)

	// DeleteStack removes the stack and its memberships. Returns
	// ErrCannotDeleteActive for the active stack.
	DeleteStack(name string) error

	// RenameStack renames a stack, moving the active pointer along with it.
	RenameStack(name, newName string) error

	// Active returns the name the active pointer holds.
	Active() (string, error)

	// SetActive points the active pointer at an existing stack.
	SetActive(name string) error

	// Members returns the sorted paper ids of stack.
	Members(stack string) ([]string, error)

	// StacksOf returns the names of the stacks referencing id, sorted.
	StacksOf(id string) ([]string, error)

	// HasMember reports whether stack references id.
	HasMember(stack, id string) (bool, error)

	// AddMember adds id to stack; added is false if it was already there.
	AddMember(stack, id string) (added bool, err error)

	// RemoveMember removes id from stack; removed is false if it was absent.
	RemoveMember(stack, id string) (removed bool, err error)

	// Union adds every member of src to dst and returns how many ids were
	// new to dst. src is not modified.
	Union(dst, src string) (int, error)
}

// Transactor runs functions inside transactions. Update holds the exclusive
// registry lock for the duration of fn and commits only if fn returns nil.
// View runs fn against a consistent snapshot without taking the lock; any
// mutation attempted inside View fails.
type Transactor interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
}
