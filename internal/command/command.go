// Package command holds the closed set of registry commands the CLI can
// issue. Front ends parse their own syntax into these variants and hand them
// to Dispatch, so the registry contract does not change when the command-line
// vocabulary does.
package command

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/bib/internal/engine"
	"github.com/mesh-intelligence/bib/pkg/types"
)

// Command is one of the variants declared in this package.
type Command interface {
	// Name is the operation name, used in logs and JSON output.
	Name() string
	isCommand()
}

// Create makes an empty stack and, with Checkout set, makes it active. An
// existing stack fails either way.
type Create struct {
	Stack    string
	Checkout bool
}

// Delete removes a stack that is not active.
type Delete struct{ Stack string }

// Rename renames a stack, carrying the active pointer along.
type Rename struct{ Stack, NewName string }

// Checkout moves the active pointer, creating the stack if New is set.
type Checkout struct {
	Stack string
	New   bool
}

// Fork copies From (the active stack when empty) into a new stack.
type Fork struct {
	Stack    string
	From     string
	Checkout bool
}

// Yank pulls Target's papers into the active stack.
type Yank struct{ Target string }

// Yeet pushes the active stack's papers into Target.
type Yeet struct{ Target string }

// Merge yanks Target and deletes it.
type Merge struct{ Target string }

// Toggle flips a paper's membership in Stack (the active stack when empty).
type Toggle struct {
	Stack   string
	PaperID string
}

func (Create) Name() string   { return "create" }
func (Delete) Name() string   { return "delete" }
func (Rename) Name() string   { return "rename" }
func (Checkout) Name() string { return "checkout" }
func (Fork) Name() string     { return "fork" }
func (Yank) Name() string     { return "yank" }
func (Yeet) Name() string     { return "yeet" }
func (Merge) Name() string    { return "merge" }
func (Toggle) Name() string   { return "toggle" }

func (Create) isCommand()   {}
func (Delete) isCommand()   {}
func (Rename) isCommand()   {}
func (Checkout) isCommand() {}
func (Fork) isCommand()     {}
func (Yank) isCommand()     {}
func (Yeet) isCommand()     {}
func (Merge) isCommand()    {}
func (Toggle) isCommand()   {}

// Registry is the subset of *engine.Engine that Dispatch drives.
type Registry interface {
	Create(ctx context.Context, name string) (*types.Stack, error)
	Delete(ctx context.Context, name string) error
	Rename(ctx context.Context, name, newName string) error
	Checkout(ctx context.Context, name string, create bool) (engine.CheckoutResult, error)
	CreateAndCheckout(ctx context.Context, name string) (engine.CheckoutResult, error)
	Fork(ctx context.Context, newName, from string, checkout bool) (engine.ForkResult, error)
	Yank(ctx context.Context, target string) (engine.TransferResult, error)
	Yeet(ctx context.Context, target string) (engine.TransferResult, error)
	Merge(ctx context.Context, target string) (engine.TransferResult, error)
	Toggle(ctx context.Context, stack, paperRef string) (engine.ToggleResult, error)
}

var _ Registry = (*engine.Engine)(nil)

// Result is the outcome of a dispatched command. Summary is a one-line
// human description; Detail is the engine's result value for JSON output.
type Result struct {
	Op      string `json:"op"`
	Summary string `json:"summary"`
	Detail  any    `json:"detail,omitempty"`
}

// Dispatch runs cmd against r.
func Dispatch(ctx context.Context, r Registry, cmd Command) (Result, error) {
	res := Result{Op: cmd.Name()}

	switch c := cmd.(type) {
	case Create:
		if c.Checkout {
			out, err := r.CreateAndCheckout(ctx, c.Stack)
			if err != nil {
				return res, err
			}
			res.Detail = out
			res.Summary = fmt.Sprintf("switched to new stack %s", out.Stack)
			break
		}
		s, err := r.Create(ctx, c.Stack)
		if err != nil {
			return res, err
		}
		res.Summary = fmt.Sprintf("created stack %s", s.Name)
		res.Detail = s

	case Delete:
		if err := r.Delete(ctx, c.Stack); err != nil {
			return res, err
		}
		res.Summary = fmt.Sprintf("deleted stack %s", c.Stack)

	case Rename:
		if err := r.Rename(ctx, c.Stack, c.NewName); err != nil {
			return res, err
		}
		res.Summary = fmt.Sprintf("renamed stack %s to %s", c.Stack, c.NewName)

	case Checkout:
		out, err := r.Checkout(ctx, c.Stack, c.New)
		if err != nil {
			return res, err
		}
		res.Detail = out
		res.Summary = fmt.Sprintf("switched to stack %s", out.Stack)
		if out.Created {
			res.Summary = fmt.Sprintf("switched to new stack %s", out.Stack)
		}

	case Fork:
		out, err := r.Fork(ctx, c.Stack, c.From, c.Checkout)
		if err != nil {
			return res, err
		}
		res.Detail = out
		res.Summary = fmt.Sprintf("forked %s into %s (%s)", out.From, out.Stack, papers(out.Papers))
		if out.CheckedOut {
			res.Summary += ", now active"
		}

	case Yank:
		out, err := r.Yank(ctx, c.Target)
		if err != nil {
			return res, err
		}
		res.Detail = out
		res.Summary = fmt.Sprintf("yanked %s from %s into %s", papers(out.Added), out.From, out.To)

	case Yeet:
		out, err := r.Yeet(ctx, c.Target)
		if err != nil {
			return res, err
		}
		res.Detail = out
		res.Summary = fmt.Sprintf("yeeted %s from %s into %s", papers(out.Added), out.From, out.To)

	case Merge:
		out, err := r.Merge(ctx, c.Target)
		if err != nil {
			return res, err
		}
		res.Detail = out
		res.Summary = fmt.Sprintf("merged %s into %s (%s added), deleted %s",
			out.From, out.To, papers(out.Added), out.From)

	case Toggle:
		out, err := r.Toggle(ctx, c.Stack, c.PaperID)
		if err != nil {
			return res, err
		}
		res.Detail = out
		verb := "removed"
		prep := "from"
		if out.Added {
			verb, prep = "added", "to"
		}
		res.Summary = fmt.Sprintf("%s %s %s %s", verb, shortID(out.PaperID), prep, out.Stack)

	default:
		return res, fmt.Errorf("unknown command %T", cmd)
	}
	return res, nil
}

func papers(n int) string {
	if n == 1 {
		return "1 paper"
	}
	return fmt.Sprintf("%d papers", n)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
