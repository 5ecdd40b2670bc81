package engine

import (
	"context"
	"errors"
	"log/slog"
	"maps"

	"github.com/mesh-intelligence/bib/internal/contentid"
	"github.com/mesh-intelligence/bib/pkg/types"
)

// ErrNoRanker is returned by Find when the Engine was built without a
// ranker.
var ErrNoRanker = errors.New("no ranker configured")

// AddResult describes a completed Add.
type AddResult struct {
	Paper *types.Paper `json:"paper"`
	// Created is false when the content was already stored and its metadata
	// was reconciled instead.
	Created bool   `json:"created"`
	Stack   string `json:"stack"`
	// Added is false when the paper was already in Stack.
	Added bool `json:"added"`
}

// Add stores raw content and adds the paper to the active stack. Identical
// content maps to the existing record, whose metadata is reconciled with
// raw.Meta. The content id is computed before the lock is taken.
func (e *Engine) Add(ctx context.Context, raw types.RawContent) (AddResult, error) {
	id, err := contentid.Sum(raw.Kind, raw.Bytes)
	if err != nil {
		return AddResult{}, err
	}
	raw.Meta = withOrigin(raw.Meta, raw.OriginURL)

	var res AddResult
	err = e.update(ctx, "add", func(tx types.Tx) ([]slog.Attr, error) {
		active, err := tx.Active()
		if err != nil {
			return nil, err
		}
		p, created, err := tx.UpsertPaper(id, raw.Meta)
		if err != nil {
			return nil, err
		}
		added, err := tx.AddMember(active, id)
		if err != nil {
			return nil, err
		}
		res = AddResult{Paper: p, Created: created, Stack: active, Added: added}
		return []slog.Attr{
			slog.String("stack", active),
			slog.String("paper", id),
			slog.Bool("created", created),
		}, nil
	})
	return res, err
}

// Get returns the paper addressed by ref, a full id or unique prefix.
func (e *Engine) Get(ctx context.Context, ref string) (*types.Paper, error) {
	var p *types.Paper
	err := e.view(ctx, func(tx types.Tx) error {
		id, err := tx.ResolvePaperID(ref)
		if err != nil {
			return err
		}
		p, err = tx.GetPaper(id)
		return err
	})
	return p, err
}

// Papers lists the papers of stack, the active stack when stack is empty,
// or the whole store for types.AllStacks.
func (e *Engine) Papers(ctx context.Context, stack string) ([]*types.Paper, error) {
	var papers []*types.Paper
	err := e.view(ctx, func(tx types.Tx) error {
		name, err := stackOrActive(tx, stack)
		if err != nil {
			return err
		}
		papers, err = tx.ListPapers(name)
		return err
	})
	return papers, err
}

// Listing pairs a paper with the stacks that reference it.
type Listing struct {
	Paper  *types.Paper
	Stacks []string
}

// Describe returns the paper addressed by ref and its stacks.
func (e *Engine) Describe(ctx context.Context, ref string) (Listing, error) {
	var l Listing
	err := e.view(ctx, func(tx types.Tx) error {
		id, err := tx.ResolvePaperID(ref)
		if err != nil {
			return err
		}
		if l.Paper, err = tx.GetPaper(id); err != nil {
			return err
		}
		l.Stacks, err = tx.StacksOf(id)
		return err
	})
	return l, err
}

// Catalog lists the papers of stack (see Papers) with their stacks, read
// from a single snapshot.
func (e *Engine) Catalog(ctx context.Context, stack string) ([]Listing, error) {
	var out []Listing
	err := e.view(ctx, func(tx types.Tx) error {
		name, err := stackOrActive(tx, stack)
		if err != nil {
			return err
		}
		papers, err := tx.ListPapers(name)
		if err != nil {
			return err
		}
		out = make([]Listing, 0, len(papers))
		for _, p := range papers {
			stacks, err := tx.StacksOf(p.PaperID)
			if err != nil {
				return err
			}
			out = append(out, Listing{Paper: p, Stacks: stacks})
		}
		return nil
	})
	return out, err
}

// Match is one Find hit.
type Match struct {
	Paper *types.Paper `json:"paper"`
	Score float64      `json:"score"`
}

// Find ranks the papers of stack against query and returns at most limit
// hits (all when limit <= 0). Ranking runs after the read transaction ends.
func (e *Engine) Find(ctx context.Context, query, stack string, limit int) ([]Match, error) {
	if e.ranker == nil {
		return nil, ErrNoRanker
	}
	papers, err := e.Papers(ctx, stack)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*types.Paper, len(papers))
	for _, p := range papers {
		byID[p.PaperID] = p
	}

	var matches []Match
	for _, r := range e.ranker.Rank(query, papers) {
		p, ok := byID[r.PaperID]
		if !ok {
			continue
		}
		matches = append(matches, Match{Paper: p, Score: r.Score})
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

// Detach removes a paper from every stack, keeping the record. It returns
// the resolved id and the number of memberships removed.
func (e *Engine) Detach(ctx context.Context, ref string) (string, int, error) {
	var (
		id string
		n  int
	)
	err := e.update(ctx, "detach", func(tx types.Tx) ([]slog.Attr, error) {
		var err error
		if id, err = tx.ResolvePaperID(ref); err != nil {
			return nil, err
		}
		if n, err = tx.DetachPaper(id); err != nil {
			return nil, err
		}
		return []slog.Attr{slog.String("paper", id), slog.Int("removed", n)}, nil
	})
	return id, n, err
}

// Remove deletes a paper record. It fails with ErrConflict while any stack
// still references the paper; Detach first.
func (e *Engine) Remove(ctx context.Context, ref string) (string, error) {
	var id string
	err := e.update(ctx, "remove", func(tx types.Tx) ([]slog.Attr, error) {
		var err error
		if id, err = tx.ResolvePaperID(ref); err != nil {
			return nil, err
		}
		return []slog.Attr{slog.String("paper", id)}, tx.DeletePaper(id)
	})
	return id, err
}

// SyncResult describes a completed Sync.
type SyncResult struct {
	Stack string `json:"stack"`
	// Added holds the ids of the papers stored by this sync.
	Added   []string `json:"added"`
	Skipped int      `json:"skipped"`
}

// Sync stores every item whose content is not yet in the store and adds it
// to the active stack, all in one transaction. Content already stored is
// skipped untouched, including its stack memberships.
func (e *Engine) Sync(ctx context.Context, raws []types.RawContent) (SyncResult, error) {
	ids := make([]string, len(raws))
	for i, raw := range raws {
		id, err := contentid.Sum(raw.Kind, raw.Bytes)
		if err != nil {
			return SyncResult{}, err
		}
		ids[i] = id
	}

	var res SyncResult
	err := e.update(ctx, "sync", func(tx types.Tx) ([]slog.Attr, error) {
		active, err := tx.Active()
		if err != nil {
			return nil, err
		}
		res = SyncResult{Stack: active, Added: []string{}}
		for i, raw := range raws {
			_, err := tx.GetPaper(ids[i])
			if err == nil {
				res.Skipped++
				continue
			}
			if !errors.Is(err, types.ErrPaperNotFound) {
				return nil, err
			}
			if _, _, err := tx.UpsertPaper(ids[i], withOrigin(raw.Meta, raw.OriginURL)); err != nil {
				return nil, err
			}
			if _, err := tx.AddMember(active, ids[i]); err != nil {
				return nil, err
			}
			res.Added = append(res.Added, ids[i])
		}
		return []slog.Attr{
			slog.String("stack", active),
			slog.Int("added", len(res.Added)),
			slog.Int("skipped", res.Skipped),
		}, nil
	})
	return res, err
}

// RestoreResult describes a completed Restore.
type RestoreResult struct {
	Papers        int      `json:"papers"`
	Created       int      `json:"created"`
	StacksCreated []string `json:"stacks_created,omitempty"`
	Memberships   int      `json:"memberships"`
}

// Restore merges previously exported listings into the store in one
// transaction. Each paper is upserted under its recorded id, so metadata is
// reconciled exactly as a repeated add would; listed stacks are created when
// missing and the paper is added to each. The active pointer does not move.
func (e *Engine) Restore(ctx context.Context, listings []Listing) (RestoreResult, error) {
	var res RestoreResult
	err := e.update(ctx, "restore", func(tx types.Tx) ([]slog.Attr, error) {
		res = RestoreResult{}
		known := make(map[string]bool)
		for _, l := range listings {
			p := l.Paper
			_, created, err := tx.UpsertPaper(p.PaperID, types.PaperMeta{
				Fields:      p.Fields,
				Notes:       p.Notes,
				PDFLocation: p.PDFLocation,
			})
			if err != nil {
				return nil, err
			}
			res.Papers++
			if created {
				res.Created++
			}

			for _, name := range l.Stacks {
				if !known[name] {
					_, err := tx.GetStack(name)
					switch {
					case errors.Is(err, types.ErrStackNotFound):
						if _, err := tx.CreateStack(name); err != nil {
							return nil, err
						}
						res.StacksCreated = append(res.StacksCreated, name)
					case err != nil:
						return nil, err
					}
					known[name] = true
				}
				added, err := tx.AddMember(name, p.PaperID)
				if err != nil {
					return nil, err
				}
				if added {
					res.Memberships++
				}
			}
		}
		return []slog.Attr{
			slog.Int("papers", res.Papers),
			slog.Int("created", res.Created),
			slog.Int("added", res.Memberships),
		}, nil
	})
	return res, err
}

// withOrigin records url as the paper's source URL unless one is stored.
func withOrigin(meta types.PaperMeta, url string) types.PaperMeta {
	if url == "" {
		return meta
	}
	defaults := make(map[string]string, len(meta.Defaults)+1)
	maps.Copy(defaults, meta.Defaults)
	if defaults[types.FieldURL] == "" {
		defaults[types.FieldURL] = url
	}
	meta.Defaults = defaults
	return meta
}
