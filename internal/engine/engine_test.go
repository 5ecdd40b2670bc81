package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesh-intelligence/bib/internal/sqlite"
	"github.com/mesh-intelligence/bib/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *sqlite.Backend) {
	t.Helper()
	b, err := sqlite.Open(context.Background(), sqlite.Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return New(b, opts...), b
}

func textContent(body string, meta types.PaperMeta) types.RawContent {
	return types.RawContent{Bytes: []byte(body), Kind: types.ContentText, Meta: meta}
}

// addPaper adds a text paper to the active stack and returns its id.
func addPaper(t *testing.T, e *Engine, body string) string {
	t.Helper()
	res, err := e.Add(context.Background(), textContent(body, types.PaperMeta{
		Fields: map[string]string{types.FieldTitle: body},
	}))
	require.NoError(t, err)
	return res.Paper.PaperID
}

func members(t *testing.T, b *sqlite.Backend, stack string) []string {
	t.Helper()
	var ids []string
	require.NoError(t, b.View(context.Background(), func(tx types.Tx) error {
		var err error
		ids, err = tx.Members(stack)
		return err
	}))
	return ids
}

func stackNames(t *testing.T, e *Engine) []string {
	t.Helper()
	entries, err := e.List(context.Background())
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, s := range entries {
		names[i] = s.Name
	}
	return names
}

func sorted(ids ...string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

// twoStacks builds {base:[p1,p2], read:[p2,p3]} with base active.
func twoStacks(t *testing.T, e *Engine) (p1, p2, p3 string) {
	t.Helper()
	ctx := context.Background()
	p1 = addPaper(t, e, "paper one")
	p2 = addPaper(t, e, "paper two")
	_, err := e.Checkout(ctx, "read", true)
	require.NoError(t, err)
	addPaper(t, e, "paper two")
	p3 = addPaper(t, e, "paper three")
	_, err = e.Checkout(ctx, "base", false)
	require.NoError(t, err)
	return p1, p2, p3
}

func TestYank_AsymmetricAndIdempotent(t *testing.T) {
	e, b := newTestEngine(t)
	p1, p2, p3 := twoStacks(t, e)
	ctx := context.Background()

	res, err := e.Yank(ctx, "read")
	require.NoError(t, err)
	assert.Equal(t, TransferResult{From: "read", To: "base", Added: 1}, res)
	assert.Equal(t, sorted(p1, p2, p3), members(t, b, "base"))
	assert.Equal(t, sorted(p2, p3), members(t, b, "read"))

	res, err = e.Yank(ctx, "read")
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, sorted(p1, p2, p3), members(t, b, "base"))
}

func TestYank_DoesNotTouchMetadata(t *testing.T) {
	e, b := newTestEngine(t)
	_, p2, _ := twoStacks(t, e)
	ctx := context.Background()

	before, err := e.Get(ctx, p2)
	require.NoError(t, err)
	_, err = e.Yank(ctx, "read")
	require.NoError(t, err)
	after, err := e.Get(ctx, p2)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, members(t, b, "read"), 2)
}

func TestYeet_MirrorsYank(t *testing.T) {
	e, b := newTestEngine(t)
	p1, p2, p3 := twoStacks(t, e)

	res, err := e.Yeet(context.Background(), "read")
	require.NoError(t, err)
	assert.Equal(t, TransferResult{From: "base", To: "read", Added: 1}, res)
	assert.Equal(t, sorted(p1, p2, p3), members(t, b, "read"))
	assert.Equal(t, sorted(p1, p2), members(t, b, "base"))
	assert.Equal(t, []string{"base", "read"}, stackNames(t, e))
}

func TestTransfer_SelfAndMissing(t *testing.T) {
	e, b := newTestEngine(t)
	p1 := addPaper(t, e, "only")
	ctx := context.Background()

	res, err := e.Yank(ctx, "base")
	require.NoError(t, err)
	assert.Zero(t, res.Added)

	res, err = e.Yeet(ctx, "base")
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, []string{p1}, members(t, b, "base"))

	_, err = e.Yank(ctx, "ghost")
	assert.ErrorIs(t, err, types.ErrStackNotFound)
	_, err = e.Yeet(ctx, "ghost")
	assert.ErrorIs(t, err, types.ErrStackNotFound)
	_, err = e.Merge(ctx, "ghost")
	assert.ErrorIs(t, err, types.ErrStackNotFound)
}

func TestMerge_Decomposition(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()

	p1 := addPaper(t, e, "p1")
	_, err := e.Create(ctx, "read")
	require.NoError(t, err)
	_, err = e.Checkout(ctx, "read", false)
	require.NoError(t, err)
	p3 := addPaper(t, e, "p3")
	_, err = e.Checkout(ctx, "base", false)
	require.NoError(t, err)

	res, err := e.Merge(ctx, "read")
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, 1, res.Added)

	assert.Equal(t, sorted(p1, p3), members(t, b, "base"))
	assert.Equal(t, []string{"base"}, stackNames(t, e))

	// The merged stack's papers stay in the store.
	all, err := e.Papers(ctx, types.AllStacks)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGuards(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()
	p1 := addPaper(t, e, "guarded")

	err := e.Delete(ctx, "base")
	assert.ErrorIs(t, err, types.ErrCannotDeleteActive)

	_, err = e.Merge(ctx, "base")
	assert.ErrorIs(t, err, types.ErrSameStack)

	assert.Equal(t, []string{"base"}, stackNames(t, e))
	assert.Equal(t, []string{p1}, members(t, b, "base"))
	active, err := e.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "base", active)
}

func TestFork_Independence(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()
	p1 := addPaper(t, e, "a")
	p2 := addPaper(t, e, "b")

	res, err := e.Fork(ctx, "copy", "", false)
	require.NoError(t, err)
	assert.Equal(t, ForkResult{Stack: "copy", From: "base", Papers: 2}, res)
	assert.Equal(t, members(t, b, "base"), members(t, b, "copy"))

	active, err := e.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "base", active, "fork does not move the pointer")

	p3 := addPaper(t, e, "c")
	assert.Equal(t, sorted(p1, p2), members(t, b, "copy"))

	_, err = e.Toggle(ctx, "copy", p1)
	require.NoError(t, err)
	assert.Equal(t, sorted(p1, p2, p3), members(t, b, "base"))
	assert.Equal(t, []string{p2}, members(t, b, "copy"))
}

func TestFork_FromAndCheckout(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()
	_, _, p3 := twoStacks(t, e)

	res, err := e.Fork(ctx, "later", "read", true)
	require.NoError(t, err)
	assert.True(t, res.CheckedOut)
	assert.Equal(t, members(t, b, "read"), members(t, b, "later"))

	active, err := e.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "later", active)
	assert.Contains(t, members(t, b, "later"), p3)

	_, err = e.Fork(ctx, "read", "", false)
	assert.ErrorIs(t, err, types.ErrAlreadyExists)
	_, err = e.Fork(ctx, "other", "ghost", false)
	assert.ErrorIs(t, err, types.ErrStackNotFound)
	assert.NotContains(t, stackNames(t, e), "other")
}

func TestCheckout(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Checkout(ctx, "missing", false)
	assert.ErrorIs(t, err, types.ErrStackNotFound)

	res, err := e.Checkout(ctx, "fresh", true)
	require.NoError(t, err)
	assert.Equal(t, CheckoutResult{Stack: "fresh", Previous: "base", Created: true}, res)

	res, err = e.Checkout(ctx, "base", true)
	require.NoError(t, err)
	assert.False(t, res.Created)

	_, err = e.Checkout(ctx, "bad name", true)
	assert.ErrorIs(t, err, types.ErrInvalidName)
}

func TestCreateAndCheckout(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.CreateAndCheckout(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, CheckoutResult{Stack: "fresh", Previous: "base", Created: true}, res)

	_, err = e.CreateAndCheckout(ctx, "base")
	assert.ErrorIs(t, err, types.ErrAlreadyExists)
	active, err := e.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", active, "a failed create must not move the pointer")
}

func TestStatus(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	add := func(body, authors string) {
		_, err := e.Add(ctx, textContent(body, types.PaperMeta{
			Fields: map[string]string{types.FieldAuthor: authors},
		}))
		require.NoError(t, err)
	}
	add("one", "Hinton and LeCun")
	add("two", "LeCun and Bengio")
	add("three", "LeCun")
	add("four", "")

	res, err := e.Status(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "base", res.Stack)
	assert.Equal(t, types.ColorRed, res.Color)
	assert.Equal(t, 4, res.Papers)
	assert.Equal(t, []AuthorCount{{Name: "LeCun", Papers: 3}, {Name: "Bengio", Papers: 1}}, res.TopAuthors)

	all, err := e.Status(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all.TopAuthors, 3)
}

func TestSync(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()
	kept := addPaper(t, e, "kept")
	_, err := e.Checkout(ctx, "inbox", true)
	require.NoError(t, err)

	guess := func(body string) types.RawContent {
		return textContent(body, types.PaperMeta{Defaults: map[string]string{types.FieldTitle: "guessed " + body}})
	}
	res, err := e.Sync(ctx, []types.RawContent{guess("kept"), guess("new"), guess("new")})
	require.NoError(t, err)
	assert.Equal(t, "inbox", res.Stack)
	require.Len(t, res.Added, 1)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, res.Added, members(t, b, "inbox"))

	p, err := e.Get(ctx, kept)
	require.NoError(t, err)
	assert.Equal(t, "kept", p.Title())

	p, err = e.Get(ctx, res.Added[0])
	require.NoError(t, err)
	assert.Equal(t, "guessed new", p.Title())

	_, err = e.Sync(ctx, []types.RawContent{textContent("  ", types.PaperMeta{})})
	assert.ErrorIs(t, err, types.ErrInvalidContent)
}

func TestAdd_RecordsOriginURL(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	raw := textContent("origin", types.PaperMeta{})
	raw.OriginURL = "https://arxiv.org/abs/1706.03762"
	res, err := e.Add(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, raw.OriginURL, res.Paper.Fields[types.FieldURL])

	raw.OriginURL = "https://example.org/mirror"
	res, err = e.Add(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "https://arxiv.org/abs/1706.03762", res.Paper.Fields[types.FieldURL])
}

func TestRename_FollowsActive(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()
	p1 := addPaper(t, e, "x")

	require.NoError(t, e.Rename(ctx, "base", "main"))
	active, err := e.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", active)
	assert.Equal(t, []string{p1}, members(t, b, "main"))

	_, err = e.Create(ctx, "other")
	require.NoError(t, err)
	assert.ErrorIs(t, e.Rename(ctx, "main", "other"), types.ErrAlreadyExists)
	assert.ErrorIs(t, e.Rename(ctx, "nope", "x"), types.ErrStackNotFound)
}

func TestToggle(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()
	id := addPaper(t, e, "toggled")

	res, err := e.Toggle(ctx, "", id[:6])
	require.NoError(t, err)
	assert.False(t, res.Added)
	assert.Empty(t, members(t, b, "base"))

	res, err = e.Toggle(ctx, "", id)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.Equal(t, []string{id}, members(t, b, "base"))

	_, err = e.Toggle(ctx, "ghost", id)
	assert.ErrorIs(t, err, types.ErrStackNotFound)
	_, err = e.Toggle(ctx, "", "ffffffff")
	assert.ErrorIs(t, err, types.ErrPaperNotFound)
}

func TestAdd_Dedup(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Add(ctx, textContent("Attention  is all\r\nyou need", types.PaperMeta{
		Fields: map[string]string{types.FieldTitle: "Attention", types.FieldYear: "2017"},
		Notes:  "classic",
	}))
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.True(t, first.Added)

	second, err := e.Add(ctx, textContent("Attention is all\nyou need", types.PaperMeta{
		Fields: map[string]string{types.FieldTitle: "Attention Is All You Need", types.FieldYear: ""},
		Notes:  "reread",
	}))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.False(t, second.Added)
	assert.Equal(t, first.Paper.PaperID, second.Paper.PaperID)

	p, err := e.Get(ctx, first.Paper.PaperID)
	require.NoError(t, err)
	assert.Equal(t, "Attention Is All You Need", p.Title())
	assert.Equal(t, "2017", p.Fields[types.FieldYear])
	assert.Equal(t, "classic"+types.NotesSeparator+"reread", p.Notes)

	all, err := e.Papers(ctx, types.AllStacks)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Len(t, members(t, b, "base"), 1)
}

func TestAdd_EmptyContent(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Add(context.Background(), textContent("  \n ", types.PaperMeta{}))
	assert.ErrorIs(t, err, types.ErrInvalidContent)
}

func TestDetachThenRemove(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := addPaper(t, e, "to delete")
	_, err := e.Fork(ctx, "keep", "", false)
	require.NoError(t, err)

	_, err = e.Remove(ctx, id)
	assert.ErrorIs(t, err, types.ErrConflict)

	got, n, err := e.Detach(ctx, id[:8])
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, 2, n)

	_, err = e.Remove(ctx, id)
	require.NoError(t, err)
	_, err = e.Get(ctx, id)
	assert.ErrorIs(t, err, types.ErrPaperNotFound)
}

type stubRanker struct{}

// Rank scores papers by how many times the query occurs in the title.
func (stubRanker) Rank(query string, papers []*types.Paper) []types.Ranked {
	var out []types.Ranked
	for _, p := range papers {
		if n := strings.Count(p.Title(), query); n > 0 {
			out = append(out, types.Ranked{PaperID: p.PaperID, Score: float64(n)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func TestFind(t *testing.T) {
	ctx := context.Background()

	e, _ := newTestEngine(t)
	_, err := e.Find(ctx, "x", "", 0)
	assert.ErrorIs(t, err, ErrNoRanker)

	e, _ = newTestEngine(t, WithRanker(stubRanker{}))
	addPaper(t, e, "go go go")
	addPaper(t, e, "go")
	addPaper(t, e, "rust")

	hits, err := e.Find(ctx, "go", "", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "go go go", hits[0].Paper.Title())
	assert.Equal(t, 3.0, hits[0].Score)

	hits, err = e.Find(ctx, "go", types.AllStacks, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = e.Find(ctx, "go", "ghost", 0)
	assert.ErrorIs(t, err, types.ErrStackNotFound)
}

func TestLogsCommittedOperations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e, _ := newTestEngine(t, WithLogger(logger))

	_, err := e.Create(context.Background(), "logged")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "operation committed")
	assert.Contains(t, buf.String(), "op=create")
	assert.Contains(t, buf.String(), "stack=logged")
}

// faultyStore wraps a real backend and fails DeleteStack inside Update.
type faultyStore struct {
	types.Transactor
}

type faultyTx struct {
	types.Tx
}

func (faultyTx) DeleteStack(string) error {
	return fmt.Errorf("%w: injected", types.ErrIO)
}

func (f faultyStore) Update(ctx context.Context, fn func(types.Tx) error) error {
	return f.Transactor.Update(ctx, func(tx types.Tx) error {
		return fn(faultyTx{Tx: tx})
	})
}

func TestMerge_AtomicUnderFailure(t *testing.T) {
	e, b := newTestEngine(t)
	p1, p2, _ := twoStacks(t, e)

	faulty := New(faultyStore{Transactor: b})
	_, err := faulty.Merge(context.Background(), "read")
	require.ErrorIs(t, err, types.ErrIO)

	assert.Equal(t, sorted(p1, p2), members(t, b, "base"))
	assert.Equal(t, []string{"base", "read"}, stackNames(t, e))
	assert.Len(t, members(t, b, "read"), 2)
}

func TestUpdate_LockedIsRetryable(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()

	// Hold the registry lock from an outer transaction.
	err := b.Update(ctx, func(types.Tx) error {
		_, err := e.Create(ctx, "blocked")
		return err
	})
	require.ErrorIs(t, err, types.ErrLocked)
	assert.True(t, types.Retryable(err))
	assert.NotContains(t, stackNames(t, e), "blocked")
}

func TestDescribeAndCatalog(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p1, p2, p3 := twoStacks(t, e)

	l, err := e.Describe(ctx, p2[:6])
	require.NoError(t, err)
	assert.Equal(t, p2, l.Paper.PaperID)
	assert.Equal(t, []string{"base", "read"}, l.Stacks)

	cat, err := e.Catalog(ctx, types.AllStacks)
	require.NoError(t, err)
	require.Len(t, cat, 3)
	byID := map[string][]string{}
	for _, c := range cat {
		byID[c.Paper.PaperID] = c.Stacks
	}
	assert.Equal(t, []string{"base"}, byID[p1])
	assert.Equal(t, []string{"read"}, byID[p3])

	cat, err = e.Catalog(ctx, "")
	require.NoError(t, err)
	assert.Len(t, cat, 2)
}

func TestRestore(t *testing.T) {
	src, _ := newTestEngine(t)
	ctx := context.Background()
	p1, p2, p3 := twoStacks(t, src)
	_, _, err := src.Detach(ctx, p3)
	require.NoError(t, err)

	catalog, err := src.Catalog(ctx, types.AllStacks)
	require.NoError(t, err)

	dst, b := newTestEngine(t)
	res, err := dst.Restore(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{Papers: 3, Created: 3, StacksCreated: []string{"read"}, Memberships: 3}, res)
	assert.Equal(t, sorted(p1, p2), members(t, b, "base"))
	assert.Equal(t, []string{p2}, members(t, b, "read"))

	active, err := dst.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "base", active)

	all, err := dst.Papers(ctx, types.AllStacks)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Replaying is idempotent.
	res, err = dst.Restore(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{Papers: 3}, res)
}

func TestRestore_InvalidStackRollsBack(t *testing.T) {
	e, b := newTestEngine(t)
	ctx := context.Background()
	p := &types.Paper{PaperID: strings.Repeat("a", 32), Fields: map[string]string{}}

	_, err := e.Restore(ctx, []Listing{{Paper: p, Stacks: []string{"base", "bad name"}}})
	assert.ErrorIs(t, err, types.ErrInvalidName)
	assert.Empty(t, members(t, b, "base"))
	_, err = e.Get(ctx, p.PaperID)
	assert.ErrorIs(t, err, types.ErrPaperNotFound)
}
