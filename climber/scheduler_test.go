package climber

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/treeclimb/async"
	"github.com/vk/treeclimb/tree"
)

// complexTree has the pre-order leaf sequence
// f h m q r s 0 1 2 c d e v.
func complexTree() *tree.Tree {
	return tree.New(tree.Obj{
		{Key: "z", Value: tree.Obj{
			{Key: "x", Value: tree.Obj{{Key: "f", Value: "f value"}}},
			{Key: "y", Value: tree.Obj{
				{Key: "g", Value: tree.Obj{{Key: "h", Value: "h value"}}},
				{Key: "m", Value: "m value"},
			}},
			{Key: "q", Value: "q value"},
			{Key: "r", Value: "r value"},
			{Key: "s", Value: "s value"},
			{Key: "arr", Value: tree.Arr{"t", "u", "v"}},
		}},
		{Key: "b", Value: tree.Obj{
			{Key: "c", Value: "c value"},
			{Key: "d", Value: "d value"},
			{Key: "e", Value: "e value"},
		}},
		{Key: "v", Value: "v value"},
	})
}

func simpleTree() *tree.Tree {
	return tree.New(tree.Obj{{Key: "a", Value: tree.Obj{{Key: "b", Value: tree.Obj{
		{Key: "c", Value: "c value"},
		{Key: "d", Value: "d value"},
		{Key: "e", Value: "e value"},
	}}}}})
}

// keyRecorder records visited keys and answers each visit with the future
// returned by respond.
type keyRecorder struct {
	loop    *async.Loop
	visited []string
	respond func(key string) *async.Future[string]
}

func newKeyRecorder(loop *async.Loop, respond func(key string) *async.Future[string]) *keyRecorder {
	return &keyRecorder{loop: loop, respond: respond}
}

func (r *keyRecorder) visit(key string, _ any, _ string) *async.Future[string] {
	r.visited = append(r.visited, key)
	return r.respond(key)
}

func resolvedWith(loop *async.Loop, v string) func(string) *async.Future[string] {
	return func(string) *async.Future[string] { return async.Resolved(loop, v) }
}

func TestClimbAsync_VisitsAllNodes(t *testing.T) {
	loop := async.NewLoop()
	rec := newKeyRecorder(loop, func(key string) *async.Future[string] {
		return async.Resolved(loop, key+"!")
	})

	all := ClimbAsync(loop, simpleTree(), rec.visit)
	loop.Drain()

	results, err := all.Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e"}, rec.visited)
	assert.Equal(t, []string{"c!", "d!", "e!"}, results)
}

func TestClimbAsync_SiblingAnchorOrdering(t *testing.T) {
	loop := async.NewLoop()
	rec := newKeyRecorder(loop, resolvedWith(loop, "whatever"))

	ClimbAsync(loop, simpleTree(), rec.visit)
	assert.Equal(t, []string{"c"}, rec.visited, "d and e wait for c")

	loop.Drain()
	assert.Equal(t, []string{"c", "d", "e"}, rec.visited)
}

func TestClimbAsync_RejectsInvalidKey(t *testing.T) {
	loop := async.NewLoop()
	rec := newKeyRecorder(loop, resolvedWith(loop, "whatever"))
	tr := tree.New(tree.Obj{{Key: "a.b", Value: tree.Obj{{Key: "c", Value: "d"}}}})

	all := ClimbAsync(loop, tr, rec.visit)
	require.True(t, all.Settled(), "validation failures reject synchronously")

	_, err := all.Result()
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.EqualError(t, err, `key "a.b" cannot contain a "." character`)
	assert.Empty(t, rec.visited)
}

func TestClimbAsync_RejectsCycle(t *testing.T) {
	a := tree.NewArena()
	root := a.NewKeyed()
	a.Set(root, "leaf", tree.Leaf(1))
	a.Set(root, "again", root)

	loop := async.NewLoop()
	all := ClimbAsync(loop, &tree.Tree{Arena: a, Root: root}, func(string, any, string) *async.Future[int] {
		return async.Resolved(loop, 1)
	})
	_, err := all.Result()
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestClimbAsync_RejectsEmptySeparator(t *testing.T) {
	loop := async.NewLoop()
	all := ClimbAsync(loop, simpleTree(), func(string, any, string) *async.Future[int] {
		t.Fatal("visitor must not be called")
		return nil
	}, WithSeparator(""))
	_, err := all.Result()
	assert.ErrorIs(t, err, ErrInvalidSeparator)
}

func TestClimbAsync_DependencyOrder(t *testing.T) {
	loop := async.NewLoop()
	rec := newKeyRecorder(loop, resolvedWith(loop, "whatever"))

	all := ClimbAsync(loop, complexTree(), rec.visit)
	loop.Drain()

	_, err := all.Result()
	require.NoError(t, err)
	expected := []string{"f", "h", "q", "r", "s", "0", "c", "v", "m", "1", "2", "d", "e"}
	if diff := cmp.Diff(expected, rec.visited); diff != "" {
		t.Errorf("visit order mismatch (-want +got):\n%s", diff)
	}
}

func TestClimbAsync_CommonAncestorsRegisteredAfterFirst(t *testing.T) {
	loop := async.NewLoop()
	never := async.NewPromise[string](loop)
	rec := newKeyRecorder(loop, func(key string) *async.Future[string] {
		if key == "f" {
			return async.Resolved(loop, "f")
		}
		return never.Future()
	})

	ClimbAsync(loop, complexTree(), rec.visit)
	loop.Drain()

	assert.Equal(t, []string{"f", "h", "q", "r", "s", "0", "c", "v"}, rec.visited)
}

func TestClimbAsync_NothingRunsUntilFirstSettles(t *testing.T) {
	trees := map[string]*tree.Tree{
		"complex": complexTree(),
		"simple":  simpleTree(),
		"flat":    tree.New(tree.Obj{{Key: "f", Value: 1}, {Key: "g", Value: 2}, {Key: "h", Value: 3}}),
		"array":   tree.New(tree.Arr{tree.Obj{{Key: "f", Value: 1}}, tree.Arr{2, 3}, 4}),
	}
	for name, tr := range trees {
		t.Run(name, func(t *testing.T) {
			loop := async.NewLoop()
			never := async.NewPromise[string](loop)
			first := ""
			rec := newKeyRecorder(loop, func(key string) *async.Future[string] {
				if first == "" {
					first = key
					return never.Future()
				}
				return async.Resolved(loop, key)
			})

			all := ClimbAsync(loop, tr, rec.visit)
			loop.Drain()

			assert.Equal(t, []string{first}, rec.visited)
			assert.False(t, all.Settled())
		})
	}
}

func TestClimbAsync_FirstRejectionStarvesEverything(t *testing.T) {
	boom := errors.New("f failed")
	trees := map[string]*tree.Tree{
		"complex": complexTree(),
		"simple":  simpleTree(),
		"array":   tree.New(tree.Arr{1, tree.Arr{2, 3}, tree.Obj{{Key: "k", Value: 4}}}),
	}
	for name, tr := range trees {
		t.Run(name, func(t *testing.T) {
			loop := async.NewLoop()
			calls := 0
			rec := newKeyRecorder(loop, func(key string) *async.Future[string] {
				calls++
				if calls == 1 {
					return async.Rejected[string](loop, boom)
				}
				return async.Resolved(loop, "foo")
			})

			all := ClimbAsync(loop, tr, rec.visit)
			loop.Drain()

			_, err := all.Result()
			assert.ErrorIs(t, err, boom)
			assert.Len(t, rec.visited, 1)
		})
	}
}

func TestClimbAsync_CoAnchoredSiblingsAreConcurrent(t *testing.T) {
	loop := async.NewLoop()
	pending := async.NewPromise[string](loop)
	rec := newKeyRecorder(loop, func(key string) *async.Future[string] {
		if key == "d" {
			return pending.Future()
		}
		return async.Resolved(loop, key)
	})

	all := ClimbAsync(loop, simpleTree(), rec.visit)
	loop.Drain()
	assert.Equal(t, []string{"c", "d", "e"}, rec.visited, "e does not wait for d")
	assert.False(t, all.Settled())

	pending.Resolve("d")
	loop.Drain()
	results, err := all.Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e"}, results)
}

func TestClimbAsync_FreshPrefixChainsNextLeaf(t *testing.T) {
	loop := async.NewLoop()
	first := async.NewPromise[string](loop)
	tr := tree.New(tree.Obj{
		{Key: "p", Value: "p"},
		{Key: "list", Value: tree.Arr{"x", "y"}},
	})
	rec := newKeyRecorder(loop, func(key string) *async.Future[string] {
		if key == "0" {
			return first.Future()
		}
		return async.Resolved(loop, key)
	})

	all := ClimbAsync(loop, tr, rec.visit)
	loop.Drain()
	assert.Equal(t, []string{"p", "0"}, rec.visited, "list.1 chains behind list.0, not behind p")

	first.Resolve("0")
	loop.Drain()
	assert.Equal(t, []string{"p", "0", "1"}, rec.visited)
	_, err := all.Result()
	require.NoError(t, err)
}

func TestClimbAsync_DeepRejectionOnlyStarvesItsBranch(t *testing.T) {
	loop := async.NewLoop()
	boom := errors.New("list.0 failed")
	tr := tree.New(tree.Obj{
		{Key: "p", Value: "p"},
		{Key: "list", Value: tree.Arr{"x", "y"}},
		{Key: "other", Value: "o"},
	})
	rec := newKeyRecorder(loop, func(key string) *async.Future[string] {
		if key == "0" {
			return async.Rejected[string](loop, boom)
		}
		return async.Resolved(loop, key)
	})

	all := ClimbAsync(loop, tr, rec.visit)
	loop.Drain()

	_, err := all.Result()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"p", "0", "other"}, rec.visited)
}

func TestClimbAsync_RootLeaf(t *testing.T) {
	loop := async.NewLoop()
	var got []call
	all := ClimbAsync(loop, tree.New("only"), func(key string, value any, path string) *async.Future[int] {
		got = append(got, call{Key: key, Value: value, Path: path})
		return async.Resolved(loop, 7)
	})
	loop.Drain()

	results, err := all.Result()
	require.NoError(t, err)
	assert.Equal(t, []int{7}, results)
	assert.Equal(t, []call{{"", "only", ""}}, got)
}

func TestClimbAsync_EmptyTree(t *testing.T) {
	loop := async.NewLoop()
	all := ClimbAsync(loop, tree.New(tree.Obj{}), func(string, any, string) *async.Future[int] {
		t.Fatal("visitor must not be called")
		return nil
	})
	results, err := all.Result()
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClimbAsync_SeparatorOverride(t *testing.T) {
	loop := async.NewLoop()
	var paths []string
	tr := tree.New(tree.Arr{tree.Obj{{Key: "a", Value: tree.Obj{{Key: "b", Value: "c"}, {Key: "d", Value: "e"}}}}})
	all := ClimbAsync(loop, tr, func(_ string, _ any, path string) *async.Future[string] {
		paths = append(paths, path)
		return async.Resolved(loop, path)
	}, WithSeparator("/"))
	loop.Drain()

	_, err := all.Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"0/a/b", "0/a/d"}, paths)
}

func TestClimbAsync_VisitorPanicsAndNilFutures(t *testing.T) {
	loop := async.NewLoop()
	all := ClimbAsync(loop, simpleTree(), func(key string, _ any, _ string) *async.Future[string] {
		panic("visitor blew up")
	})
	loop.Drain()
	_, err := all.Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "visitor blew up")

	loop = async.NewLoop()
	all = ClimbAsync(loop, simpleTree(), func(string, any, string) *async.Future[string] { return nil })
	loop.Drain()
	_, err = all.Result()
	assert.ErrorIs(t, err, async.ErrNilFuture)
}

func TestClimbAsync_IndependentCallsDoNotShareClaims(t *testing.T) {
	loop := async.NewLoop()
	blocked := async.NewPromise[string](loop)

	var firstVisited, secondVisited []string
	ClimbAsync(loop, simpleTree(), func(key string, _ any, _ string) *async.Future[string] {
		firstVisited = append(firstVisited, key)
		return blocked.Future()
	})
	second := ClimbAsync(loop, simpleTree(), func(key string, _ any, _ string) *async.Future[string] {
		secondVisited = append(secondVisited, key)
		return async.Resolved(loop, key)
	})
	loop.Drain()

	assert.Equal(t, []string{"c"}, firstVisited)
	assert.Equal(t, []string{"c", "d", "e"}, secondVisited)
	_, err := second.Result()
	require.NoError(t, err)
}

func TestClimbAsync_WithGoroutines(t *testing.T) {
	loop := async.NewLoop()
	var mu sync.Mutex
	var order []string

	all := ClimbAsync(loop, complexTree(), func(key string, value any, _ string) *async.Future[string] {
		mu.Lock()
		order = append(order, key)
		mu.Unlock()

		p := async.NewPromise[string](loop)
		go func() {
			time.Sleep(time.Millisecond)
			p.Resolve(value.(string))
		}()
		return p.Future()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results, err := async.Await(ctx, all)
	require.NoError(t, err)
	assert.Len(t, results, 13)
	assert.Equal(t, "f value", results[0])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 13)
	assert.Equal(t, "f", order[0])
}

func TestClaimTable(t *testing.T) {
	loop := async.NewLoop()
	c := newClaimTable[int]()
	one, two := async.Resolved(loop, 1), async.Resolved(loop, 2)

	_, _, ok := c.lookup("_ROOT.a")
	assert.False(t, ok)

	claimed := c.claim([]string{"_ROOT", "_ROOT.z", "_ROOT.z.x"}, one)
	assert.Equal(t, []string{"_ROOT", "_ROOT.z", "_ROOT.z.x"}, claimed)

	claimed = c.claim([]string{"_ROOT", "_ROOT.z", "_ROOT.z.y"}, two)
	assert.Equal(t, []string{"_ROOT.z.y"}, claimed, "claims are never replaced")

	prefix, anchor, ok := c.lookup("_ROOT.z.y")
	require.True(t, ok)
	assert.Equal(t, "_ROOT.z.y", prefix)
	assert.Same(t, two, anchor)

	prefix, _, ok = c.lookup("_ROOT.b")
	require.True(t, ok)
	assert.Equal(t, "_ROOT", prefix)

	prefix, anchor, ok = c.lookup("_ROOT.z.xylophone")
	require.True(t, ok)
	assert.Equal(t, "_ROOT.z.x", prefix, "prefixes match as literal strings")
	assert.Same(t, one, anchor)
}

func TestLeafAncestry(t *testing.T) {
	assert.Equal(t, []string{"_ROOT"}, Leaf{}.ancestry("."))
	l := Leaf{parents: []string{"a", "0", "b"}}
	assert.Equal(t, []string{"_ROOT", "_ROOT/a", "_ROOT/a/0", "_ROOT/a/0/b"}, l.ancestry("/"))
}
