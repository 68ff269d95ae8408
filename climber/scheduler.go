package climber

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vk/treeclimb/async"
	"github.com/vk/treeclimb/tree"
)

// rootSegment stands for the traversal root at the head of every ancestor path.
const rootSegment = "_ROOT"

// AsyncVisitor is called by ClimbAsync for every leaf. The returned future
// must belong to the loop passed to ClimbAsync.
type AsyncVisitor[R any] func(key string, value any, path string) *async.Future[R]

// ClimbAsync walks t and invokes visit for every leaf, chaining each
// invocation behind the anchor of the longest claimed prefix of its ancestor
// path (see the package documentation).
//
// The returned future fulfills with the results of every invocation, in walk
// order, once all of them fulfill. It rejects with the first rejection, and
// is already rejected if the walk itself fails. Invocations chained behind a
// rejected anchor are never started.
//
// The first leaf in pre-order always runs immediately and gates every leaf
// that has not found a more specific anchor before being reached. If it
// never settles, no other visitor call is ever made.
//
// Continuations run on loop; callers drive it with async.Await, Loop.Run or
// Loop.Drain.
func ClimbAsync[R any](loop *async.Loop, t *tree.Tree, visit AsyncVisitor[R], opts ...Option) *async.Future[[]R] {
	cfg, err := newConfig(opts)
	if err != nil {
		return async.Rejected[[]R](loop, err)
	}

	claims := newClaimTable[R]()
	var invocations []*async.Future[R]
	err = walk(t, cfg, func(l Leaf) {
		prefixes := l.ancestry(cfg.separator)
		logger := cfg.logger.With("path", l.Path)

		var invocation *async.Future[R]
		if prefix, anchor, ok := claims.lookup(prefixes[len(prefixes)-1]); ok {
			logger.Debug("Leaf chained behind anchor.", "anchor", prefix)
			invocation = async.Then(anchor, func(R) *async.Future[R] {
				return start(loop, visit, l)
			})
		} else {
			logger.Debug("Leaf invoked immediately.")
			invocation = start(loop, visit, l)
		}

		if claimed := claims.claim(prefixes, invocation); len(claimed) > 0 {
			logger.Debug("Leaf registered as anchor.", "prefixes", claimed)
		}
		invocations = append(invocations, invocation)
	})
	if err != nil {
		return async.Rejected[[]R](loop, err)
	}
	cfg.logger.Debug("Walk scheduled.", "leaves", len(invocations), "anchors", len(claims.anchors))
	return async.All(loop, invocations)
}

// start invokes visit for l. A panic or a nil future becomes a rejection.
func start[R any](loop *async.Loop, visit AsyncVisitor[R], l Leaf) (f *async.Future[R]) {
	defer func() {
		if r := recover(); r != nil {
			f = async.Rejected[R](loop, errors.Newf("climber: visitor panicked at %q: %v", l.Path, r))
		}
	}()
	f = visit(l.Key, l.Value, l.Path)
	if f == nil {
		return async.Rejected[R](loop, async.ErrNilFuture)
	}
	return f
}

// ancestry returns the ancestor prefixes of l from the root sentinel down to
// its immediate parent: [_ROOT, _ROOT.p1, _ROOT.p1.p2, ...].
func (l Leaf) ancestry(sep string) []string {
	prefixes := make([]string, 0, len(l.parents)+1)
	current := rootSegment
	prefixes = append(prefixes, current)
	for _, p := range l.parents {
		current += sep + p
		prefixes = append(prefixes, current)
	}
	return prefixes
}

// claimTable maps ancestor prefixes to the invocation that first reached
// them. It belongs to a single ClimbAsync call.
type claimTable[R any] struct {
	anchors map[string]*async.Future[R]
	// byDepth lists claimed prefixes by segment count minus one, each level
	// in claim order.
	byDepth [][]string
}

func newClaimTable[R any]() *claimTable[R] {
	return &claimTable[R]{anchors: make(map[string]*async.Future[R])}
}

// lookup returns the deepest claimed prefix that is a literal string prefix
// of ancestry. Among prefixes of equal depth the earliest claim wins.
func (c *claimTable[R]) lookup(ancestry string) (string, *async.Future[R], bool) {
	for depth := len(c.byDepth) - 1; depth >= 0; depth-- {
		for _, prefix := range c.byDepth[depth] {
			if strings.HasPrefix(ancestry, prefix) {
				return prefix, c.anchors[prefix], true
			}
		}
	}
	return "", nil, false
}

// claim registers f for every prefix not claimed yet and returns those
// prefixes. prefixes[i] must have i+1 segments.
func (c *claimTable[R]) claim(prefixes []string, f *async.Future[R]) []string {
	var claimed []string
	for depth, prefix := range prefixes {
		if _, taken := c.anchors[prefix]; taken {
			continue
		}
		c.anchors[prefix] = f
		for len(c.byDepth) <= depth {
			c.byDepth = append(c.byDepth, nil)
		}
		c.byDepth[depth] = append(c.byDepth[depth], prefix)
		claimed = append(claimed, prefix)
	}
	return claimed
}
