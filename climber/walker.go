package climber

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vk/treeclimb/tree"
)

// Visitor is called by Climb for every leaf, in pre-order.
type Visitor func(key string, value any, path string)

// Leaf is one leaf reached by the walk.
type Leaf struct {
	Key   string
	Value any
	Path  string
	// parents holds the keys of the enclosing containers, root first.
	parents []string
}

// Climb walks t in pre-order and calls visit for every leaf. A root that is
// itself a leaf is visited with an empty key and path. The walk stops at the
// first cycle or invalid key and returns the error; leaves visited before
// that point stay visited.
func Climb(t *tree.Tree, visit Visitor, opts ...Option) error {
	cfg, err := newConfig(opts)
	if err != nil {
		return err
	}
	return walk(t, cfg, func(l Leaf) {
		visit(l.Key, l.Value, l.Path)
	})
}

// walker holds the state of one walk. The visited set is discarded with it.
type walker struct {
	arena   *tree.Arena
	sep     string
	visited map[tree.Handle]struct{}
	onLeaf  func(Leaf)
}

func walk(t *tree.Tree, cfg *config, onLeaf func(Leaf)) error {
	if t == nil {
		return errors.New("climber: nil tree")
	}
	w := &walker{
		arena:   t.Arena,
		sep:     cfg.separator,
		visited: make(map[tree.Handle]struct{}),
		onLeaf:  onLeaf,
	}
	if err := w.climb(t.Root, "", "", nil); err != nil {
		cfg.logger.Debug("Walk aborted.", "error", err)
		return err
	}
	return nil
}

// climb visits v, reached under key at path. segments are the keys of path.
func (w *walker) climb(v tree.Value, key, path string, segments []string) error {
	if !v.IsContainer() {
		parents := segments
		if len(parents) > 0 {
			parents = parents[:len(parents)-1]
		}
		w.onLeaf(Leaf{Key: key, Value: v.Interface(), Path: path, parents: parents})
		return nil
	}

	if _, seen := w.visited[v.Handle()]; seen {
		return &CycleError{Path: path, Handle: v.Handle()}
	}
	w.visited[v.Handle()] = struct{}{}

	for i, n := 0, w.arena.Len(v); i < n; i++ {
		childKey, child := w.arena.Child(v, i)
		if strings.Contains(childKey, w.sep) {
			return &InvalidKeyError{Key: childKey, Separator: w.sep, Path: path}
		}

		childPath := childKey
		if len(segments) > 0 {
			childPath = path + w.sep + childKey
		}
		// Full slice expression so siblings never share a backing array.
		childSegments := append(segments[:len(segments):len(segments)], childKey)

		if err := w.climb(child, childKey, childPath, childSegments); err != nil {
			return err
		}
	}
	return nil
}
