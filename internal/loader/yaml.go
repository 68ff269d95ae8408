package loader

import (
	"github.com/cockroachdb/errors"
	"github.com/vk/treeclimb/tree"
	"go.yaml.in/yaml/v4"
)

const mergeTag = "!!merge"

// yamlBuilder converts a yaml.Node graph. Containers are remembered by node
// so that every alias to an anchored collection yields the same handle.
// Merge keys (<<) are the exception: merged entries are copied into the
// enclosing mapping.
type yamlBuilder struct {
	arena    *tree.Arena
	filename string
	built    map[*yaml.Node]tree.Value
	copying  map[*yaml.Node]bool
}

// decodeYAML handles JSON too; JSON documents are valid YAML.
func decodeYAML(data []byte, filename string) (*tree.Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "loader: parsing %s", filename)
	}

	b := &yamlBuilder{
		arena:    tree.NewArena(),
		filename: filename,
		built:    make(map[*yaml.Node]tree.Value),
		copying:  make(map[*yaml.Node]bool),
	}

	// An empty document has no content node.
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return &tree.Tree{Arena: b.arena, Root: tree.Leaf(nil)}, nil
	}
	root, err := b.value(doc.Content[0], true)
	if err != nil {
		return nil, err
	}
	return &tree.Tree{Arena: b.arena, Root: root}, nil
}

// value builds n. With share unset every container is freshly allocated,
// aliases included.
func (b *yamlBuilder) value(n *yaml.Node, share bool) (tree.Value, error) {
	if share {
		if v, ok := b.built[n]; ok {
			return v, nil
		}
	} else {
		if b.copying[n] {
			return tree.Value{}, b.errorf(n, "recursive alias in merged mapping")
		}
		b.copying[n] = true
		defer delete(b.copying, n)
	}

	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias == nil {
			return tree.Value{}, b.errorf(n, "dangling alias %q", n.Value)
		}
		return b.value(n.Alias, share)

	case yaml.MappingNode:
		obj := b.arena.NewKeyed()
		if share {
			b.built[n] = obj
		}
		if err := b.mapping(obj, n, share, false); err != nil {
			return tree.Value{}, err
		}
		return obj, nil

	case yaml.SequenceNode:
		arr := b.arena.NewIndexed()
		if share {
			b.built[n] = arr
		}
		for _, item := range n.Content {
			child, err := b.value(item, share)
			if err != nil {
				return tree.Value{}, err
			}
			b.arena.Append(arr, child)
		}
		return arr, nil

	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return tree.Value{}, b.errorf(n, "decoding scalar: %v", err)
		}
		return tree.Leaf(v), nil

	default:
		return tree.Value{}, b.errorf(n, "unexpected node kind %v", n.Kind)
	}
}

// mapping fills obj with the entries of n in source order. Explicit keys
// replace merged ones; a merged key never replaces a key already present.
func (b *yamlBuilder) mapping(obj tree.Value, n *yaml.Node, share, merged bool) error {
	if len(n.Content)%2 != 0 {
		return b.errorf(n, "mapping has an odd number of nodes")
	}
	// A merged mapping's own keys beat the mappings it merges in turn.
	var later []*yaml.Node
	for i := 0; i < len(n.Content); i += 2 {
		keyNode, valNode := n.Content[i], n.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return b.errorf(keyNode, "mapping keys must be scalars")
		}
		if keyNode.ShortTag() == mergeTag {
			if merged {
				later = append(later, valNode)
				continue
			}
			if err := b.merge(obj, valNode); err != nil {
				return err
			}
			continue
		}
		if _, exists := b.arena.Get(obj, keyNode.Value); merged && exists {
			continue
		}
		child, err := b.value(valNode, share && !merged)
		if err != nil {
			return err
		}
		b.arena.Set(obj, keyNode.Value, child)
	}
	for _, valNode := range later {
		if err := b.merge(obj, valNode); err != nil {
			return err
		}
	}
	return nil
}

// merge copies the mapping, or sequence of mappings, named by a merge key
// into obj. Earlier mappings in a sequence take precedence.
func (b *yamlBuilder) merge(obj tree.Value, n *yaml.Node) error {
	src := resolveAlias(n)
	if b.copying[src] {
		return b.errorf(n, "recursive alias in merged mapping")
	}
	b.copying[src] = true
	defer delete(b.copying, src)

	switch src.Kind {
	case yaml.MappingNode:
		return b.mapping(obj, src, false, true)
	case yaml.SequenceNode:
		for _, item := range src.Content {
			m := resolveAlias(item)
			if m.Kind != yaml.MappingNode {
				return b.errorf(item, "merge sequence items must be mappings")
			}
			if err := b.mapping(obj, m, false, true); err != nil {
				return err
			}
		}
		return nil
	default:
		return b.errorf(n, "merge value must be a mapping or a sequence of mappings")
	}
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func (b *yamlBuilder) errorf(n *yaml.Node, format string, args ...any) error {
	return errors.Wrapf(errors.Newf(format, args...), "loader: %s:%d:%d", b.filename, n.Line, n.Column)
}
