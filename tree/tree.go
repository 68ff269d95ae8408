package tree

import (
	"fmt"
	"sort"
	"strconv"
)

// Kind distinguishes leaves from the two container shapes.
type Kind uint8

const (
	// KindLeaf is any value that is not a container.
	KindLeaf Kind = iota
	// KindKeyed is a container mapping string keys to children.
	KindKeyed
	// KindIndexed is a container holding an ordered sequence of children.
	KindIndexed
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindKeyed:
		return "keyed"
	case KindIndexed:
		return "indexed"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Handle identifies a container inside its Arena.
type Handle int32

// NoHandle is the handle carried by leaf values.
const NoHandle Handle = -1

// Value is a tagged variant: either a leaf holding an arbitrary Go value or a
// reference to a container in an Arena.
type Value struct {
	kind   Kind
	handle Handle
	leaf   any
}

// Leaf wraps v as a leaf value. Containers are never produced by Leaf, even
// when v is a map or a slice.
func Leaf(v any) Value {
	return Value{kind: KindLeaf, handle: NoHandle, leaf: v}
}

// Kind returns the variant tag of the value.
func (v Value) Kind() Kind { return v.kind }

// IsContainer reports whether the value refers to a keyed or indexed container.
func (v Value) IsContainer() bool { return v.kind != KindLeaf }

// Handle returns the container handle, or NoHandle for leaves.
func (v Value) Handle() Handle { return v.handle }

// Interface returns the Go value held by a leaf. It returns nil for containers.
func (v Value) Interface() any { return v.leaf }

// container is one arena slot.
type container struct {
	kind     Kind
	keys     []string
	slots    map[string]int
	children []Value
}

// Arena owns every container of one or more trees.
type Arena struct {
	containers []container
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// NewKeyed allocates an empty keyed container.
func (a *Arena) NewKeyed() Value {
	a.containers = append(a.containers, container{kind: KindKeyed, slots: make(map[string]int)})
	return Value{kind: KindKeyed, handle: Handle(len(a.containers) - 1)}
}

// NewIndexed allocates an empty indexed container.
func (a *Arena) NewIndexed() Value {
	a.containers = append(a.containers, container{kind: KindIndexed})
	return Value{kind: KindIndexed, handle: Handle(len(a.containers) - 1)}
}

// Size returns the number of containers allocated in the arena.
func (a *Arena) Size() int { return len(a.containers) }

func (a *Arena) slot(v Value, want Kind) *container {
	if v.kind != want {
		panic(fmt.Sprintf("tree: expected %s container, got %s", want, v.kind))
	}
	if v.handle < 0 || int(v.handle) >= len(a.containers) {
		panic(fmt.Sprintf("tree: handle %d does not belong to this arena", v.handle))
	}
	return &a.containers[v.handle]
}

// Set stores child under key in the keyed container obj. Setting an existing
// key replaces its child without changing the key's position.
func (a *Arena) Set(obj Value, key string, child Value) {
	c := a.slot(obj, KindKeyed)
	if i, ok := c.slots[key]; ok {
		c.children[i] = child
		return
	}
	c.slots[key] = len(c.children)
	c.keys = append(c.keys, key)
	c.children = append(c.children, child)
}

// Append adds children to the end of the indexed container arr.
func (a *Arena) Append(arr Value, children ...Value) {
	c := a.slot(arr, KindIndexed)
	c.children = append(c.children, children...)
}

// Get returns the child stored under key in a keyed container.
func (a *Arena) Get(obj Value, key string) (Value, bool) {
	c := a.slot(obj, KindKeyed)
	i, ok := c.slots[key]
	if !ok {
		return Value{}, false
	}
	return c.children[i], true
}

// Len returns the number of children of container v.
func (a *Arena) Len(v Value) int {
	return len(a.slot(v, v.kind).children)
}

// Child returns the key and value of the i-th child of container v in its
// natural enumeration order. Indexed children are keyed by their decimal index.
func (a *Arena) Child(v Value, i int) (string, Value) {
	c := a.slot(v, v.kind)
	if c.kind == KindIndexed {
		return strconv.Itoa(i), c.children[i]
	}
	return c.keys[i], c.children[i]
}

// Tree is a root value together with the arena its containers live in.
type Tree struct {
	Arena *Arena
	Root  Value
}

// Field is one entry of an Obj literal.
type Field struct {
	Key   string
	Value any
}

// Obj is an ordered keyed-container literal.
type Obj []Field

// Arr is an indexed-container literal.
type Arr []any

// New builds a tree from a Go literal. See Arena.From for the conversion rules.
func New(v any) *Tree {
	a := NewArena()
	return &Tree{Arena: a, Root: a.From(v)}
}

// From converts a Go literal into a Value allocated in a:
//
//   - Obj becomes a keyed container in field order.
//   - map[string]any becomes a keyed container with keys in sorted order.
//   - Arr and []any become indexed containers.
//   - A Value is returned unchanged, which is how shared references are made.
//   - Anything else becomes a leaf.
func (a *Arena) From(v any) Value {
	switch x := v.(type) {
	case Value:
		return x
	case Obj:
		obj := a.NewKeyed()
		for _, f := range x {
			a.Set(obj, f.Key, a.From(f.Value))
		}
		return obj
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := a.NewKeyed()
		for _, k := range keys {
			a.Set(obj, k, a.From(x[k]))
		}
		return obj
	case Arr:
		return a.fromSlice(x)
	case []any:
		return a.fromSlice(x)
	default:
		return Leaf(v)
	}
}

func (a *Arena) fromSlice(items []any) Value {
	arr := a.NewIndexed()
	for _, item := range items {
		a.Append(arr, a.From(item))
	}
	return arr
}
