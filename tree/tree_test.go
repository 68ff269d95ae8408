package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaf(t *testing.T) {
	v := Leaf(map[string]any{"a": 1})
	assert.Equal(t, KindLeaf, v.Kind())
	assert.False(t, v.IsContainer())
	assert.Equal(t, NoHandle, v.Handle())
	assert.Equal(t, map[string]any{"a": 1}, v.Interface())

	assert.Nil(t, Leaf(nil).Interface())
}

func TestArenaKeyed(t *testing.T) {
	a := NewArena()
	obj := a.NewKeyed()
	require.True(t, obj.IsContainer())

	a.Set(obj, "b", Leaf(1))
	a.Set(obj, "a", Leaf(2))
	a.Set(obj, "b", Leaf(3)) // replaces in place

	require.Equal(t, 2, a.Len(obj))
	k, v := a.Child(obj, 0)
	assert.Equal(t, "b", k)
	assert.Equal(t, 3, v.Interface())
	k, v = a.Child(obj, 1)
	assert.Equal(t, "a", k)
	assert.Equal(t, 2, v.Interface())

	got, ok := a.Get(obj, "a")
	require.True(t, ok)
	assert.Equal(t, 2, got.Interface())
	_, ok = a.Get(obj, "missing")
	assert.False(t, ok)
}

func TestArenaIndexed(t *testing.T) {
	a := NewArena()
	arr := a.NewIndexed()
	a.Append(arr, Leaf("x"), Leaf("y"))

	require.Equal(t, 2, a.Len(arr))
	k, v := a.Child(arr, 1)
	assert.Equal(t, "1", k)
	assert.Equal(t, "y", v.Interface())
}

func TestArenaWrongKindPanics(t *testing.T) {
	a := NewArena()
	arr := a.NewIndexed()
	assert.Panics(t, func() { a.Set(arr, "k", Leaf(1)) })
	assert.Panics(t, func() { a.Append(a.NewKeyed(), Leaf(1)) })
	assert.Panics(t, func() { a.Len(Leaf(1)) })
}

func TestNewFromLiterals(t *testing.T) {
	tr := New(Obj{
		{Key: "z", Value: Arr{"a", nil}},
		{Key: "m", Value: map[string]any{"y": 1, "x": []any{true}}},
	})
	a := tr.Arena
	require.Equal(t, KindKeyed, tr.Root.Kind())
	require.Equal(t, 2, a.Len(tr.Root))

	k, z := a.Child(tr.Root, 0)
	assert.Equal(t, "z", k)
	assert.Equal(t, KindIndexed, z.Kind())
	assert.Equal(t, 2, a.Len(z))

	_, m := a.Child(tr.Root, 1)
	k0, _ := a.Child(m, 0)
	k1, x := a.Child(m, 1)
	assert.Equal(t, "x", k0, "map keys are sorted")
	assert.Equal(t, "y", k1)
	assert.Equal(t, 1, x.Interface())
	assert.Equal(t, 4, a.Size())
}

func TestFromSharesValues(t *testing.T) {
	a := NewArena()
	shared := a.From(Obj{{Key: "k", Value: "v"}})
	root := a.From(Obj{{Key: "left", Value: shared}, {Key: "right", Value: shared}})

	_, left := a.Child(root, 0)
	_, right := a.Child(root, 1)
	assert.Equal(t, left.Handle(), right.Handle())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "leaf", KindLeaf.String())
	assert.Equal(t, "keyed", KindKeyed.String())
	assert.Equal(t, "indexed", KindIndexed.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
