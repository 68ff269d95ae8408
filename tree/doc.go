// Package tree is the value model walked by the climber package.
//
// A tree is made of containers and leaves. Containers are either keyed
// (an insertion-ordered mapping from string keys to children) or indexed
// (an ordered sequence whose child keys are the decimal indexes). Anything
// else is a leaf, including nil.
//
// # Container Identity
//
// Containers live in an Arena and are addressed by a Handle, the arena slot
// they occupy. A Value that refers to a container only carries its Handle,
// so the same container can appear in more than one place (a shared
// reference) or inside itself (a cycle). Walkers decide identity by Handle,
// never by structural equality.
//
// # Building Trees
//
// Small trees are easiest to write as Go literals:
//
//	t := tree.New(tree.Obj{
//	    {Key: "a", Value: tree.Obj{{Key: "b", Value: "c"}}},
//	    {Key: "list", Value: tree.Arr{1, 2, 3}},
//	})
//
// Cycles and shared references need the Arena API:
//
//	a := tree.NewArena()
//	root := a.NewKeyed()
//	a.Set(root, "self", root)
package tree
