// Package climber walks trees built with the tree package.
//
// # Climb
//
// Climb performs a synchronous pre-order walk and calls a Visitor for every
// leaf with the leaf's key, its value and its path (the keys from the root
// joined by a separator, "." by default). Containers are never visited.
//
//	err := climber.Climb(t, func(key string, value any, path string) {
//	    fmt.Println(path, "=", value)
//	})
//
// # ClimbAsync
//
// ClimbAsync drives the same walk, but the visitor returns a future and the
// leaf invocations are wired into a dependency graph through a claim table
// keyed by ancestor-path prefixes:
//
//   - The first leaf to reach an unclaimed prefix becomes that prefix's
//     anchor. Anchors are never replaced during a call.
//   - A later leaf is chained behind the anchor of the longest claimed prefix
//     of its ancestor path and only starts once that anchor fulfills.
//   - Leaves chained behind the same anchor start together, in the order they
//     were reached, when it fulfills.
//
// The first leaf of the walk always claims the root prefix, so every leaf
// that does not find a more specific anchor waits for it. If the first leaf
// never settles, nothing else runs; if it rejects, no other leaf behind it is
// ever invoked. This is part of the contract.
//
// # Errors
//
// A container reached twice (a cycle, or the same container shared by two
// parents) fails with ErrCycleDetected. A key containing the separator fails
// with ErrInvalidKey. Both abort the whole walk. Errors returned by the
// visitor's futures are passed through unchanged.
package climber
