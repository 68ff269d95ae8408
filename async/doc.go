// Package async provides single-threaded futures for coordinating leaf
// invocations.
//
// # Why a Loop
//
// Go already runs goroutines in parallel, but the scheduler in the climber
// package needs a precise, reproducible ordering between continuations: when
// an anchor settles, the leaves waiting on it must start in the order they
// were chained. A Loop provides that. Futures may be settled from any
// goroutine, but every continuation (a Then callback, the bookkeeping of All)
// runs on whichever goroutine is driving the loop, one at a time, in the
// order it was scheduled.
//
// # Driving a Loop
//
//   - Drain runs everything that is ready and returns. Useful in tests, where
//     all futures settle synchronously.
//   - Await drives the loop until a given future settles or the context ends.
//   - Run drives the loop until the context ends.
//
// Nothing drives a loop in the background; a continuation scheduled on a loop
// that nobody drives never runs.
//
// # Settlement
//
// A Future settles exactly once, either fulfilled with a value or rejected
// with an error. Then chains work behind a future: the callback runs only
// when the future fulfills, and a rejection is passed through to the derived
// future without calling the callback. There is no cancellation.
package async
