package async

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrRejected is the reason recorded when a future is rejected with a nil error.
var ErrRejected = errors.New("async: rejected without a reason")

// ErrNilFuture is the reason recorded when a Then callback returns a nil future.
var ErrNilFuture = errors.New("async: continuation returned a nil future")

type state uint8

const (
	pending state = iota
	fulfilled
	rejected
)

// Future is the eventual outcome of an operation. The zero value is not
// usable; futures are created by NewPromise, Resolved, Rejected, Then and All.
type Future[T any] struct {
	loop *Loop

	mu        sync.Mutex
	state     state
	value     T
	err       error
	callbacks []func()
	done      chan struct{}
}

func newFuture[T any](l *Loop) *Future[T] {
	return &Future[T]{loop: l, done: make(chan struct{})}
}

// settle records the outcome once and schedules the waiting continuations in
// the order they were registered. Later calls are ignored.
func (f *Future[T]) settle(st state, v T, err error) bool {
	f.mu.Lock()
	if f.state != pending {
		f.mu.Unlock()
		return false
	}
	f.state, f.value, f.err = st, v, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		f.loop.schedule(cb)
	}
	return true
}

func (f *Future[T]) fulfill(v T) bool {
	return f.settle(fulfilled, v, nil)
}

func (f *Future[T]) reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	var zero T
	return f.settle(rejected, zero, err)
}

// subscribe schedules cb on the loop once f has settled. If f has already
// settled, cb is scheduled right away.
func (f *Future[T]) subscribe(cb func()) {
	f.mu.Lock()
	if f.state == pending {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.loop.schedule(cb)
}

// Loop returns the loop that runs the continuations of f.
func (f *Future[T]) Loop() *Loop { return f.loop }

// Done returns a channel closed when f settles.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Settled reports whether f has been fulfilled or rejected.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != pending
}

// Result returns the outcome of a settled future. On a pending future it
// returns the zero value and a nil error.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Promise is the writable side of a future.
type Promise[T any] struct {
	f *Future[T]
}

// NewPromise creates a pending future bound to l and returns its writer.
func NewPromise[T any](l *Loop) *Promise[T] {
	return &Promise[T]{f: newFuture[T](l)}
}

// Future returns the future controlled by p.
func (p *Promise[T]) Future() *Future[T] { return p.f }

// Resolve fulfills the future with v. It reports false if the future had
// already settled. Safe for concurrent use.
func (p *Promise[T]) Resolve(v T) bool { return p.f.fulfill(v) }

// Reject rejects the future with err, or ErrRejected when err is nil. It
// reports false if the future had already settled. Safe for concurrent use.
func (p *Promise[T]) Reject(err error) bool { return p.f.reject(err) }

// Resolved returns a future already fulfilled with v.
func Resolved[T any](l *Loop, v T) *Future[T] {
	f := newFuture[T](l)
	f.fulfill(v)
	return f
}

// Rejected returns a future already rejected with err.
func Rejected[T any](l *Loop, err error) *Future[T] {
	f := newFuture[T](l)
	f.reject(err)
	return f
}

// Then returns a future that follows the one produced by fn once f fulfills.
// fn runs on the loop and is never called if f rejects; the rejection is
// passed through unchanged. A panic in fn rejects the returned future.
func Then[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	out := newFuture[U](f.loop)
	f.subscribe(func() {
		if f.state == rejected {
			out.reject(f.err)
			return
		}
		next, err := call(fn, f.value)
		if err != nil {
			out.reject(err)
			return
		}
		next.subscribe(func() {
			out.settle(next.state, next.value, next.err)
		})
	})
	return out
}

func call[T, U any](fn func(T) *Future[U], v T) (next *Future[U], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("async: continuation panicked: %v", r)
		}
	}()
	next = fn(v)
	if next == nil {
		return nil, ErrNilFuture
	}
	return next, nil
}

// All returns a future fulfilled with the values of fs, in order, once every
// one of them fulfills. It rejects with the first rejection observed; the
// other futures are left to settle on their own.
func All[T any](l *Loop, fs []*Future[T]) *Future[[]T] {
	out := newFuture[[]T](l)
	if len(fs) == 0 {
		out.fulfill([]T{})
		return out
	}

	results := make([]T, len(fs))
	remaining := len(fs)
	for i, f := range fs {
		f.subscribe(func() {
			if f.state == rejected {
				out.reject(f.err)
				return
			}
			results[i] = f.value
			remaining--
			if remaining == 0 {
				out.fulfill(results)
			}
		})
	}
	return out
}
