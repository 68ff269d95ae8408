package async

import (
	"context"
	"sync"
)

// Loop is a FIFO queue of continuations executed by a single driver goroutine.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	// wake is signalled whenever a task is queued so an idle driver can resume.
	wake chan struct{}
}

// NewLoop creates an idle loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// schedule appends task to the queue. Safe for concurrent use.
func (l *Loop) schedule(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// Pending returns the number of queued continuations.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Drain runs queued continuations, including the ones they schedule, until
// the queue is empty. It returns the number of continuations run.
func (l *Loop) Drain() int {
	n := 0
	for {
		task, ok := l.next()
		if !ok {
			return n
		}
		task()
		n++
	}
}

// Run drives the loop until ctx is done, blocking while the queue is empty.
// It always returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()
		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Await drives the loop of f until f settles or ctx is done. A context
// error only stops the waiting; work already started keeps running.
func Await[T any](ctx context.Context, f *Future[T]) (T, error) {
	for {
		f.loop.Drain()
		select {
		case <-f.done:
			return f.value, f.err
		default:
		}

		select {
		case <-f.done:
		case <-f.loop.wake:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}
