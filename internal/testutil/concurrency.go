package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vk/treeclimb/internal/registry"
)

// SleeperModule registers the "sleeper" sink, which sleeps on every visit
// and records when each leaf ran. Paths listed in Fail are rejected.
type SleeperModule struct {
	Sleep time.Duration
	Fail  map[string]bool

	mu      sync.Mutex
	records map[string]*ExecutionRecord
	order   []string

	running    atomic.Int64
	maxRunning atomic.Int64
}

// NewSleeperModule creates a sleeper sink module.
func NewSleeperModule(sleep time.Duration, fail ...string) *SleeperModule {
	m := &SleeperModule{Sleep: sleep, Fail: make(map[string]bool), records: make(map[string]*ExecutionRecord)}
	for _, path := range fail {
		m.Fail[path] = true
	}
	return m
}

// Register implements the registry.Module interface.
func (m *SleeperModule) Register(r *registry.Registry) {
	r.RegisterSink("sleeper", func(context.Context, registry.Settings) (registry.Sink, error) {
		return (*sleeperSink)(m), nil
	})
}

// Order returns the paths in the order their visits started.
func (m *SleeperModule) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Record returns the execution record of path, or nil.
func (m *SleeperModule) Record(path string) *ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[path]
}

// MaxConcurrent returns the highest number of visits seen running at once.
func (m *SleeperModule) MaxConcurrent() int64 {
	return m.maxRunning.Load()
}

type sleeperSink SleeperModule

func (s *sleeperSink) Visit(ctx context.Context, leaf registry.Leaf) (any, error) {
	m := (*SleeperModule)(s)
	start := time.Now()

	m.mu.Lock()
	m.order = append(m.order, leaf.Path)
	m.mu.Unlock()

	n := m.running.Add(1)
	defer m.running.Add(-1)
	for {
		peak := m.maxRunning.Load()
		if n <= peak || m.maxRunning.CompareAndSwap(peak, n) {
			break
		}
	}

	select {
	case <-time.After(m.Sleep):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.Lock()
	m.records[leaf.Path] = &ExecutionRecord{Start: start, End: time.Now()}
	m.mu.Unlock()

	if m.Fail[leaf.Path] {
		return nil, errors.Newf("sleeper rejected %q", leaf.Path)
	}
	return leaf.Value, nil
}

func (s *sleeperSink) Close() error { return nil }
