// Package print provides the "print" sink, which writes every visited leaf
// as a `path = value` line.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vk/treeclimb/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Sink writes one line per leaf, in the order the leaves arrive.
type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

// New returns a sink writing to out, or to stdout when out is nil.
func New(out io.Writer) *Sink {
	if out == nil {
		out = os.Stdout
	}
	return &Sink{out: out}
}

// Visit writes the leaf and returns the line written, without newline.
func (s *Sink) Visit(_ context.Context, leaf registry.Leaf) (any, error) {
	line := Format(leaf)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.out, line); err != nil {
		return nil, err
	}
	return line, nil
}

// Close is a no-op; the writer belongs to the caller.
func (s *Sink) Close() error { return nil }

// Format renders a leaf. A root leaf has no path and prints as "<root>".
func Format(leaf registry.Leaf) string {
	path := leaf.Path
	if path == "" {
		path = "<root>"
	}
	if str, ok := leaf.Value.(string); ok {
		return fmt.Sprintf("%s = %q", path, str)
	}
	return fmt.Sprintf("%s = %v", path, leaf.Value)
}

// Register registers the sink with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSink("print", func(_ context.Context, s registry.Settings) (registry.Sink, error) {
		return New(s.Out), nil
	})
}
