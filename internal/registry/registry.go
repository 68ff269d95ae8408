package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"
)

// Leaf is one visited leaf as handed to sinks.
type Leaf struct {
	RunID string
	Seq   int // order in which the leaf reached the sinks, from 0
	Key   string
	Value any
	Path  string
}

// Sink consumes visited leaves. Visit may be called from several goroutines
// at once.
type Sink interface {
	Visit(ctx context.Context, leaf Leaf) (any, error)
	Close() error
}

// Settings is the sink configuration shared by all modules. Each module
// reads the fields it needs.
type Settings struct {
	RunID  string
	Out    io.Writer
	Logger *slog.Logger

	RecordPath string

	SocketIOURL        string
	SocketIONamespace  string
	EmitEvent          string
	InsecureSkipVerify bool

	WebhookURL     string
	WebhookTimeout time.Duration
}

// Factory opens a sink.
type Factory func(ctx context.Context, s Settings) (Sink, error)

// Module is the interface that all sink modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the sink factories for a single application instance.
type Registry struct {
	factories map[string]Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// RegisterSink registers f under name. Registering a name twice is a
// programmer error and panics.
func (r *Registry) RegisterSink(name string, f Factory) {
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("sink with name '%s' already registered", name))
	}
	slog.Debug("Registering sink.", "name", name)
	r.factories[name] = f
}

// Names returns the registered sink names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
