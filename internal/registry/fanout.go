package registry

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/vk/treeclimb/internal/ctxlog"
)

// Fanout is a Sink delivering every leaf to each of its sinks in order.
type Fanout struct {
	names []string
	sinks []Sink
}

// Open validates names and opens the sinks in order. If one fails, the sinks
// already opened are closed again.
func (r *Registry) Open(ctx context.Context, names []string, s Settings) (*Fanout, error) {
	logger := ctxlog.FromContext(ctx)
	if err := r.Validate(names); err != nil {
		return nil, err
	}
	if s.Logger == nil {
		s.Logger = logger
	}

	f := &Fanout{}
	for _, name := range names {
		sink, err := r.factories[name](ctx, s)
		if err != nil {
			err = errors.Wrapf(err, "opening sink %q", name)
			if closeErr := f.Close(); closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
			return nil, err
		}
		logger.Debug("Sink opened.", "sink", name)
		f.names = append(f.names, name)
		f.sinks = append(f.sinks, sink)
	}
	return f, nil
}

// Names returns the names of the open sinks.
func (f *Fanout) Names() []string { return f.names }

// Visit hands leaf to every sink and returns their results keyed by sink
// name. Every sink sees the leaf even when an earlier one fails; the errors
// are combined.
func (f *Fanout) Visit(ctx context.Context, leaf Leaf) (any, error) {
	results := make(map[string]any, len(f.sinks))
	var result *multierror.Error
	for i, sink := range f.sinks {
		out, err := sink.Visit(ctx, leaf)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "sink %q", f.names[i]))
			continue
		}
		results[f.names[i]] = out
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close closes every sink, in reverse opening order, and combines the errors.
func (f *Fanout) Close() error {
	var result *multierror.Error
	for i := len(f.sinks) - 1; i >= 0; i-- {
		if err := f.sinks[i].Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "closing sink %q", f.names[i]))
		}
	}
	f.sinks, f.names = nil, nil
	return result.ErrorOrNil()
}
