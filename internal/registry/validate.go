package registry

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
)

// ErrUnknownSink marks a configured sink name no module registered.
var ErrUnknownSink = errors.New("unknown sink")

// Validate checks that names is non-empty, free of duplicates and only
// names registered sinks. All problems are reported together.
func (r *Registry) Validate(names []string) error {
	if len(names) == 0 {
		return errors.New("registry validation failed: no sinks configured")
	}

	var result *multierror.Error
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			result = multierror.Append(result, errors.Newf("sink %q configured twice", name))
			continue
		}
		seen[name] = struct{}{}
		if _, ok := r.factories[name]; !ok {
			result = multierror.Append(result, errors.Wrapf(ErrUnknownSink, "%q (available: %s)", name, strings.Join(r.Names(), ", ")))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(err, "registry validation failed")
	}
	return nil
}
