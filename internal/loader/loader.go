package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vk/treeclimb/internal/ctxlog"
	"github.com/vk/treeclimb/tree"
)

// Format names a supported document syntax.
type Format string

const (
	FormatHCL  Format = "hcl"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for files whose extension maps to no Format.
var ErrUnsupportedFormat = errors.New("loader: unsupported document format")

// FormatOf picks the format from the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return FormatHCL, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "%q", path)
	}
}

// Option tunes decoding.
type Option func(*options)

type options struct {
	env map[string]string
}

// WithEnv sets the values exposed to HCL expressions as env.NAME. Load
// defaults to the process environment; Decode defaults to an empty set.
func WithEnv(env map[string]string) Option {
	return func(o *options) {
		o.env = env
	}
}

// Load reads the document at path and decodes it according to its extension.
func Load(ctx context.Context, path string, opts ...Option) (*tree.Tree, error) {
	logger := ctxlog.FromContext(ctx)

	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loader: reading %s", path)
	}
	logger.Debug("Document read.", "path", path, "format", format, "bytes", len(data))

	t, err := Decode(data, path, format, append([]Option{WithEnv(environ())}, opts...)...)
	if err != nil {
		return nil, err
	}
	logger.Debug("Document decoded.", "path", path, "containers", t.Arena.Size(), "root", t.Root.Kind())
	return t, nil
}

// Decode converts data in the given format into a tree. filename is only
// used in error messages.
func Decode(data []byte, filename string, format Format, opts ...Option) (*tree.Tree, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	switch format {
	case FormatHCL:
		return decodeHCL(data, filename, o)
	case FormatJSON, FormatYAML:
		return decodeYAML(data, filename)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	return env
}
