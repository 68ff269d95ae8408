package climber

import "log/slog"

// DefaultSeparator joins path segments unless WithSeparator says otherwise.
const DefaultSeparator = "."

// Option configures a Climb or ClimbAsync call.
type Option func(*config)

type config struct {
	separator string
	logger    *slog.Logger
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		separator: DefaultSeparator,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.separator == "" {
		return nil, ErrInvalidSeparator
	}
	return cfg, nil
}

// WithSeparator sets the string used to join path segments. No key in the
// tree may contain it.
func WithSeparator(sep string) Option {
	return func(c *config) {
		c.separator = sep
	}
}

// WithLogger sets the logger used for debug tracing of the walk.
// A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
