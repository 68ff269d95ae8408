package app

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/vk/treeclimb/climber"
)

// Mode selects how the document is walked.
type Mode string

const (
	// ModeSync visits leaves one after the other in pre-order.
	ModeSync Mode = "sync"
	// ModeAsync schedules leaves behind the anchors of their ancestor paths.
	ModeAsync Mode = "async"
)

// Defaults applied by NewConfig.
const (
	DefaultMode        = ModeAsync
	DefaultWorkerCount = 10
	DefaultSink        = "print"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Path      string // document to walk (.hcl, .json, .yaml, .yml)
	Mode      Mode
	Separator string
	Sinks     []string

	WorkerCount int
	LeafTimeout time.Duration // 0 disables the per-leaf deadline

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	RecordPath         string
	SocketIOURL        string
	SocketIONamespace  string
	EmitEvent          string
	InsecureSkipVerify bool
	WebhookURL         string
	WebhookTimeout     time.Duration
}

// NewConfig fills in defaults and validates cfg. Every invalid field is
// reported.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}
	if cfg.Separator == "" {
		cfg.Separator = climber.DefaultSeparator
	}
	if len(cfg.Sinks) == 0 {
		cfg.Sinks = []string{DefaultSink}
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	var result *multierror.Error
	if cfg.Path == "" {
		result = multierror.Append(result, errors.New("Path is a required configuration field and cannot be empty"))
	}
	if cfg.Mode != ModeSync && cfg.Mode != ModeAsync {
		result = multierror.Append(result, errors.Newf("mode must be %q or %q, got %q", ModeSync, ModeAsync, cfg.Mode))
	}
	if cfg.WorkerCount < 0 {
		result = multierror.Append(result, errors.Newf("worker count must be positive, got %d", cfg.WorkerCount))
	}
	if cfg.LeafTimeout < 0 {
		result = multierror.Append(result, errors.Newf("leaf timeout must not be negative, got %s", cfg.LeafTimeout))
	}
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		result = multierror.Append(result, errors.Newf("unknown log level %q", cfg.LogLevel))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		result = multierror.Append(result, errors.Newf("log format must be \"text\" or \"json\", got %q", cfg.LogFormat))
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		result = multierror.Append(result, errors.Newf("healthcheck port %d out of range", cfg.HealthcheckPort))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}
