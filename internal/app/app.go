package app

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/treeclimb/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	stats      *Stats
	httpServer *http.Server
}

// NewApp is the constructor for the main application. Logs and the print
// sink both write to outW. Without modules, the core sink modules are
// registered.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All sink modules registered.", "count", len(modules), "sinks", reg.Names())

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		stats:    newStats(),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Stats returns the latency statistics of the current or last run. Run
// resets them when it starts.
func (a *App) Stats() *Stats {
	return a.stats
}
