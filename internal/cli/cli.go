package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vk/treeclimb/internal/app"
)

// EnvPrefix prefixes the environment variables read in place of flags, e.g.
// TREECLIMB_LOG_LEVEL for --log-level.
const EnvPrefix = "TREECLIMB"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// Values are resolved flag first, then environment, then the file named by
// --config, then the flag default.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var cfg *app.Config
	cmd := newRootCommand(viper.New(), func(c *app.Config) { cfg = c })
	cmd.SetArgs(args)
	cmd.SetOut(output)
	cmd.SetErr(output)

	if err := cmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if cfg == nil {
		slog.Debug("No document to walk, exiting.")
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "config", cfg)
	return cfg, false, nil
}

func newRootCommand(v *viper.Viper, done func(*app.Config)) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "treeclimb [flags] PATH",
		Short: "Walk a tree-shaped document and hand every leaf to a set of sinks",
		Long: `treeclimb - walk nested HCL, JSON or YAML documents leaf by leaf.

In sync mode leaves are visited one after the other in pre-order. In async
mode each leaf waits for the first leaf that claimed its ancestor path, so
siblings run concurrently behind a shared anchor.

Arguments:
  PATH
    Path to a .hcl, .json, .yaml or .yml document.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initViper(v, cmd, configFile); err != nil {
				return err
			}
			if len(args) > 0 {
				v.Set("path", args[0])
			}
			if v.GetString("path") == "" {
				slog.Debug("No document path provided, printing usage and exiting.")
				return cmd.Usage()
			}

			cfg, err := configFromViper(v)
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			done(cfg)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, toml or json) providing defaults for any flag.")
	flags.String("mode", string(app.DefaultMode), "Walk mode. Options: 'sync' or 'async'.")
	flags.String("sep", ".", "Separator joining path segments.")
	flags.StringSlice("sink", []string{app.DefaultSink}, "Sink receiving every leaf; repeatable. Options: 'print', 'record', 'socketio', 'webhook'.")
	flags.Int("workers", app.DefaultWorkerCount, "Maximum number of leaves visited concurrently in async mode.")
	flags.Duration("leaf-timeout", 0, "Deadline for a single leaf visit. 0 is no deadline.")
	flags.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flags.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	flags.String("record-db", "treeclimb.db", "SQLite database written by the record sink.")
	flags.String("socketio-url", "", "Server URL for the socketio sink.")
	flags.String("socketio-namespace", "/", "Namespace for the socketio sink.")
	flags.String("emit-event", "leaf", "Event name emitted by the socketio sink.")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification in the socketio sink.")
	flags.String("webhook-url", "", "URL the webhook sink posts leaves to.")
	flags.Duration("webhook-timeout", 0, "Request timeout of the webhook sink. 0 uses the sink default.")

	return cmd
}

// initViper binds the flags and environment, then reads the config file.
func initViper(v *viper.Viper, cmd *cobra.Command, configFile string) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// path has no flag, so AutomaticEnv alone would never look it up.
	if err := v.BindEnv("path"); err != nil {
		return errors.Wrap(err, "binding path")
	}

	if configFile == "" {
		return nil
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return &ExitError{Code: 2, Message: errors.Wrapf(err, "reading config %s", configFile).Error()}
	}
	slog.Debug("Config file loaded.", "file", v.ConfigFileUsed())
	return nil
}

func configFromViper(v *viper.Viper) (*app.Config, error) {
	return app.NewConfig(app.Config{
		Path:               v.GetString("path"),
		Mode:               app.Mode(strings.ToLower(v.GetString("mode"))),
		Separator:          v.GetString("sep"),
		Sinks:              splitList(v.GetStringSlice("sink")),
		WorkerCount:        v.GetInt("workers"),
		LeafTimeout:        v.GetDuration("leaf-timeout"),
		LogFormat:          strings.ToLower(v.GetString("log-format")),
		LogLevel:           strings.ToLower(v.GetString("log-level")),
		HealthcheckPort:    v.GetInt("healthcheck-port"),
		RecordPath:         v.GetString("record-db"),
		SocketIOURL:        v.GetString("socketio-url"),
		SocketIONamespace:  v.GetString("socketio-namespace"),
		EmitEvent:          v.GetString("emit-event"),
		InsecureSkipVerify: v.GetBool("insecure-skip-verify"),
		WebhookURL:         v.GetString("webhook-url"),
		WebhookTimeout:     v.GetDuration("webhook-timeout"),
	})
}

// splitList flattens comma separated entries, as environment variables
// arrive as a single string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
