// Package socketio provides the "socketio" sink, which emits every visited
// leaf as an event on a socket.io connection.
package socketio

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vk/treeclimb/internal/registry"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEvent is emitted when no event name is configured.
const DefaultEvent = "leaf"

// connectTimeout bounds the wait for the connect event when ctx has no deadline.
const connectTimeout = 15 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct{}

// Config is the connection configuration of the sink.
type Config struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
}

// Sink emits leaves on a connected socket.
type Sink struct {
	io     *socket.Socket
	event  string
	runID  string
	logger *slog.Logger
}

// Dial connects to cfg.URL and waits for the connection to be established.
func Dial(ctx context.Context, cfg Config, runID string, logger *slog.Logger) (*Sink, error) {
	if cfg.URL == "" {
		return nil, errors.New("socket.io url is required")
	}
	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse URL")
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, errors.Newf("socket.io url %q must be absolute", cfg.URL)
	}
	if cfg.Event == "" {
		cfg.Event = DefaultEvent
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("sink", "socketio", "url", cfg.URL)

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connected := make(chan error, 1)
	manager := socket.NewManager(parsedURL.Scheme+"://"+parsedURL.Host, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected.", "sid", io.Id())
		select {
		case connected <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		logger.Debug("Connection attempt failed.", "error", err)
		select {
		case connected <- err:
		default:
		}
	})

	logger.Debug("Connecting.")
	io.Connect()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, errors.Wrap(err, "socket.io connection failed")
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, errors.Wrap(ctx.Err(), "waiting for socket.io connection")
	}

	return &Sink{io: io, event: cfg.Event, runID: runID, logger: logger}, nil
}

// Payload is the event body emitted for a leaf.
func Payload(leaf registry.Leaf) map[string]any {
	return map[string]any{
		"run_id": leaf.RunID,
		"seq":    leaf.Seq,
		"path":   leaf.Path,
		"key":    leaf.Key,
		"value":  leaf.Value,
	}
}

// Visit emits the leaf. Delivery is not acknowledged.
func (s *Sink) Visit(_ context.Context, leaf registry.Leaf) (any, error) {
	if !s.io.Connected() {
		return nil, errors.Newf("socket.io client disconnected before %q", leaf.Path)
	}
	if leaf.RunID == "" {
		leaf.RunID = s.runID
	}
	s.logger.Debug("Emitting leaf.", "event", s.event, "path", leaf.Path)
	s.io.Emit(s.event, Payload(leaf))
	return s.event, nil
}

// Close disconnects the socket.
func (s *Sink) Close() error {
	s.logger.Info("Disconnecting.", "sid", s.io.Id())
	s.io.Disconnect()
	return nil
}

// Register registers the sink with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSink("socketio", func(ctx context.Context, s registry.Settings) (registry.Sink, error) {
		return Dial(ctx, Config{
			URL:                s.SocketIOURL,
			Namespace:          s.SocketIONamespace,
			Event:              s.EmitEvent,
			InsecureSkipVerify: s.InsecureSkipVerify,
		}, s.RunID, s.Logger)
	})
}
