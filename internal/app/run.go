package app

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/vk/treeclimb/async"
	"github.com/vk/treeclimb/climber"
	"github.com/vk/treeclimb/internal/ctxlog"
	"github.com/vk/treeclimb/internal/loader"
	"github.com/vk/treeclimb/internal/registry"
	"github.com/vk/treeclimb/tree"
	"golang.org/x/sync/semaphore"
)

// Run loads the configured document and walks it, handing every leaf to the
// configured sinks. Sink failures on individual leaves are collected and
// returned together once the walk is over; in async mode a failure also
// starves the leaves anchored behind the failed one.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "mode", a.config.Mode, "path", a.config.Path)
	a.stats.Reset()

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
		defer func() {
			if closeErr := a.closeHealthcheckServer(ctx); closeErr != nil {
				err = multierror.Append(err, closeErr).ErrorOrNil()
			}
		}()
	}

	t, err := loader.Load(ctx, a.config.Path)
	if err != nil {
		return errors.Wrap(err, "failed to load document")
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return errors.Wrap(err, "failed to generate run id")
	}
	logger := a.logger.With("run_id", runID.String())
	ctx = ctxlog.WithLogger(ctx, logger)

	sinks, err := a.registry.Open(ctx, a.config.Sinks, registry.Settings{
		RunID:              runID.String(),
		Out:                a.outW,
		Logger:             logger,
		RecordPath:         a.config.RecordPath,
		SocketIOURL:        a.config.SocketIOURL,
		SocketIONamespace:  a.config.SocketIONamespace,
		EmitEvent:          a.config.EmitEvent,
		InsecureSkipVerify: a.config.InsecureSkipVerify,
		WebhookURL:         a.config.WebhookURL,
		WebhookTimeout:     a.config.WebhookTimeout,
	})
	if err != nil {
		return errors.Wrap(err, "failed to open sinks")
	}
	defer func() {
		if closeErr := sinks.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr).ErrorOrNil()
		}
	}()

	r := &run{
		app:   a,
		id:    runID.String(),
		sinks: sinks,
		opts: []climber.Option{
			climber.WithSeparator(a.config.Separator),
			climber.WithLogger(logger),
		},
	}

	logger.Info("🚀 Starting walk.", "mode", a.config.Mode, "sinks", sinks.Names())
	switch a.config.Mode {
	case ModeSync:
		err = r.walkSync(ctx, t)
	default:
		err = r.walkAsync(ctx, t)
	}
	logger.Info("🏁 Walk finished.", "stats", a.stats.Summary(), "failed", err != nil)
	return err
}

// run is the state of a single App.Run call.
type run struct {
	app   *App
	id    string
	sinks *registry.Fanout
	opts  []climber.Option
	seq   int
}

func (r *run) leaf(key string, value any, path string) registry.Leaf {
	l := registry.Leaf{RunID: r.id, Seq: r.seq, Key: key, Value: value, Path: path}
	r.seq++
	return l
}

// visit hands leaf to the sinks under the per-leaf deadline and records its
// latency.
func (r *run) visit(ctx context.Context, leaf registry.Leaf) (any, error) {
	if r.app.config.LeafTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.app.config.LeafTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.sinks.Visit(ctx, leaf)
	r.app.stats.Record(time.Since(start), err)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Leaf failed.", "path", leaf.Path, "error", err)
		return nil, errors.Wrapf(err, "leaf %q", leaf.Path)
	}
	return out, nil
}

// walkSync walks t in pre-order, visiting every leaf even after a failure.
func (r *run) walkSync(ctx context.Context, t *tree.Tree) error {
	var result *multierror.Error
	err := climber.Climb(t, func(key string, value any, path string) {
		if _, err := r.visit(ctx, r.leaf(key, value, path)); err != nil {
			result = multierror.Append(result, err)
		}
	}, r.opts...)
	if err != nil {
		return errors.Wrap(err, "walk failed")
	}
	return result.ErrorOrNil()
}

// walkAsync walks t through the dependency scheduler. Each invocation runs on its
// own goroutine once a worker slot is free; continuations run here, on the
// goroutine driving the loop.
func (r *run) walkAsync(ctx context.Context, t *tree.Tree) error {
	loop := async.NewLoop()
	workers := semaphore.NewWeighted(int64(r.app.config.WorkerCount))
	logger := ctxlog.FromContext(ctx)

	// Sinks are closed once Run returns, so in-flight visits must finish
	// first even when the walk has already failed.
	var inflight sync.WaitGroup
	defer inflight.Wait()

	all := climber.ClimbAsync(loop, t, func(key string, value any, path string) *async.Future[any] {
		leaf := r.leaf(key, value, path)
		p := async.NewPromise[any](loop)
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			if err := workers.Acquire(ctx, 1); err != nil {
				p.Reject(errors.Wrapf(err, "leaf %q", path))
				return
			}
			defer workers.Release(1)

			out, err := r.visit(ctx, leaf)
			if err != nil {
				p.Reject(err)
				return
			}
			p.Resolve(out)
		}()
		return p.Future()
	}, r.opts...)

	results, err := async.Await(ctx, all)
	if err != nil {
		return errors.Wrap(err, "walk failed")
	}
	logger.Debug("All leaves settled.", "results", len(results))
	return nil
}
