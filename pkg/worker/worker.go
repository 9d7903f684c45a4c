// Package worker runs the arrangement management of a dataflow worker: it owns a trace manager,
// serializes access to it and drives its periodic maintenance.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/l7mp/arrange/pkg/arrangement"
)

// DefaultMaintenanceInterval is the default period of the maintenance tick.
const DefaultMaintenanceInterval = time.Second

var (
	// ErrStopped is returned when a request is made to a worker that is not running.
	ErrStopped = errors.New("worker is not running")
	// ErrAlreadyStarted is returned when a worker is started for the second time.
	ErrAlreadyStarted = errors.New("worker has already been started")
)

// Options are the options of a worker.
type Options struct {
	// MaintenanceInterval is the period of the maintenance tick. Defaults to
	// DefaultMaintenanceInterval.
	MaintenanceInterval time.Duration
	// Logger is the base logger. Defaults to a discarding logger.
	Logger logr.Logger
}

type request struct {
	fn   func(*arrangement.Manager)
	done chan struct{}
}

// Worker is the single owner of a trace manager. All access to the manager runs on the worker's
// goroutine.
type Worker struct {
	manager  *arrangement.Manager
	requests chan request
	interval time.Duration
	started  atomic.Bool
	stopped  chan struct{}
	stopOnce sync.Once
	log      logr.Logger
}

// New creates a worker owning the given manager.
func New(manager *arrangement.Manager, opts Options) *Worker {
	logger := opts.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	interval := opts.MaintenanceInterval
	if interval <= 0 {
		interval = DefaultMaintenanceInterval
	}

	return &Worker{
		manager:  manager,
		requests: make(chan request),
		interval: interval,
		stopped:  make(chan struct{}),
		log:      logger.WithName("worker"),
	}
}

// Start runs the worker until the context is canceled. On exit all arrangements are retired.
// A worker can be started only once; further calls return ErrAlreadyStarted.
func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	w.log.Info("starting", "maintenance-interval", w.interval.String())

	tickCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go wait.UntilWithContext(tickCtx, func(ctx context.Context) {
		if err := w.Maintenance(ctx); err != nil && !errors.Is(err, ErrStopped) &&
			!errors.Is(err, context.Canceled) {
			w.log.Error(err, "maintenance failed")
		}
	}, w.interval)

	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil
		case req := <-w.requests:
			req.fn(w.manager)
			close(req.done)
		}
	}
}

func (w *Worker) stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		w.manager.DelAllTraces()
		w.log.Info("stopped")
	})
}

// Do runs fn on the worker goroutine with exclusive access to the trace manager and waits for it
// to finish. Blocks until the worker is started.
func (w *Worker) Do(ctx context.Context, fn func(*arrangement.Manager)) error {
	req := request{fn: fn, done: make(chan struct{})}

	select {
	case <-w.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case w.requests <- req:
	}

	// once accepted, the request runs to completion on the worker goroutine
	<-req.done
	return nil
}

// Maintenance runs a maintenance sweep over all collections.
func (w *Worker) Maintenance(ctx context.Context) error {
	return w.Do(ctx, func(m *arrangement.Manager) { m.Maintenance() })
}

// AllowCompaction relaxes the logical compaction frontier of a collection.
func (w *Worker) AllowCompaction(ctx context.Context, name string, since []arrangement.Timestamp) error {
	return w.Do(ctx, func(m *arrangement.Manager) { m.AllowCompaction(name, since) })
}

// DelTrace retires all arrangements of a collection.
func (w *Worker) DelTrace(ctx context.Context, name string) error {
	return w.Do(ctx, func(m *arrangement.Manager) { m.DelTrace(name) })
}

// Stopped returns a channel that is closed when the worker has stopped.
func (w *Worker) Stopped() <-chan struct{} { return w.stopped }
