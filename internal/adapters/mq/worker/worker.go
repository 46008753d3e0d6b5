// Package worker runs the single-writer recorder loops.
//
// Every match is owned by exactly one worker: the pool hashes the match id to
// a shard, and each shard has its own FIFO queue and goroutine. Commands for
// one match are therefore applied strictly in arrival order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/libero/internal/adapters/mq/queue"
	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/pkg/logger"
	"github.com/okian/libero/pkg/metrics"
	"github.com/okian/libero/pkg/tracing"
)

// Default worker configuration constants.
const (
	defaultShardCapacity  = 256
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Sentinel kinds for worker errors.
var (
	ErrStopped   = errors.New("worker stopped")
	ErrPanic     = errors.New("handler panicked")
	ErrNotQueued = errors.New("command not queued")
)

// Handler applies one command and returns the stored event.
type Handler interface {
	Handle(ctx context.Context, c queue.Command) (model.Event, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, c queue.Command) (model.Event, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, c queue.Command) (model.Event, error) { //nolint:gocritic // hugeParam: Command is passed by value for channel semantics
	return f(ctx, c)
}

// Worker processes commands from one queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker. Commands still queued are answered with ErrStopped.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   queue.Queue
	handler Handler
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q queue.Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  handler,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	commands := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.reject(commands)
			return
		case c, ok := <-commands:
			if !ok {
				return
			}
			c.Reply <- w.process(ctx, c)
		}
	}
}

// reject answers whatever is immediately available so no caller waits forever.
func (w *InMemoryWorker) reject(commands <-chan queue.Command) {
	for {
		select {
		case c, ok := <-commands:
			if !ok {
				return
			}
			c.Reply <- queue.Result{Err: ErrStopped}
		default:
			return
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process handles a single command.
func (w *InMemoryWorker) process(ctx context.Context, c queue.Command) (res queue.Result) { //nolint:gocritic // hugeParam: Command is passed by value for channel semantics
	start := time.Now()
	if c.Span.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, c.Span)
	}
	ctx, span := tracing.Start(ctx, "worker.handle", trace.WithAttributes(
		attribute.String("worker", w.name),
		attribute.String("match.id", c.MatchID),
		attribute.String("event.type", string(c.Event.Type)),
	))
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerError()
			w.logger.Error(ctx, "handler panicked",
				logger.String("match", c.MatchID),
				logger.Any("panic", r),
			)
			res = queue.Result{Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
		tracing.End(span, res.Err)
	}()

	e, err := w.handler.Handle(ctx, c)
	if err != nil {
		w.logger.Debug(ctx, "command rejected",
			logger.String("match", c.MatchID),
			logger.String("type", string(c.Event.Type)),
			logger.Error(err),
		)
		return queue.Result{Err: err}
	}
	return queue.Result{Event: e}
}

// Pool owns one queue and one worker per shard.
type Pool struct {
	workers []*InMemoryWorker
	queues  []*queue.InMemoryQueue

	shutdown chan struct{}
	logger   logger.Logger
}

// NewPool creates a pool of workerCount shards, each with a queue of
// shardCapacity commands. Non-positive values fall back to defaults.
func NewPool(workerCount, shardCapacity int, handler Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	if shardCapacity < 1 {
		shardCapacity = defaultShardCapacity
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queues:   make([]*queue.InMemoryQueue, workerCount),
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(shardCapacity))
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(p.queues[i], handler, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateQueueCapacity(p.Cap())
	metrics.UpdateQueueSize(0)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			metrics.UpdateQueueSize(p.Len())
		}
	}
}

// Shard returns the index of the worker that owns matchID.
func (p *Pool) Shard(matchID string) int {
	return int(xxhash.Sum64String(matchID) % uint64(len(p.workers))) //nolint:gosec // bounded by worker count
}

// Submit enqueues c on the shard owning its match.
func (p *Pool) Submit(ctx context.Context, c queue.Command) error { //nolint:gocritic // hugeParam: Command is passed by value for channel semantics
	if err := p.queues[p.Shard(c.MatchID)].Enqueue(ctx, c); err != nil {
		return fmt.Errorf("submit %s: %w: %w", c.MatchID, ErrNotQueued, err)
	}
	return nil
}

// Do submits c and waits for its result. An error wrapping ErrNotQueued or
// ErrStopped means the handler never saw c; after a context error it may
// still run.
func (p *Pool) Do(ctx context.Context, c queue.Command) (model.Event, error) { //nolint:gocritic // hugeParam: Command is passed by value for channel semantics
	if err := p.Submit(ctx, c); err != nil {
		return model.Event{}, err
	}
	select {
	case r := <-c.Reply:
		return r.Event, r.Err
	case <-ctx.Done():
		return model.Event{}, fmt.Errorf("await %s: %w", c.MatchID, ctx.Err())
	}
}

// Len returns the number of queued commands across all shards.
func (p *Pool) Len() int {
	n := 0
	for _, q := range p.queues {
		n += q.Len()
	}
	return n
}

// Cap returns the total queue capacity.
func (p *Pool) Cap() int {
	n := 0
	for _, q := range p.queues {
		n += q.Cap()
	}
	return n
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Shutdown closes every queue and waits for workers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, q := range p.queues {
		if err := q.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
		}
	}
	metrics.UpdateQueueSize(0)
	return nil
}
