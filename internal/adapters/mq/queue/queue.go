// Package queue carries recorder commands from request handlers to workers.
//
// A queue is strictly FIFO: commands are handed out in the order they were
// accepted, which is what keeps a match's events in submission order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Errors returned by Enqueue.
var (
	ErrClosed = errors.New("command queue closed")
	ErrFull   = errors.New("command queue full")
)

// Option configures an InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds how many commands may wait for the worker. Values
// below one keep the default.
func WithCapacity(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// Result is what a worker sends back for a command.
type Result struct {
	Event model.Event
	Err   error
}

// Command asks a worker to append Event to the ledger of MatchID.
type Command struct {
	MatchID string
	Key     string // idempotency key, optional
	Event   model.Event
	Span    trace.SpanContext
	Reply   chan Result
}

// NewCommand builds a command with a reply channel that never blocks the worker.
func NewCommand(ctx context.Context, matchID, key string, e model.Event) Command { //nolint:gocritic // hugeParam: Event is copied into the command
	return Command{
		MatchID: matchID,
		Key:     key,
		Event:   e,
		Span:    trace.SpanContextFromContext(ctx),
		Reply:   make(chan Result, 1),
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a command. Returns ErrFull or ErrClosed if it was not accepted.
	Enqueue(ctx context.Context, c Command) error

	// Dequeue returns a channel that receives commands in FIFO order.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Command

	// Len returns the current number of queued commands.
	Len() int

	// Cap returns the configured capacity.
	Cap() int

	// Close stops accepting commands.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	commands chan Command
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.commands = make(chan Command, q.capacity)
	return q
}

// Enqueue adds a command to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Command) error { //nolint:gocritic // hugeParam: Command is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return ErrClosed
	}

	select {
	case q.commands <- c:
		metrics.RecordQueueEnqueue()
		return nil
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		return fmt.Errorf("enqueue: %w", ctx.Err())
	default:
		metrics.RecordQueueEnqueueError()
		return ErrFull
	}
}

// Dequeue returns a channel that will receive commands as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Command {
	out := make(chan Command)
	go func() {
		defer close(out)
		for c := range q.commands {
			select {
			case out <- c:
				metrics.RecordQueueDequeue()
			case <-ctx.Done():
				c.Reply <- Result{Err: fmt.Errorf("dequeue: %w", ctx.Err())}
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued commands.
func (q *InMemoryQueue) Len() int { return len(q.commands) }

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close gracefully shuts down the queue. Commands already queued are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.commands)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
