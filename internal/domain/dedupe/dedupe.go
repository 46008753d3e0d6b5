// Package dedupe tracks client submission keys so a retried submission is
// applied at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/libero/internal/domain/model"
)

const defaultMaxSize = 50000

// Deduper records idempotency keys together with the event each one produced.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Complete attaches the accepted event to a recorded key.
	Complete(ctx context.Context, key string, e model.Event)

	// Result returns the event accepted under key, if processing finished.
	Result(ctx context.Context, key string) (model.Event, bool)

	// Unrecord forgets key so a corrected submission may reuse it.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key   string
	event model.Event
	done  bool
}

// inMemoryDeduper evicts the oldest key once maxSize is reached. A maxSize
// of zero or less keeps every key.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is newest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

// Key scopes a client key to one match.
func Key(matchID, key string) string { return matchID + "\x00" + key }

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushFront(&entry{key: key})
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Complete(_ context.Context, key string, e model.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		en := el.Value.(*entry)
		en.event, en.done = e, true
	}
}

func (d *inMemoryDeduper) Result(_ context.Context, key string) (model.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.seen[key]
	if !ok {
		return model.Event{}, false
	}
	en := el.Value.(*entry)
	return en.event, en.done
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(*entry).key)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
