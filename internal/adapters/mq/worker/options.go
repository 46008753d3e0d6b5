package worker

import (
	"github.com/okian/libero/pkg/logger"
)

// Option configures an InMemoryWorker. Pool passes its options to every
// worker it starts.
type Option func(*InMemoryWorker)

// WithName labels the worker in logs and spans. Pool names its workers
// after their shard.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger replaces the named default logger.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}
