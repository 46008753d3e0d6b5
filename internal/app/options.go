package service

import (
	"time"

	"github.com/okian/libero/internal/adapters/repository"
	"github.com/okian/libero/internal/domain/scoring"
	"github.com/okian/libero/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of recorder workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the total number of commands that may wait across all workers.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the idempotency key cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore sets the ledger repository. The service does not close a store it
// was given. Without one, Start opens an in-memory SQLite database.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDBPath makes Start open the SQLite database at path.
func WithDBPath(path string) Option {
	return func(s *Service) { s.dbPath = path }
}

// WithRules sets the rules used for matches created without their own.
func WithRules(r scoring.Rules) Option {
	return func(s *Service) { s.rules = r }
}

// WithAggregateTimeout bounds how long a statistics or report read may run.
func WithAggregateTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.aggregateTimeout = d
		}
	}
}

// WithClock overrides the clock stamped on accepted events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
