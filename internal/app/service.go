// Package service wires the recorder, repository, workers and read paths
// behind the operations the HTTP API and CLI call.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/libero/internal/adapters/mq/queue"
	"github.com/okian/libero/internal/adapters/mq/worker"
	"github.com/okian/libero/internal/adapters/repository"
	"github.com/okian/libero/internal/domain/dedupe"
	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/recorder"
	"github.com/okian/libero/internal/domain/report"
	"github.com/okian/libero/internal/domain/scoring"
	"github.com/okian/libero/internal/domain/stats"
	"github.com/okian/libero/pkg/logger"
	"github.com/okian/libero/pkg/metrics"
	"github.com/okian/libero/pkg/tracing"
)

// CreateMatchRequest describes a new match.
type CreateMatchRequest struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	PlayedAt time.Time      `json:"played_at"`
	Teams    [2]model.Team  `json:"teams"`
	Rules    *scoring.Rules `json:"rules,omitempty"`
}

// MatchInfo is the state summary of one match.
type MatchInfo struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	PlayedAt time.Time         `json:"played_at"`
	Rules    scoring.Rules     `json:"rules"`
	Summary  report.Summary    `json:"summary"`
	Sets     []report.SetScore `json:"sets"`
}

// Service implements the API dependencies for the match recorder.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// Core components
	store     repository.Store
	ownsStore bool
	deduper   dedupe.Deduper
	pool      *worker.Pool

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	dbPath           string
	rules            scoring.Rules
	aggregateTimeout time.Duration
	now              func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessions:         make(map[string]*Session),
		workerCount:      runtime.NumCPU(),
		queueSize:        1024,
		dedupeSize:       50000,
		rules:            scoring.Default(),
		aggregateTimeout: 5 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, restores persisted matches and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting match recorder service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.dbPath, repository.WithLogger(s.logger.Named("repository")))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}
	s.sessions = make(map[string]*Session)
	if err := s.restore(ctx); err != nil {
		s.closeStore(ctx)
		return err
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	shard := max(1, s.queueSize/s.workerCount)
	s.pool = worker.NewPool(s.workerCount, shard, worker.HandlerFunc(s.handle), worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	metrics.UpdateActiveMatches(len(s.sessions))
	s.logger.Info(ctx, "match recorder service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("matches", len(s.sessions)),
	)
	return nil
}

// restore replays every stored ledger. A ledger that does not replay fails Start.
func (s *Service) restore(ctx context.Context) error {
	list, err := s.store.Matches(ctx)
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}
	for _, sm := range list {
		m, rules, err := s.store.Match(ctx, sm.ID)
		if err != nil {
			return fmt.Errorf("restore %s: %w", sm.ID, err)
		}
		events, err := s.store.Events(ctx, sm.ID)
		if err != nil {
			return fmt.Errorf("restore %s: %w", sm.ID, err)
		}
		l, err := recorder.Load(m, rules, events, recorder.WithClock(s.now))
		if err != nil {
			s.logger.Error(ctx, "stored ledger does not replay",
				logger.String("match", sm.ID),
				logger.Error(err),
			)
			return fmt.Errorf("restore %s: %w", sm.ID, err)
		}
		s.sessions[m.ID] = newSession(l)
		metrics.UpdateLedgerLength(m.ID, l.Len())
	}
	return nil
}

// Stop drains the workers and closes a store the service opened itself.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	pool := s.pool
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping match recorder service...")
	err := pool.Shutdown(ctx)

	s.mu.Lock()
	s.closeStore(ctx)
	s.mu.Unlock()
	s.logger.Info(ctx, "match recorder service stopped")
	return err
}

func (s *Service) closeStore(ctx context.Context) {
	if !s.ownsStore || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}
	s.store = nil
	s.ownsStore = false
}

// CreateMatch validates and stores a new match and opens its session.
func (s *Service) CreateMatch(ctx context.Context, req CreateMatchRequest) (_ MatchInfo, err error) {
	ctx, span := tracing.Start(ctx, "service.create_match")
	defer func() { tracing.End(span, err) }()

	if !s.isStarted() {
		return MatchInfo{}, ErrNotStarted
	}
	m, err := model.NewMatch(req.ID, req.Name, req.PlayedAt, req.Teams[0], req.Teams[1])
	if err != nil {
		return MatchInfo{}, fmt.Errorf("%w: %w", ErrInvalidMatch, err)
	}
	rules := s.rules
	if req.Rules != nil {
		rules = *req.Rules
	}
	if err := rules.Validate(); err != nil {
		return MatchInfo{}, fmt.Errorf("%w: %w", ErrInvalidMatch, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[m.ID]; ok {
		return MatchInfo{}, fmt.Errorf("%s: %w", m.ID, ErrMatchExists)
	}
	if err := s.store.SaveMatch(ctx, m, rules); err != nil {
		if errors.Is(err, repository.ErrMatchExists) {
			return MatchInfo{}, fmt.Errorf("%s: %w", m.ID, ErrMatchExists)
		}
		return MatchInfo{}, err
	}
	sess := newSession(recorder.NewLedger(m, rules, recorder.WithClock(s.now)))
	s.sessions[m.ID] = sess
	metrics.UpdateActiveMatches(len(s.sessions))
	metrics.UpdateLedgerLength(m.ID, 0)
	span.SetAttributes(attribute.String("match.id", m.ID))
	s.logger.Info(ctx, "match created",
		logger.String("match", m.ID),
		logger.String("teamA", m.Teams[0].Name),
		logger.String("teamB", m.Teams[1].Name),
	)
	return info(sess.Ledger()), nil
}

// Record appends one event to the ledger of matchID and returns it as stamped.
//
// A non-empty key makes the call idempotent: a retry with the same key
// returns the event accepted the first time without applying it again.
func (s *Service) Record(ctx context.Context, matchID, key string, e model.Event) (_ model.Event, err error) { //nolint:gocritic // hugeParam: Event is a value type
	ctx, span := tracing.Start(ctx, "service.record", trace.WithAttributes(
		attribute.String("match.id", matchID),
		attribute.String("event.type", string(e.Type)),
	))
	defer func() { tracing.End(span, err) }()

	if !s.isStarted() {
		return model.Event{}, ErrNotStarted
	}
	if _, err := s.session(matchID); err != nil {
		return model.Event{}, err
	}

	var dk string
	if key != "" {
		dk = dedupe.Key(matchID, key)
		if s.deduper.SeenAndRecord(ctx, dk) {
			metrics.RecordEventDuplicate()
			if prev, ok := s.deduper.Result(ctx, dk); ok {
				s.logger.Debug(ctx, "duplicate submission", logger.String("match", matchID), logger.Uint64("seq", prev.Seq))
				return prev, nil
			}
			return model.Event{}, ErrInFlight
		}
	}

	stored, err := s.pool.Do(ctx, queue.NewCommand(ctx, matchID, key, e))
	if err != nil {
		// Once the worker holds the command it settles the key itself, even
		// when the caller has stopped waiting.
		if dk != "" && (errors.Is(err, worker.ErrNotQueued) || errors.Is(err, worker.ErrStopped)) {
			s.deduper.Unrecord(ctx, dk)
		}
		if errors.Is(err, queue.ErrFull) {
			return model.Event{}, fmt.Errorf("%w: %w", ErrQueueSaturated, err)
		}
		return model.Event{}, err
	}
	return stored, nil
}

// handle runs on the worker owning c.MatchID.
func (s *Service) handle(ctx context.Context, c queue.Command) (stored model.Event, err error) { //nolint:gocritic // hugeParam: Command is passed by value for channel semantics
	start := time.Now()
	if c.Key != "" {
		defer s.settle(ctx, dedupe.Key(c.MatchID, c.Key), &stored, &err)
	}
	sess, err := s.session(c.MatchID)
	if err != nil {
		return model.Event{}, err
	}

	_, span := tracing.Start(ctx, "recorder.apply")
	next, err := sess.Ledger().Apply(c.Event)
	tracing.End(span, err)
	if err != nil {
		if code := recorder.Code(err); code != "" {
			metrics.RecordEventRejected(code)
		}
		return model.Event{}, err
	}

	e, _ := next.Last()
	if err := s.store.AppendEvent(ctx, c.MatchID, e); err != nil {
		s.logger.Error(ctx, "event not persisted",
			logger.String("match", c.MatchID),
			logger.Uint64("seq", e.Seq),
			logger.Error(err),
		)
		return model.Event{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	sess.publish(next)

	metrics.RecordEventApplied()
	metrics.UpdateLedgerLength(c.MatchID, next.Len())
	metrics.RecordApplyLatency(float64(time.Since(start).Microseconds()) / 1000)
	s.logger.Debug(ctx, "event recorded",
		logger.String("match", c.MatchID),
		logger.Uint64("seq", e.Seq),
		logger.String("type", string(e.Type)),
	)
	return e, nil
}

// settle resolves a pending idempotency key with the outcome of handle.
func (s *Service) settle(ctx context.Context, dk string, stored *model.Event, err *error) {
	if r := recover(); r != nil {
		s.deduper.Unrecord(ctx, dk)
		panic(r)
	}
	if *err != nil {
		s.deduper.Unrecord(ctx, dk)
		return
	}
	s.deduper.Complete(ctx, dk, *stored)
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrMatchNotFound)
	}
	return sess, nil
}

// Ledger returns the current ledger version of a match.
func (s *Service) Ledger(id string) (*recorder.Ledger, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return sess.Ledger(), nil
}

// Match returns the state summary of one match.
func (s *Service) Match(_ context.Context, id string) (MatchInfo, error) {
	l, err := s.Ledger(id)
	if err != nil {
		return MatchInfo{}, err
	}
	return info(l), nil
}

// Matches lists every match, earliest first.
func (s *Service) Matches(_ context.Context) []MatchInfo {
	s.mu.RLock()
	out := make([]MatchInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, info(sess.Ledger()))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlayedAt.Equal(out[j].PlayedAt) {
			return out[i].PlayedAt.Before(out[j].PlayedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Events lists the events of a match that f accepts.
func (s *Service) Events(ctx context.Context, id string, f report.Filter) ([]model.Event, error) {
	var out []model.Event
	err := s.read(ctx, "events", id, func(ctx context.Context, l *recorder.Ledger) (err error) {
		out, err = report.Select(ctx, l, f)
		return err
	})
	return out, err
}

// Stats aggregates the statistics of a match, restricted by f when non-nil.
func (s *Service) Stats(ctx context.Context, id string, f *report.Filter) (stats.Report, error) {
	var out stats.Report
	err := s.read(ctx, "stats", id, func(ctx context.Context, l *recorder.Ledger) (err error) {
		out, err = report.Aggregate(ctx, l, f)
		return err
	})
	return out, err
}

// Report builds the filtered report of a match.
func (s *Service) Report(ctx context.Context, id string, f report.Filter) (report.FilteredReport, error) {
	var out report.FilteredReport
	err := s.read(ctx, "report", id, func(ctx context.Context, l *recorder.Ledger) (err error) {
		out, err = report.Query(ctx, l, f)
		return err
	})
	return out, err
}

// read captures one ledger version and runs fn against it under the read timeout.
func (s *Service) read(ctx context.Context, op, id string, fn func(context.Context, *recorder.Ledger) error) (err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "service."+op, trace.WithAttributes(attribute.String("match.id", id)))
	defer func() {
		metrics.RecordReadLatency(op, float64(time.Since(start).Microseconds())/1000)
		tracing.End(span, err)
	}()

	l, err := s.Ledger(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.aggregateTimeout)
	defer cancel()
	return fn(ctx, l)
}

func info(l *recorder.Ledger) MatchInfo {
	m := l.Match()
	return MatchInfo{
		ID:       m.ID,
		Name:     m.Name,
		PlayedAt: m.PlayedAt,
		Rules:    l.Rules(),
		Summary:  report.Summarize(l),
		Sets:     report.SetScores(l),
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"matches":     len(s.sessions),
	}
	if s.started {
		queueLen := s.pool.Len()
		events := 0
		ids := make([]string, 0, len(s.sessions))
		for id, sess := range s.sessions {
			events += sess.Ledger().Len()
			ids = append(ids, id)
		}
		slices.Sort(ids)

		out["queueLength"] = queueLen
		out["queueCapacity"] = s.pool.Cap()
		out["events"] = events
		out["idempotencyKeys"] = s.deduper.Size()
		out["matchIDs"] = ids

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateActiveMatches(len(s.sessions))
	}
	return out
}
