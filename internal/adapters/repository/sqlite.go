package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/scoring"
	"github.com/okian/libero/pkg/logger"
	"github.com/okian/libero/pkg/metrics"
	"github.com/okian/libero/pkg/tracing"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schemaVersion = 1

// SQLiteStore is the SQLite-backed Store.
//
// The pool is limited to one connection: SQLite allows a single writer, and an
// in-memory database only lives as long as its connection.
type SQLiteStore struct {
	db          *sql.DB
	log         logger.Logger
	busyTimeout time.Duration
	now         func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// Open creates or opens the database at path and applies the schema.
// An empty path opens an in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		log:         logger.Get().Named("repository"),
		busyTimeout: 5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if path == "" {
		path = MemoryPath
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	s.db = db
	if err := s.applyPragmas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.applySchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Debug(ctx, "ledger store opened", logger.String("path", path))
	return s, nil
}

func (s *SQLiteStore) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveMatch implements Store.
func (s *SQLiteStore) SaveMatch(ctx context.Context, m *model.Match, rules scoring.Rules, events ...model.Event) (err error) {
	ctx, span, done := s.observe(ctx, "save_match", attribute.String("match.id", m.ID))
	defer func() { done(span, err) }()

	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO matches (id, name, played_at, team_a, team_b, rules, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID,
		m.Name,
		m.PlayedAt.UTC().Format(time.RFC3339Nano),
		m.Teams[0].Name,
		m.Teams[1].Name,
		string(rulesJSON),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) {
			return fmt.Errorf("save match %s: %w", m.ID, ErrMatchExists)
		}
		return fmt.Errorf("save match: %w", err)
	}

	for _, side := range model.Sides() {
		for pos, p := range m.Team(side).Players {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO players (match_id, id, side, position, name, number, role)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, m.ID, string(p.ID), side.String(), pos, p.Name, p.Number, string(p.Role))
			if err != nil {
				return fmt.Errorf("save player %s: %w", p.ID, err)
			}
		}
	}

	for _, e := range events {
		if err = insertEvent(ctx, tx, m.ID, e); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	return nil
}

// AppendEvent implements Store.
func (s *SQLiteStore) AppendEvent(ctx context.Context, matchID string, e model.Event) (err error) {
	ctx, span, done := s.observe(ctx, "append_event",
		attribute.String("match.id", matchID),
		attribute.Int64("event.seq", int64(e.Seq)), //nolint:gosec // seq fits int64
	)
	defer func() { done(span, err) }()

	return insertEvent(ctx, s.db, matchID, e)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, matchID string, e model.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("append event %d: %w", e.Seq, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO events (match_id, seq, type, set_no, team, player, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		matchID,
		int64(e.Seq), //nolint:gosec // seq fits int64
		string(e.Type),
		e.Set,
		e.Team.String(),
		string(e.Player),
		string(payload),
	)
	switch {
	case err == nil:
		return nil
	case isConstraint(err, sqlite3.ErrConstraintPrimaryKey):
		return fmt.Errorf("append event %d: %w", e.Seq, ErrSeqConflict)
	case isConstraint(err, sqlite3.ErrConstraintForeignKey):
		return fmt.Errorf("append event %d to %s: %w", e.Seq, matchID, ErrNotFound)
	}
	return fmt.Errorf("append event %d: %w", e.Seq, err)
}

// Match implements Store.
func (s *SQLiteStore) Match(ctx context.Context, id string) (_ *model.Match, _ scoring.Rules, err error) {
	ctx, span, done := s.observe(ctx, "load_match", attribute.String("match.id", id))
	defer func() { done(span, err) }()

	var (
		name, playedAt, rulesJSON string
		teams                     [2]model.Team
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT name, played_at, team_a, team_b, rules FROM matches WHERE id = ?
	`, id).Scan(&name, &playedAt, &teams[0].Name, &teams[1].Name, &rulesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scoring.Rules{}, fmt.Errorf("load match %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, scoring.Rules{}, fmt.Errorf("load match: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, playedAt)
	if err != nil {
		return nil, scoring.Rules{}, fmt.Errorf("load match %s: played_at: %w", id, ErrCorruptStore)
	}
	var rules scoring.Rules
	if err = json.Unmarshal([]byte(rulesJSON), &rules); err != nil {
		return nil, scoring.Rules{}, fmt.Errorf("load match %s: rules: %w", id, ErrCorruptStore)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, side, name, number, role FROM players
		WHERE match_id = ?
		ORDER BY side, position
	`, id)
	if err != nil {
		return nil, scoring.Rules{}, fmt.Errorf("load players: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			p    model.Player
			side string
		)
		if err = rows.Scan(&p.ID, &side, &p.Name, &p.Number, &p.Role); err != nil {
			return nil, scoring.Rules{}, fmt.Errorf("scan player: %w", err)
		}
		sd, perr := model.ParseSide(side)
		if perr != nil || !sd.Valid() {
			return nil, scoring.Rules{}, fmt.Errorf("load player %s: side %q: %w", p.ID, side, ErrCorruptStore)
		}
		teams[sd.Index()].Players = append(teams[sd.Index()].Players, p)
	}
	if err = rows.Err(); err != nil {
		return nil, scoring.Rules{}, fmt.Errorf("load players: %w", err)
	}

	m, err := model.NewMatch(id, name, at, teams[0], teams[1])
	if err != nil {
		return nil, scoring.Rules{}, fmt.Errorf("load match %s: %w: %w", id, ErrCorruptStore, err)
	}
	return m, rules, nil
}

// Events implements Store.
func (s *SQLiteStore) Events(ctx context.Context, matchID string) (_ []model.Event, err error) {
	ctx, span, done := s.observe(ctx, "load_events", attribute.String("match.id", matchID))
	defer func() { done(span, err) }()

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE id = ?`, matchID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("load events %s: %w", matchID, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, payload FROM events WHERE match_id = ? ORDER BY seq ASC
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Event
	for rows.Next() {
		var (
			seq     int64
			payload string
			e       model.Event
		)
		if err = rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err = json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode event %d: %w: %w", seq, ErrCorruptStore, err)
		}
		if int64(e.Seq) != seq { //nolint:gosec // seq fits int64
			return nil, fmt.Errorf("event row %d carries seq %d: %w", seq, e.Seq, ErrCorruptStore)
		}
		out = append(out, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return out, nil
}

// Matches implements Store.
func (s *SQLiteStore) Matches(ctx context.Context) (_ []Summary, err error) {
	ctx, span, done := s.observe(ctx, "list_matches")
	defer func() { done(span, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.name, m.played_at, m.team_a, m.team_b,
		       (SELECT COUNT(*) FROM events e WHERE e.match_id = m.id)
		FROM matches m
		ORDER BY m.played_at ASC, m.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Summary
	for rows.Next() {
		var (
			sm       Summary
			playedAt string
		)
		if err = rows.Scan(&sm.ID, &sm.Name, &playedAt, &sm.Teams[0], &sm.Teams[1], &sm.Events); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if sm.PlayedAt, err = time.Parse(time.RFC3339Nano, playedAt); err != nil {
			return nil, fmt.Errorf("match %s played_at: %w", sm.ID, ErrCorruptStore)
		}
		out = append(out, sm)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return out, nil
}

// observe opens a span for op and returns the function that closes it and
// records latency and errors.
func (s *SQLiteStore) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, func(trace.Span, error)) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "repository."+op, trace.WithAttributes(attrs...))
	return ctx, span, func(span trace.Span, err error) {
		metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
		if err != nil && !errors.Is(err, ErrNotFound) {
			metrics.RecordRepositoryError(op)
			s.log.Warn(ctx, "repository operation failed", logger.String("op", op), logger.Error(err))
		}
		tracing.End(span, err)
	}
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == code
}
