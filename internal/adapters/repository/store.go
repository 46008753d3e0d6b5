// Package repository persists matches, rosters and ledger events.
package repository

import (
	"context"
	"time"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/scoring"
)

// Summary is a stored match without its events.
type Summary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	PlayedAt time.Time `json:"played_at"`
	Teams    [2]string `json:"teams"`
	Events   int       `json:"events"`
}

// Store provides durable access to match ledgers.
type Store interface {
	// SaveMatch stores a match, its rosters, its rules and any initial events
	// in one transaction. Returns ErrMatchExists if the id is taken.
	SaveMatch(ctx context.Context, m *model.Match, rules scoring.Rules, events ...model.Event) error

	// AppendEvent stores one accepted event. Returns ErrNotFound for an
	// unknown match and ErrSeqConflict if the seq is already stored.
	AppendEvent(ctx context.Context, matchID string, e model.Event) error

	// Match loads a match and its rules. Returns ErrNotFound if unknown.
	Match(ctx context.Context, id string) (*model.Match, scoring.Rules, error)

	// Events returns the events of a match in seq order.
	Events(ctx context.Context, matchID string) ([]model.Event, error)

	// Matches lists stored matches, oldest first.
	Matches(ctx context.Context) ([]Summary, error)

	// Close releases the underlying database.
	Close() error
}
