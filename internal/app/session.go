package service

import (
	"sync/atomic"

	"github.com/okian/libero/internal/domain/recorder"
)

// Session is the live state of one match. Only the worker that owns the
// match publishes new versions; readers capture one with Ledger.
type Session struct {
	id     string
	ledger atomic.Pointer[recorder.Ledger]
}

func newSession(l *recorder.Ledger) *Session {
	s := &Session{id: l.Match().ID}
	s.ledger.Store(l)
	return s
}

// ID returns the match id.
func (s *Session) ID() string { return s.id }

// Ledger returns the current ledger version.
func (s *Session) Ledger() *recorder.Ledger { return s.ledger.Load() }

func (s *Session) publish(l *recorder.Ledger) { s.ledger.Store(l) }
