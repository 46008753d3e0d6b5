package recorder

import (
	"sync"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/scoring"
)

// backing is the array shared by successive ledger versions. tip is the
// length of the longest version that owns it; only that version may append
// in place.
type backing struct {
	mu  sync.Mutex
	tip int
}

// Ledger is an immutable version of a match's event log together with the
// state derived from it. Apply returns a new version and leaves the
// receiver valid, so older versions can be read while newer ones are built.
type Ledger struct {
	rec    *Recorder
	b      *backing
	events []model.Event
	state  State
}

// NewLedger returns an empty ledger for match.
func NewLedger(match *model.Match, rules scoring.Rules, opts ...Option) *Ledger {
	return &Ledger{
		rec:   New(match, rules, opts...),
		b:     &backing{},
		state: Initial(),
	}
}

// Load replays events into a fresh ledger. Any rejection means the stream
// is not a ledger this recorder could have produced and is reported as a
// *CorruptLedgerError.
func Load(match *model.Match, rules scoring.Rules, events []model.Event, opts ...Option) (*Ledger, error) {
	l := NewLedger(match, rules, opts...)
	for i, e := range events {
		if e.Seq == 0 {
			return nil, &CorruptLedgerError{Seq: l.state.LastSeq, Err: reject(ErrInvalidEventSequence, 0, "event %d has no sequence number", i)}
		}
		next, err := l.Apply(e)
		if err != nil {
			return nil, &CorruptLedgerError{Seq: e.Seq, Err: err}
		}
		l = next
	}
	return l, nil
}

// Apply validates and appends e, returning the new version.
func (l *Ledger) Apply(e model.Event) (*Ledger, error) {
	st, stamped, err := l.rec.Apply(l.state, e)
	if err != nil {
		return nil, err
	}
	n := len(l.events)

	l.b.mu.Lock()
	defer l.b.mu.Unlock()
	if l.b.tip == n {
		l.b.tip = n + 1
		return &Ledger{rec: l.rec, b: l.b, events: append(l.events, stamped), state: st}, nil
	}
	events := make([]model.Event, n+1, 2*(n+1))
	copy(events, l.events)
	events[n] = stamped
	return &Ledger{rec: l.rec, b: &backing{tip: n + 1}, events: events, state: st}, nil
}

// Match returns the match the ledger records.
func (l *Ledger) Match() *model.Match { return l.rec.Match() }

// Rules returns the rules the ledger was validated with.
func (l *Ledger) Rules() scoring.Rules { return l.rec.Rules() }

// Recorder returns the validator behind the ledger.
func (l *Ledger) Recorder() *Recorder { return l.rec }

// Len returns the number of events.
func (l *Ledger) Len() int { return len(l.events) }

// Events returns the events in sequence order. The slice must not be modified.
func (l *Ledger) Events() []model.Event { return l.events[:len(l.events):len(l.events)] }

// State returns a copy of the derived state.
func (l *Ledger) State() State { return l.state.clone() }

// Last returns the most recent event.
func (l *Ledger) Last() (model.Event, bool) {
	if len(l.events) == 0 {
		return model.Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// Sets returns the derived state of every set started so far.
func (l *Ledger) Sets() []SetState { return append([]SetState(nil), l.state.Sets...) }

// SetSlice returns the events of set n (1-based), including its set-start.
func (l *Ledger) SetSlice(n int) []model.Event {
	if n < 1 || n > len(l.state.Sets) {
		return nil
	}
	set := l.state.Sets[n-1]
	return l.Slice(set.Start, set.End)
}

// Slice returns events[from:to], clamped to the ledger bounds.
func (l *Ledger) Slice(from, to int) []model.Event {
	from = max(0, min(from, len(l.events)))
	to = max(from, min(to, len(l.events)))
	return l.events[from:to:to]
}

// Prefix rebuilds the version holding the first n events.
func (l *Ledger) Prefix(n int) (*Ledger, error) {
	n = max(0, min(n, len(l.events)))
	p := &Ledger{rec: l.rec, b: &backing{}, state: Initial()}
	for _, e := range l.events[:n] {
		next, err := p.Apply(e)
		if err != nil {
			return nil, &CorruptLedgerError{Seq: e.Seq, Err: err}
		}
		p = next
	}
	return p, nil
}
