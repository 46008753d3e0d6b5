// Package recorder implements the match state machine and the append-only
// event ledger built on it.
package recorder

import (
	"time"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/scoring"
)

// Recorder validates events against a match and its rules. It holds no
// mutable state and is safe for concurrent use.
type Recorder struct {
	match *model.Match
	rules scoring.Rules
	now   func() time.Time
}

// New creates a recorder for match under rules.
func New(match *model.Match, rules scoring.Rules, opts ...Option) *Recorder {
	r := &Recorder{
		match: match,
		rules: rules,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Match returns the match the recorder validates against.
func (r *Recorder) Match() *model.Match { return r.match }

// Rules returns the set-closing rule in force.
func (r *Recorder) Rules() scoring.Rules { return r.rules }

// Apply validates e against s. On success it returns the next state and the
// event as stamped for the ledger; on failure s is returned unchanged along
// with an *Error.
func (r *Recorder) Apply(s State, e model.Event) (State, model.Event, error) {
	seq := e.Seq
	if seq == 0 {
		seq = s.LastSeq + 1
	}
	if !e.Type.Valid() {
		return s, e, reject(ErrInvalidEventSequence, seq, "unknown event type %q", e.Type)
	}

	n, err := r.target(s, e, seq)
	if err != nil {
		return s, e, err
	}
	if e.Seq != 0 && e.Seq <= s.LastSeq {
		return s, e, reject(ErrInvalidEventSequence, seq, "sequence must be greater than %d", s.LastSeq)
	}
	if !e.Team.Valid() {
		return s, e, reject(ErrInvalidEventSequence, seq, "%s requires a team", e.Type)
	}
	if !e.Skill.Valid() || !e.Outcome.Valid() {
		return s, e, reject(ErrInvalidEventSequence, seq, "unknown skill %q or outcome %q", e.Skill, e.Outcome)
	}
	if (e.Skill != "" || e.Outcome != "") && e.Type != model.EventPoint && e.Type != model.EventError {
		return s, e, reject(ErrInvalidEventSequence, seq, "skill and outcome only allowed on points and errors")
	}
	if e.Incoming != "" && e.Type != model.EventSubstitution {
		return s, e, reject(ErrInvalidEventSequence, seq, "incoming player only allowed on substitution")
	}
	if e.Lineup != nil && e.Type != model.EventSetStart {
		return s, e, reject(ErrInvalidEventSequence, seq, "lineup only allowed on set-start")
	}

	serving := s.Serving
	rotation := s.Rotation(e.Team).Index
	if e.Type == model.EventSetStart {
		serving, rotation = e.Team, 1
	}
	if e.Serving != model.SideNone && e.Serving != serving {
		return s, e, reject(ErrInvalidEventSequence, seq, "team %s does not hold serve", e.Serving)
	}
	if e.Rotation != 0 && e.Rotation != rotation {
		return s, e, reject(ErrInvalidRotationState, seq, "team %s is in rotation %d, not %d", e.Team, rotation, e.Rotation)
	}

	e.Seq, e.Set, e.Serving, e.Rotation = seq, n, serving, rotation
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}
	if e.Phase == "" {
		e.Phase = model.PhaseSideOut
		if e.Team == serving && e.Type != model.EventSideOut {
			e.Phase = model.PhaseBreak
		}
	} else {
		e.Phase = model.NormalizePhase(string(e.Phase))
	}

	next := s.clone()
	next.JustSidedOut = false

	switch e.Type {
	case model.EventPoint, model.EventError:
		if err := r.checkCourtPlayer(s, e.Team, e.Player, seq); err != nil {
			return s, e, err
		}
		winner, _ := e.RallyWinner()
		r.rally(&next, winner)
	case model.EventSubstitution:
		if err := r.substitute(&next, e); err != nil {
			return s, e, err
		}
	case model.EventSideOut:
		if !s.JustSidedOut || e.Team != s.Serving {
			return s, e, reject(ErrInvalidEventSequence, seq, "side-out for %s does not follow a change of serve", e.Team)
		}
		if e.Player != "" {
			if !r.match.OnRoster(e.Team, e.Player) {
				return s, e, reject(ErrUnknownPlayer, seq, "player %s is not on team %s", e.Player, e.Team)
			}
			if server := s.Rotation(e.Team).Server(); server != e.Player {
				return s, e, reject(ErrInvalidRotationState, seq, "player %s is not at position 1, %s is", e.Player, server)
			}
		}
	case model.EventSetStart:
		if err := r.startSet(&next, e); err != nil {
			return s, e, err
		}
	case model.EventSetEnd:
		r.closeSet(&next, e.Team, true)
	}
	idx := n - 1
	next.Sets[idx].LastSeq = seq
	next.Sets[idx].End = s.Len + 1
	next.Phase = e.Phase
	next.LastSeq = seq
	next.Len = s.Len + 1
	return next, e, nil
}

// target resolves the set number an event belongs to. Set zero means the
// set in progress, or for set-start the next one.
func (r *Recorder) target(s State, e model.Event, seq uint64) (int, error) {
	played := len(s.Sets)
	if e.Type == model.EventSetStart {
		next := played + 1
		n := e.Set
		if n == 0 {
			n = next
		}
		switch {
		case n < 1:
			return 0, reject(ErrInvalidEventSequence, seq, "set %d does not exist", n)
		case n <= played && s.Sets[n-1].Closed:
			return 0, reject(ErrSetAlreadyClosed, seq, "set %d is closed", n)
		case s.MatchOver():
			return 0, reject(ErrInvalidEventSequence, seq, "match already won by %s", s.Winner)
		case s.Open():
			return 0, reject(ErrInvalidEventSequence, seq, "set %d is still open", s.Active+1)
		case n != next:
			return 0, reject(ErrInvalidEventSequence, seq, "next set is %d, not %d", next, n)
		case n > r.rules.MaxSets():
			return 0, reject(ErrInvalidEventSequence, seq, "match has at most %d sets", r.rules.MaxSets())
		}
		return n, nil
	}

	n := e.Set
	if n == 0 {
		n = played
		if s.Open() {
			n = s.Active + 1
		}
	}
	switch {
	case n < 1 || n > played:
		return 0, reject(ErrInvalidEventSequence, seq, "set %d has not started", n)
	case s.Sets[n-1].Closed:
		return 0, reject(ErrSetAlreadyClosed, seq, "set %d is closed", n)
	}
	return n, nil
}

func (r *Recorder) checkCourtPlayer(s State, team model.Side, id model.PlayerID, seq uint64) error {
	if id == "" {
		return nil
	}
	if !r.match.OnRoster(team, id) {
		return reject(ErrUnknownPlayer, seq, "player %s is not on team %s", id, team)
	}
	if !s.Rotation(team).Contains(id) {
		return reject(ErrUnknownPlayer, seq, "player %s is not on court", id)
	}
	return nil
}

func (r *Recorder) rally(s *State, winner model.Side) {
	set := &s.Sets[s.Active]
	set.Score[winner.Index()]++
	if winner != s.Serving {
		s.Serving = winner
		s.Rotations[winner.Index()] = s.Rotations[winner.Index()].Advance()
		s.JustSidedOut = true
	}
	if w, ok := r.rules.SetWinner(set.Number, set.Score); ok {
		r.closeSet(s, w, false)
	}
}

func (r *Recorder) closeSet(s *State, winner model.Side, conceded bool) {
	set := &s.Sets[s.Active]
	set.Closed = true
	set.Winner = winner
	set.Conceded = conceded
	s.Wins[winner.Index()]++
	s.Active = -1
	s.Serving = model.SideNone
	s.JustSidedOut = false
	if w, ok := r.rules.MatchWinner(s.Wins); ok {
		s.Winner = w
	}
}

func (r *Recorder) startSet(s *State, e model.Event) error {
	if e.Lineup == nil {
		return reject(ErrInvalidRotationState, e.Seq, "set-start requires a lineup")
	}
	for _, side := range model.Sides() {
		if err := r.checkLineup(side, e.Lineup.For(side), e.Seq); err != nil {
			return err
		}
	}
	if e.Set > 1 && !r.rules.IsDeciding(e.Set) {
		prev := s.Sets[e.Set-2].FirstServer
		if e.Team != prev.Opponent() {
			return reject(ErrInvalidEventSequence, e.Seq, "set %d must be served first by %s", e.Set, prev.Opponent())
		}
	}
	s.Sets = append(s.Sets, SetState{
		Number:      e.Set,
		FirstServer: e.Team,
		Lineup:      *e.Lineup,
		FirstSeq:    e.Seq,
		Start:       s.Len,
	})
	s.Active = len(s.Sets) - 1
	s.Serving = e.Team
	s.Rotations = [2]model.Rotation{
		model.NewRotation(e.Lineup.A),
		model.NewRotation(e.Lineup.B),
	}
	s.Subs = [2][]Substitution{}
	return nil
}

func (r *Recorder) checkLineup(side model.Side, six [model.CourtSize]model.PlayerID, seq uint64) error {
	for pos, id := range six {
		if id == "" {
			return reject(ErrInvalidRotationState, seq, "team %s has no player at position %d", side, pos+1)
		}
		owner, ok := r.match.SideOf(id)
		if !ok {
			return reject(ErrUnknownPlayer, seq, "player %s is not on any roster", id)
		}
		if owner != side {
			return reject(ErrInvalidRotationState, seq, "player %s plays for team %s", id, owner)
		}
	}
	if !model.NewRotation(six).Valid() {
		return reject(ErrInvalidRotationState, seq, "team %s lists a player twice", side)
	}
	return nil
}

// substitute enforces the per-set substitution rules: a player leaves the
// court at most once, enters at most once, and a replacement can only be
// replaced by the player they came in for.
func (r *Recorder) substitute(s *State, e model.Event) error {
	ti := e.Team.Index()
	if e.Player == "" || e.Incoming == "" {
		return reject(ErrUnknownPlayer, e.Seq, "substitution requires both players")
	}
	for _, id := range []model.PlayerID{e.Player, e.Incoming} {
		if !r.match.OnRoster(e.Team, id) {
			return reject(ErrUnknownPlayer, e.Seq, "player %s is not on team %s", id, e.Team)
		}
	}
	rot := s.Rotations[ti]
	if !rot.Contains(e.Player) {
		return reject(ErrUnknownPlayer, e.Seq, "player %s is not on court", e.Player)
	}
	if rot.Contains(e.Incoming) {
		return reject(ErrUnknownPlayer, e.Seq, "player %s is already on court", e.Incoming)
	}

	subs := s.Subs[ti]
	for _, sub := range subs {
		switch {
		case sub.Out == e.Player:
			return reject(ErrUnknownPlayer, e.Seq, "player %s was already replaced this set", e.Player)
		case sub.In == e.Incoming:
			return reject(ErrUnknownPlayer, e.Seq, "player %s already came in this set", e.Incoming)
		case sub.In == e.Player && sub.Out != e.Incoming:
			return reject(ErrUnknownPlayer, e.Seq, "player %s can only be replaced by %s", e.Player, sub.Out)
		case sub.Out == e.Incoming && sub.In != e.Player:
			return reject(ErrUnknownPlayer, e.Seq, "player %s can only return for %s", e.Incoming, sub.In)
		}
	}
	if len(subs) >= r.rules.MaxSubstitutions {
		return reject(ErrInvalidEventSequence, e.Seq, "team %s used all %d substitutions", e.Team, r.rules.MaxSubstitutions)
	}

	next, ok := rot.Replace(e.Player, e.Incoming)
	if !ok || !next.Valid() {
		return reject(ErrInvalidRotationState, e.Seq, "cannot swap %s for %s", e.Player, e.Incoming)
	}
	s.Rotations[ti] = next
	s.Subs[ti] = append(subs, Substitution{Out: e.Player, In: e.Incoming})
	return nil
}
