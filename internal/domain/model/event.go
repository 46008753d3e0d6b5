// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// EventType is the closed set of things a scout can record.
type EventType string

// Event types.
const (
	EventPoint        EventType = "point"
	EventError        EventType = "error"
	EventSubstitution EventType = "substitution"
	EventSideOut      EventType = "side-out"
	EventSetStart     EventType = "set-start"
	EventSetEnd       EventType = "set-end"
)

// EventTypes lists every event type in declaration order.
func EventTypes() []EventType {
	return []EventType{EventPoint, EventError, EventSubstitution, EventSideOut, EventSetStart, EventSetEnd}
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventPoint, EventError, EventSubstitution, EventSideOut, EventSetStart, EventSetEnd:
		return true
	}
	return false
}

// ParseEventType parses a case-insensitive event type name.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("%w: event type %q", ErrInvalidValue, s)
}

// Phase is a coach-defined segment of play attached to every event.
type Phase string

// Phases stamped by the recorder when the capture layer leaves the phase empty.
const (
	PhaseBreak   Phase = "break"
	PhaseSideOut Phase = "side-out"
)

// NormalizePhase folds a coach-entered label to its canonical form.
func NormalizePhase(s string) Phase {
	return Phase(strings.ToLower(strings.TrimSpace(norm.NFC.String(s))))
}

// Skill is the touch that ended a rally. Optional on points and errors.
type Skill string

// Skills.
const (
	SkillServe     Skill = "serve"
	SkillReception Skill = "reception"
	SkillAttack    Skill = "attack"
	SkillBlock     Skill = "block"
	SkillDig       Skill = "dig"
	SkillSet       Skill = "set"
	SkillFault     Skill = "fault"
)

// Valid reports whether s is empty or a known skill.
func (s Skill) Valid() bool {
	switch s {
	case "", SkillServe, SkillReception, SkillAttack, SkillBlock, SkillDig, SkillSet, SkillFault:
		return true
	}
	return false
}

// Outcome is the scouting evaluation code of a touch.
type Outcome string

// Evaluation codes.
const (
	OutcomePerfect     Outcome = "#"
	OutcomePositive    Outcome = "+"
	OutcomeExclamative Outcome = "!"
	OutcomeOver        Outcome = "/"
	OutcomeError       Outcome = "="
	OutcomeNegative    Outcome = "-"
)

// Valid reports whether o is empty or a known evaluation code.
func (o Outcome) Valid() bool {
	switch o {
	case "", OutcomePerfect, OutcomePositive, OutcomeExclamative, OutcomeOver, OutcomeError, OutcomeNegative:
		return true
	}
	return false
}

// Lineup is the starting six of both teams, in court position order 1..6.
type Lineup struct {
	A [CourtSize]PlayerID `json:"a"`
	B [CourtSize]PlayerID `json:"b"`
}

// For returns the six for side.
func (l Lineup) For(side Side) [CourtSize]PlayerID {
	if side == SideB {
		return l.B
	}
	return l.A
}

// Event is one immutable ledger record.
//
// Seq, Timestamp, Phase, Serving and Rotation are stamped by the recorder
// when the event is accepted; the capture layer may leave them zero.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"ts"`
	Set       int       `json:"set"`
	Phase     Phase     `json:"phase,omitempty"`
	Team      Side      `json:"team,omitempty"`
	Player    PlayerID  `json:"player,omitempty"`
	Incoming  PlayerID  `json:"incoming,omitempty"` // substitution only
	Skill     Skill     `json:"skill,omitempty"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	Serving   Side      `json:"serving,omitempty"`
	Rotation  int       `json:"rotation,omitempty"`
	Lineup    *Lineup   `json:"lineup,omitempty"` // set-start only
}

// Players returns the player references carried by the event.
func (e Event) Players() []PlayerID {
	var out []PlayerID
	if e.Player != "" {
		out = append(out, e.Player)
	}
	if e.Incoming != "" {
		out = append(out, e.Incoming)
	}
	return out
}

// RallyWinner returns the side that won the rally closed by e, if any.
func (e Event) RallyWinner() (Side, bool) {
	switch e.Type {
	case EventPoint:
		return e.Team, e.Team != SideNone
	case EventError:
		return e.Team.Opponent(), e.Team != SideNone
	case EventSubstitution, EventSideOut, EventSetStart, EventSetEnd:
		return SideNone, false
	}
	return SideNone, false
}
