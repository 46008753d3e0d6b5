// Package stats folds ledger slices into per-player and per-team statistics.
package stats

import (
	"context"
	"maps"
	"slices"

	"github.com/okian/libero/internal/domain/model"
)

// Line is one row of the player stat table.
type Line struct {
	Points     int     `json:"points"`
	Errors     int     `json:"errors"`
	SubsIn     int     `json:"subs_in"`
	SubsOut    int     `json:"subs_out"`
	Actions    int     `json:"actions"`
	Efficiency float64 `json:"efficiency"`
}

func (l Line) plus(o Line) Line {
	l.Points += o.Points
	l.Errors += o.Errors
	l.SubsIn += o.SubsIn
	l.SubsOut += o.SubsOut
	return l.settle()
}

// settle recomputes the derived columns from the counters.
func (l Line) settle() Line {
	l.Actions = l.Points + l.Errors
	l.Efficiency = 0
	if l.Actions > 0 {
		l.Efficiency = float64(l.Points-l.Errors) / float64(l.Actions)
	}
	return l
}

// RallyCount is rallies decided from one team's point of view.
type RallyCount struct {
	Won  int `json:"won"`
	Lost int `json:"lost"`
}

func (r RallyCount) plus(o RallyCount) RallyCount {
	return RallyCount{Won: r.Won + o.Won, Lost: r.Lost + o.Lost}
}

// TeamLine summarizes rallies for one side.
type TeamLine struct {
	Points        int                        `json:"points"`
	Errors        int                        `json:"errors"`
	BreakPoints   int                        `json:"break_points"`
	SideOuts      int                        `json:"side_outs"`
	Substitutions int                        `json:"substitutions"`
	ByRotation    map[int]RallyCount         `json:"by_rotation,omitempty"`
	ByPhase       map[model.Phase]RallyCount `json:"by_phase,omitempty"`
}

// Report is the result of folding an ordered event slice.
type Report struct {
	Events     int                                          `json:"events"`
	FirstSeq   uint64                                       `json:"first_seq,omitempty"`
	LastSeq    uint64                                       `json:"last_seq,omitempty"`
	Players    map[model.PlayerID]Line                      `json:"players"`
	ByPhase    map[model.PlayerID]map[model.Phase]Line      `json:"by_phase"`
	ByRotation map[model.PlayerID]map[int]Line              `json:"by_rotation"`
	Skills     map[model.PlayerID]map[model.Skill]SkillLine `json:"skills"`
	Teams      map[model.Side]TeamLine                      `json:"teams"`
}

func newReport() Report {
	return Report{
		Players:    map[model.PlayerID]Line{},
		ByPhase:    map[model.PlayerID]map[model.Phase]Line{},
		ByRotation: map[model.PlayerID]map[int]Line{},
		Skills:     map[model.PlayerID]map[model.Skill]SkillLine{},
		Teams:      map[model.Side]TeamLine{model.SideA: {}, model.SideB: {}},
	}
}

// PlayerIDs returns the players with a line, sorted.
func (r Report) PlayerIDs() []model.PlayerID {
	return slices.Sorted(maps.Keys(r.Players))
}

// Aggregate is the full recompute over events.
func Aggregate(events []model.Event) (Report, error) {
	return AggregateContext(context.Background(), events)
}

// AggregateContext is Aggregate with cancellation checked between events.
func AggregateContext(ctx context.Context, events []model.Event) (Report, error) {
	acc := NewAccumulator()
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		if err := acc.Add(e); err != nil {
			return Report{}, err
		}
	}
	return acc.Report(), nil
}

// Merge combines reports of disjoint ledger slices.
func Merge(a, b Report) Report {
	out := newReport()
	out.Events = a.Events + b.Events
	out.FirstSeq, out.LastSeq = a.FirstSeq, a.LastSeq
	if b.Events > 0 {
		if a.Events == 0 || b.FirstSeq < out.FirstSeq {
			out.FirstSeq = b.FirstSeq
		}
		out.LastSeq = max(out.LastSeq, b.LastSeq)
	}
	for _, r := range []Report{a, b} {
		for id, l := range r.Players {
			out.Players[id] = out.Players[id].plus(l)
		}
		for id, phases := range r.ByPhase {
			for ph, l := range phases {
				addNested(out.ByPhase, id, ph, l)
			}
		}
		for id, rots := range r.ByRotation {
			for rot, l := range rots {
				addNested(out.ByRotation, id, rot, l)
			}
		}
		for id, skills := range r.Skills {
			for sk, l := range skills {
				addSkill(out.Skills, id, sk, l)
			}
		}
		for side, t := range r.Teams {
			cur := out.Teams[side]
			cur.Points += t.Points
			cur.Errors += t.Errors
			cur.BreakPoints += t.BreakPoints
			cur.SideOuts += t.SideOuts
			cur.Substitutions += t.Substitutions
			for rot, c := range t.ByRotation {
				cur.ByRotation = addCount(cur.ByRotation, rot, c)
			}
			for ph, c := range t.ByPhase {
				cur.ByPhase = addCount(cur.ByPhase, ph, c)
			}
			out.Teams[side] = cur
		}
	}
	return out
}

func addNested[K comparable](m map[model.PlayerID]map[K]Line, id model.PlayerID, k K, l Line) {
	inner, ok := m[id]
	if !ok {
		inner = map[K]Line{}
		m[id] = inner
	}
	inner[k] = inner[k].plus(l)
}

func addCount[K comparable](m map[K]RallyCount, k K, c RallyCount) map[K]RallyCount {
	if m == nil {
		m = map[K]RallyCount{}
	}
	m[k] = m[k].plus(c)
	return m
}

func (r Report) clone() Report {
	out := r
	out.Players = maps.Clone(r.Players)
	out.ByPhase = make(map[model.PlayerID]map[model.Phase]Line, len(r.ByPhase))
	for id, inner := range r.ByPhase {
		out.ByPhase[id] = maps.Clone(inner)
	}
	out.ByRotation = make(map[model.PlayerID]map[int]Line, len(r.ByRotation))
	for id, inner := range r.ByRotation {
		out.ByRotation[id] = maps.Clone(inner)
	}
	out.Skills = make(map[model.PlayerID]map[model.Skill]SkillLine, len(r.Skills))
	for id, inner := range r.Skills {
		out.Skills[id] = maps.Clone(inner)
	}
	out.Teams = make(map[model.Side]TeamLine, len(r.Teams))
	for side, t := range r.Teams {
		t.ByRotation = maps.Clone(t.ByRotation)
		t.ByPhase = maps.Clone(t.ByPhase)
		out.Teams[side] = t
	}
	return out
}
