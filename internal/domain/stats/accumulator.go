package stats

import "github.com/okian/libero/internal/domain/model"

// Accumulator is the incremental fold. Feeding it every event of a slice in
// order yields the same Report as Aggregate over that slice.
type Accumulator struct {
	r Report
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{r: newReport()}
}

// Add folds one event. Events must arrive in strictly increasing Seq order.
func (a *Accumulator) Add(e model.Event) error {
	if a.r.Events > 0 && e.Seq <= a.r.LastSeq {
		return &EventError{Seq: e.Seq, Err: ErrOutOfOrder}
	}
	if !e.Type.Valid() {
		return &EventError{Seq: e.Seq, Err: ErrUnknownType}
	}

	switch e.Type {
	case model.EventPoint:
		a.credit(e, e.Player, Line{Points: 1})
		a.rate(e)
		a.rally(e, e.Team, e.Team.Opponent())
	case model.EventError:
		a.credit(e, e.Player, Line{Errors: 1})
		a.rate(e)
		a.rally(e, e.Team.Opponent(), e.Team)
		if e.Team.Valid() {
			t := a.r.Teams[e.Team]
			t.Errors++
			a.r.Teams[e.Team] = t
		}
	case model.EventSubstitution:
		a.credit(e, e.Player, Line{SubsOut: 1})
		a.credit(e, e.Incoming, Line{SubsIn: 1})
		if e.Team.Valid() {
			t := a.r.Teams[e.Team]
			t.Substitutions++
			a.r.Teams[e.Team] = t
		}
	case model.EventSideOut, model.EventSetStart, model.EventSetEnd:
	}

	if a.r.Events == 0 {
		a.r.FirstSeq = e.Seq
	}
	a.r.Events++
	a.r.LastSeq = e.Seq
	return nil
}

// Report returns a snapshot that later Adds do not affect.
func (a *Accumulator) Report() Report { return a.r.clone() }

func (a *Accumulator) credit(e model.Event, id model.PlayerID, l Line) {
	if id == "" {
		return
	}
	a.r.Players[id] = a.r.Players[id].plus(l)
	addNested(a.r.ByPhase, id, e.Phase, l)
	addNested(a.r.ByRotation, id, e.Rotation, l)
}

// rate counts an evaluated touch. Touches without a player, skill or
// evaluation code are not rated.
func (a *Accumulator) rate(e model.Event) {
	if e.Player == "" || e.Skill == "" || e.Outcome == "" {
		return
	}
	addSkill(a.r.Skills, e.Player, e.Skill, SkillLine{Codes: map[model.Outcome]int{e.Outcome: 1}})
}

// rally records a decided rally. Rotation and phase breakdowns are kept
// for the acting team only, since the event carries only its tags.
func (a *Accumulator) rally(e model.Event, winner, loser model.Side) {
	if !winner.Valid() || !loser.Valid() {
		return
	}
	w := a.r.Teams[winner]
	w.Points++
	if winner == e.Serving {
		w.BreakPoints++
	} else {
		w.SideOuts++
	}
	a.r.Teams[winner] = w

	c := RallyCount{Lost: 1}
	if e.Team == winner {
		c = RallyCount{Won: 1}
	}
	t := a.r.Teams[e.Team]
	t.ByRotation = addCount(t.ByRotation, e.Rotation, c)
	t.ByPhase = addCount(t.ByPhase, e.Phase, c)
	a.r.Teams[e.Team] = t
}
