package stats_test

import (
	"testing"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func touch(seq uint64, typ model.EventType, player model.PlayerID, skill model.Skill, o model.Outcome) model.Event {
	team := model.SideA
	if player[0] == 'b' {
		team = model.SideB
	}
	e := ev(seq, typ, team, player)
	e.Skill, e.Outcome = skill, o
	return e
}

func TestSkillScores(t *testing.T) {
	Convey("Given the evaluation codes", t, func() {
		Convey("Then an over-pass serve is positive and efficient", func() {
			So(stats.PositiveScore(model.SkillServe, model.OutcomeOver), ShouldEqual, 1)
			So(stats.EfficiencyScore(model.SkillServe, model.OutcomeOver), ShouldEqual, 1)
			So(stats.EfficiencyScore(model.SkillServe, model.OutcomeExclamative), ShouldEqual, 1)
		})

		Convey("Then only a kill is efficient for an attack", func() {
			So(stats.EfficiencyScore(model.SkillAttack, model.OutcomePerfect), ShouldEqual, 1)
			So(stats.EfficiencyScore(model.SkillAttack, model.OutcomePositive), ShouldEqual, 0)
			So(stats.EfficiencyScore(model.SkillAttack, model.OutcomeOver), ShouldEqual, -1)
			So(stats.PositiveScore(model.SkillAttack, model.OutcomePositive), ShouldEqual, 1)
		})

		Convey("Then a dig over the net still counts for the digger", func() {
			So(stats.EfficiencyScore(model.SkillDig, model.OutcomeOver), ShouldEqual, 1)
			So(stats.PositiveScore(model.SkillDig, model.OutcomeOver), ShouldEqual, 0)
		})

		Convey("Then reception and block punish errors and overs", func() {
			for _, sk := range []model.Skill{model.SkillReception, model.SkillBlock} {
				So(stats.EfficiencyScore(sk, model.OutcomeError), ShouldEqual, -1)
				So(stats.EfficiencyScore(sk, model.OutcomeOver), ShouldEqual, -1)
				So(stats.EfficiencyScore(sk, model.OutcomeNegative), ShouldEqual, 0)
			}
		})

		Convey("Then set and fault touches are never weighed", func() {
			So(stats.EfficiencyScore(model.SkillSet, model.OutcomePerfect), ShouldEqual, 0)
			So(stats.PositiveScore(model.SkillFault, model.OutcomePerfect), ShouldEqual, 0)
		})
	})
}

func TestSkillLines(t *testing.T) {
	Convey("Given evaluated attacks and serves", t, func() {
		events := []model.Event{
			{Seq: 1, Type: model.EventSetStart, Set: 1, Team: model.SideA, Serving: model.SideA, Rotation: 1},
			touch(2, model.EventPoint, "a4", model.SkillAttack, model.OutcomePerfect),
			touch(3, model.EventPoint, "a4", model.SkillAttack, model.OutcomePerfect),
			touch(4, model.EventError, "a4", model.SkillAttack, model.OutcomeError),
			touch(5, model.EventError, "a4", model.SkillServe, model.OutcomeError),
			touch(6, model.EventPoint, "b2", model.SkillBlock, model.OutcomePerfect),
			touch(7, model.EventPoint, "b2", model.SkillBlock, ""),
			ev(8, model.EventPoint, model.SideA, "a4"),
		}

		Convey("When they are aggregated", func() {
			r, err := stats.Aggregate(events)
			So(err, ShouldBeNil)

			Convey("Then each (player, skill) pair is rated on its own codes", func() {
				attack := r.Skills["a4"][model.SkillAttack]
				So(attack.Touches, ShouldEqual, 3)
				So(attack.Codes, ShouldResemble, map[model.Outcome]int{model.OutcomePerfect: 2, model.OutcomeError: 1})
				So(attack.Positive, ShouldEqual, 2)
				So(attack.Score, ShouldEqual, 1)
				So(attack.PositiveRate, ShouldAlmostEqual, 200.0/3.0)
				So(attack.Efficiency, ShouldAlmostEqual, 100.0/3.0)

				serve := r.Skills["a4"][model.SkillServe]
				So(serve.Touches, ShouldEqual, 1)
				So(serve.Efficiency, ShouldEqual, -100)
			})

			Convey("Then touches without an evaluation code are not rated", func() {
				So(r.Skills["b2"][model.SkillBlock].Touches, ShouldEqual, 1)
				So(r.Skills["b2"][model.SkillBlock].PositiveRate, ShouldEqual, 100)
				So(r.Players["a4"].Points, ShouldEqual, 3)
			})
		})

		Convey("When the log is split and merged", func() {
			head, err := stats.Aggregate(events[:4])
			So(err, ShouldBeNil)
			tail, err := stats.Aggregate(events[4:])
			So(err, ShouldBeNil)
			full, err := stats.Aggregate(events)
			So(err, ShouldBeNil)

			Convey("Then the skill lines equal the full aggregate", func() {
				So(stats.Merge(head, tail).Skills, ShouldResemble, full.Skills)
			})
		})

		Convey("When they are folded one at a time", func() {
			acc := stats.NewAccumulator()
			for _, e := range events[:3] {
				So(acc.Add(e), ShouldBeNil)
			}
			snap := acc.Report()
			for _, e := range events[3:] {
				So(acc.Add(e), ShouldBeNil)
			}

			Convey("Then an earlier snapshot keeps its own codes", func() {
				So(snap.Skills["a4"][model.SkillAttack].Codes, ShouldResemble, map[model.Outcome]int{model.OutcomePerfect: 2})
				So(acc.Report().Skills["a4"][model.SkillAttack].Touches, ShouldEqual, 3)
			})
		})
	})
}
