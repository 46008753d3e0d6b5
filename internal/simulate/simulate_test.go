package simulate_test

import (
	"testing"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/recorder"
	"github.com/okian/libero/internal/domain/scoring"
	"github.com/okian/libero/internal/simulate"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMatch(t *testing.T) {
	Convey("Given a seed", t, func() {
		l, err := simulate.Match(7, scoring.Default())
		So(err, ShouldBeNil)

		Convey("Then the match is played to the end", func() {
			st := l.State()
			So(st.MatchOver(), ShouldBeTrue)
			So(st.Wins[st.Winner.Index()], ShouldEqual, scoring.DefaultSetsToWin)
			So(len(st.Sets), ShouldBeBetweenOrEqual, 3, 5)
		})

		Convey("Then both rosters are full and ids are UUIDs", func() {
			m := l.Match()
			So(m.Team(model.SideA).Players, ShouldHaveLength, 12)
			So(m.Team(model.SideB).Players, ShouldHaveLength, 12)
			So(m.ID, ShouldHaveLength, 36)
		})

		Convey("Then the same seed produces the same match", func() {
			again, err := simulate.Match(7, scoring.Default())
			So(err, ShouldBeNil)
			So(again.Match(), ShouldResemble, l.Match())
			So(again.Events(), ShouldResemble, l.Events())
		})

		Convey("Then another seed produces another match", func() {
			other, err := simulate.Match(8, scoring.Default())
			So(err, ShouldBeNil)
			So(other.Match().ID, ShouldNotEqual, l.Match().ID)
		})

		Convey("Then the events replay into the same state", func() {
			loaded, err := recorder.Load(l.Match(), l.Rules(), l.Events())
			So(err, ShouldBeNil)
			So(loaded.State(), ShouldResemble, l.State())
		})

		Convey("Then the stream exercises every kind of event", func() {
			kinds := map[model.EventType]int{}
			for _, e := range l.Events() {
				kinds[e.Type]++
			}
			So(kinds[model.EventPoint], ShouldBeGreaterThan, 0)
			So(kinds[model.EventError], ShouldBeGreaterThan, 0)
			So(kinds[model.EventSideOut], ShouldBeGreaterThan, 0)
			So(kinds[model.EventSetStart], ShouldEqual, len(l.Sets()))
		})

		Convey("Then credited rallies carry evaluated touches", func() {
			rated := 0
			for _, e := range l.Events() {
				if e.Skill == "" {
					continue
				}
				rated++
				So(e.Player, ShouldNotBeEmpty)
				So(e.Outcome, ShouldNotBeEmpty)
				So(e.Type, ShouldBeIn, []model.EventType{model.EventPoint, model.EventError})
				if e.Type == model.EventPoint {
					So(e.Outcome, ShouldEqual, model.OutcomePerfect)
				}
			}
			So(rated, ShouldBeGreaterThan, 0)
		})
	})

	Convey("Given a skill rate of zero", t, func() {
		l, err := simulate.Match(7, scoring.Default(), simulate.WithSkillRate(0))
		So(err, ShouldBeNil)

		Convey("Then no touch is evaluated", func() {
			for _, e := range l.Events() {
				So(e.Skill, ShouldBeEmpty)
				So(e.Outcome, ShouldBeEmpty)
			}
		})
	})

	Convey("Given short sets and frequent substitutions", t, func() {
		rules, err := scoring.New(scoring.WithSetTarget(10), scoring.WithDecidingSetTarget(7))
		So(err, ShouldBeNil)
		l, err := simulate.Match(99, rules, simulate.WithSubstitutionRate(0.5), simulate.WithPhases())
		So(err, ShouldBeNil)

		Convey("Then substitutions stay within the limit", func() {
			subs := map[[2]int]int{}
			for _, e := range l.Events() {
				if e.Type == model.EventSubstitution {
					subs[[2]int{e.Set, e.Team.Index()}]++
				}
			}
			So(len(subs), ShouldBeGreaterThan, 0)
			for _, n := range subs {
				So(n, ShouldBeLessThanOrEqualTo, rules.MaxSubstitutions)
			}
		})

		Convey("Then only the two stamped phases appear", func() {
			for _, e := range l.Events() {
				So(e.Phase, ShouldBeIn, []model.Phase{model.PhaseBreak, model.PhaseSideOut})
			}
		})
	})
}
