package recorder_test

import (
	"fmt"
	"testing"

	"github.com/okian/libero/internal/domain/recorder"
	"github.com/okian/libero/internal/domain/scoring"
	"github.com/okian/libero/internal/simulate"
	. "github.com/smartystreets/goconvey/convey"
)

func TestReplayDeterminism(t *testing.T) {
	Convey("Given simulated matches", t, func() {
		for seed := uint64(1); seed <= 10; seed++ {
			l, err := simulate.Match(seed, scoring.Default())
			So(err, ShouldBeNil)

			Convey(fmt.Sprintf("When seed %d is replayed twice from empty", seed), func() {
				first, err := recorder.Load(l.Match(), l.Rules(), l.Events())
				So(err, ShouldBeNil)
				second, err := recorder.Load(l.Match(), l.Rules(), l.Events())
				So(err, ShouldBeNil)

				Convey("Then rotation, score and phase agree", func() {
					So(first.State(), ShouldResemble, second.State())
					So(first.State(), ShouldResemble, l.State())
				})

				Convey("Then every rotation stayed valid", func() {
					for n := 0; n <= l.Len(); n += 17 {
						p, err := l.Prefix(n)
						So(err, ShouldBeNil)
						st := p.State()
						if st.Open() {
							So(st.Rotations[0].Valid(), ShouldBeTrue)
							So(st.Rotations[1].Valid(), ShouldBeTrue)
						}
					}
				})
			})
		}
	})
}
