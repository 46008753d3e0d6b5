package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a private registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its collectors are registered under the namespace", func() {
				m.eventsApplied.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_events_applied_total"], ShouldBeTrue)
			})
		})

		Convey("When two managers share a registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When ledger events are recorded", func() {
			before := testutil.ToFloat64(globalManager.eventsApplied)
			RecordEventApplied()
			RecordEventRejected("unknown_player")
			RecordEventRejected("unknown_player")
			UpdateLedgerLength("m-1", 12)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.eventsApplied), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.eventsRejected.WithLabelValues("unknown_player")), ShouldBeGreaterThanOrEqualTo, 2)
				So(testutil.ToFloat64(globalManager.ledgerLength.WithLabelValues("m-1")), ShouldEqual, 12)
			})

			Convey("Then a closed match drops its series", func() {
				ForgetMatch("m-1")
				So(testutil.CollectAndCount(globalManager.ledgerLength), ShouldEqual, 0)
			})
		})

		Convey("When the remaining recorders are called", func() {
			So(func() {
				RecordEventDuplicate()
				RecordApplyLatency(1.5)
				UpdateActiveMatches(2)
				RecordReadLatency("query", 3)
				UpdateQueueSize(4)
				UpdateQueueCapacity(100)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(0.4)
				RecordWorkerError()
				RecordRepositoryLatency("append", 2)
				RecordRepositoryError("append")
				RecordHTTPRequest("/matches", "GET", "200")
				RecordHTTPRequestDuration("/matches", "GET", "200", 1)
			}, ShouldNotPanic)
		})

		Convey("When system gauges are set", func() {
			UpdateSystemMemoryUsage(2048)
			UpdateSystemGoroutineCount(12)
			RecordSystemGCPauseTime(0.25)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.systemMemoryUsage), ShouldEqual, 2048)
				So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.systemGCPauseTime), ShouldEqual, 0.25)
			})
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
