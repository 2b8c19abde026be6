package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a custom registry and options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.seatsTaken.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_seats_taken_total"], ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording booking metrics", func() {
			before := testutil.ToFloat64(globalManager.seatsTaken)
			RecordSeatTaken()
			RecordOperation("join", "ok", 1.5)
			RecordCASConflict("join")

			Convey("Then counters move", func() {
				So(testutil.ToFloat64(globalManager.seatsTaken), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.operations.WithLabelValues("join", "ok")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.casConflicts.WithLabelValues("join")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording rating, queue and HTTP metrics", func() {
			So(func() {
				RecordRatingBatch([]int{16, -16})
				RecordRatingFailure()
				UpdateRatingPending(2)
				UpdateLeaderboardSize(10)
				RecordStoreLatency("memory", "cas", 0.2)
				RecordStoreError("sqlite", "conflict")
				RecordNotificationSent("session.joined")
				RecordNotificationDropped()
				RecordNotificationDuplicate()
				UpdateQueueSize(3)
				UpdateQueueCapacity(10)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				UpdateWorkerCount(4)
				AddWorkerActive(1)
				AddWorkerActive(-1)
				RecordWorkerLatency(2)
				RecordWorkerError()
				RecordHTTPRequest("/sessions", "POST", "201", 3)
				RecordHTTPError("/sessions", "validation_error")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
				RecordSessionCreated("ranked_match")
				RecordSessionFinished("completed")
				RecordSeatReleased()
				RecordCASRetry()
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.ratingPending), ShouldEqual, 2)
			So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 10)
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
