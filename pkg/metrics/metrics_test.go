package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every collector registers without conflict", func() {
				So(manager, ShouldNotBeNil)
				manager.eventsDiscarded.Inc()
				count, err := testutil.GatherAndCount(registry, "test_unit_events_discarded_total")
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 1)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording pipeline metrics", func() {
			before := testutil.ToFloat64(globalManager.eventsRecorded.WithLabelValues("pointer_moved"))
			RecordEventRecorded("pointer_moved")
			RecordBatchScheduled()
			RecordPersistCycle(3)
			RecordPersistError("write")
			UpdatePendingBatches(2)
			UpdateStoredEvents(10)
			RecordReplayDispatch("button_pressed", 1.5)
			RecordReplayPass()
			RecordReplayAbort()
			UpdateResidentMemory(20, 10, 30)
			UpdateTaskRunning("recorder", true)
			RecordTaskPanic("recorder")
			RecordTaskMisuse("recorder", "start")

			Convey("Then the values are observable", func() {
				So(testutil.ToFloat64(globalManager.eventsRecorded.WithLabelValues("pointer_moved")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.pendingBatches), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.storedEvents), ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.residentMemory.WithLabelValues("max")), ShouldEqual, 30)
				So(testutil.ToFloat64(globalManager.taskRunning.WithLabelValues("recorder")), ShouldEqual, 1)
			})
		})

		Convey("When scraping the handler", func() {
			UpdateBufferedEvents(4)
			rec := httptest.NewRecorder()
			Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

			Convey("Then the exposition contains our namespace", func() {
				So(rec.Code, ShouldEqual, 200)
				So(strings.Contains(rec.Body.String(), "mimic_input_buffered_events 4"), ShouldBeTrue)
			})
		})
	})
}

func TestServe(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then Serve shuts down cleanly", func() {
			So(Serve(ctx, "127.0.0.1:0"), ShouldBeNil)
		})
	})
}
