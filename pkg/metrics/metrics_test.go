package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerRegistration(t *testing.T) {
	Convey("Given a manager on a fresh registry", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(
			WithPrometheusRegistry(reg),
			WithNamespace("test"),
			WithSubsystem("unit"),
		)

		Convey("All collectors register without collision", func() {
			So(m, ShouldNotBeNil)

			families, err := reg.Gather()
			So(err, ShouldBeNil)
			// Vec families stay empty until a label set is used.
			So(len(families), ShouldBeGreaterThan, 0)
		})

		Convey("Recording through the manager's collectors works", func() {
			m.scoreUpdates.Inc()
			m.upsertConflicts.Inc()
			m.storeUpdateLatency.Observe(1.5)
			m.storeEntriesTotal.Set(42)
			m.httpRequests.WithLabelValues("top", "GET", "200").Inc()

			families, err := reg.Gather()
			So(err, ShouldBeNil)

			names := make(map[string]bool, len(families))
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["test_unit_score_updates_total"], ShouldBeTrue)
			So(names["test_unit_upsert_conflicts_total"], ShouldBeTrue)
			So(names["test_unit_store_update_latency_milliseconds"], ShouldBeTrue)
			So(names["test_unit_store_entries_total"], ShouldBeTrue)
			So(names["test_unit_http_requests_total"], ShouldBeTrue)
		})
	})
}

func TestPackageHelpers(t *testing.T) {
	Convey("Given the package-level recording helpers", t, func() {
		Convey("All helpers delegate to the global manager without panicking", func() {
			RecordScoreUpdate()
			RecordScoreUpdateError()
			RecordUpsertConflict()
			RecordStoreUpdateLatency(0.5)
			RecordStoreQueryLatency(0.25)
			UpdateStoreEntriesTotal(7)
			RecordEnrichmentFailure()
			RecordHTTPRequest("top", "GET", "200")
			RecordHTTPRequestDuration("top", "GET", "200", 1.25)

			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
