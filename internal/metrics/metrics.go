// Package metrics holds the Prometheus collectors shared by the transports,
// the refresh loop and the repository.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	httpActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_http_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)

	refreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_refresh_total",
			Help: "Snapshot refreshes by outcome",
		},
		[]string{"outcome"},
	)

	refreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashboard_refresh_duration_seconds",
			Help:    "Time to fetch and aggregate one snapshot",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
	)

	snapshotRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_snapshot_records",
			Help: "Evaluation records in the current snapshot",
		},
	)

	snapshotTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_snapshot_timestamp_seconds",
			Help: "Unix time the current snapshot was fetched",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	dbQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_db_query_errors_total",
			Help: "Total number of database query errors",
		},
		[]string{"operation"},
	)
)

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest increments the in-flight gauge; call the returned func when done.
func TrackActiveRequest() func() {
	httpActiveRequests.Inc()
	return httpActiveRequests.Dec
}

// RecordDBQuery records one store query and whether it failed.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		dbQueryErrors.WithLabelValues(operation).Inc()
	}
}

// Refresh feeds the refresh controller's telemetry into Prometheus.
type Refresh struct{}

func (Refresh) ObserveRefresh(outcome string, elapsed time.Duration) {
	refreshTotal.WithLabelValues(outcome).Inc()
	refreshDuration.Observe(elapsed.Seconds())
}

func (Refresh) ObserveSnapshot(records int, fetchedAt time.Time) {
	snapshotRecords.Set(float64(records))
	snapshotTimestamp.Set(float64(fetchedAt.Unix()))
}
