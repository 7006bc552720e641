package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Uploads counts pipeline runs by outcome (ok, busy, no_rows, no_table, error)
	Uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tree_uploads_total", Help: "Tree survey uploads by outcome."},
		[]string{"outcome"},
	)
	// Rows counts input rows by fate (read, kept, dropped_missing_columns, dropped_no_tree_number)
	Rows = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tree_upload_rows_total", Help: "Input rows seen by the normalizer."},
		[]string{"fate"},
	)
	// MissingTrees is the missing-tree count of the last committed upload
	MissingTrees = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "tree_missing_current", Help: "Missing trees after the last upload."},
	)
	// DuplicateGroups is the duplicate-coordinate group count of the last committed upload
	DuplicateGroups = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "tree_duplicate_groups_current", Help: "Duplicate coordinate groups after the last upload."},
	)
	// StageDuration tracks time spent per pipeline stage in seconds
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "tree_pipeline_stage_seconds", Help: "Pipeline stage duration in seconds.", Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}},
		[]string{"stage"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Uploads)
		Registry.MustRegister(Rows)
		Registry.MustRegister(MissingTrees)
		Registry.MustRegister(DuplicateGroups)
		Registry.MustRegister(StageDuration)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
