package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts HTTP attempts against external sources.
	// outcome is one of "ok", "not_found", "unavailable", "error", "rejected".
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightrec_upstream_requests_total",
			Help: "Total number of upstream HTTP attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightrec_upstream_retries_total",
			Help: "Total number of upstream retries after transient failures",
		},
		[]string{"source"},
	)

	// CacheLookups counts cache reads by namespace; result is "hit" or "miss"
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightrec_cache_lookups_total",
			Help: "Total number of cache lookups by namespace and result",
		},
		[]string{"namespace", "result"},
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightrec_cache_writes_total",
			Help: "Total number of cache writes by namespace",
		},
		[]string{"namespace"},
	)

	// StageFlights records how many flights survived each pipeline stage in the last run
	StageFlights = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flightrec_stage_flights",
			Help: "Number of flights remaining after each pipeline stage in the most recent run",
		},
		[]string{"stage"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightrec_pipeline_runs_total",
			Help: "Total number of pipeline runs by result",
		},
		[]string{"result"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flightrec_pipeline_duration_seconds",
			Help:    "Duration of a full recommendation run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)
