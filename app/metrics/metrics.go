package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "news_comb"

var (
	// FetchRuns counts ingestion runs by source and audited status
	FetchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_runs_total",
			Help:      "Ingestion runs by source and outcome status",
		},
		[]string{"source", "status"},
	)

	// ArticlesUpserted counts upserts by outcome (created, updated)
	ArticlesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_upserted_total",
			Help:      "Article upserts by outcome",
		},
		[]string{"outcome"},
	)

	// IndexSyncs counts search index propagations by operation and outcome
	IndexSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_syncs_total",
			Help:      "Search index propagations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// BackendSelections counts read requests by the search backend that served them
	BackendSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_backend_selections_total",
			Help:      "Search requests by serving backend",
		},
		[]string{"backend"},
	)

	// TaskRuns counts background task executions by type and outcome
	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Background task executions by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// TaskDuration tracks background task execution time
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Background task execution time in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// CacheLookups counts search cache lookups by result (hit, miss, error)
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_lookups_total",
			Help:      "Search cache lookups by result",
		},
		[]string{"result"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
