package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_query_executions_total",
			Help: "Total number of generated queries executed against the database.",
		},
		[]string{"status"},
	)
	queryExecutionDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_execution_duration_ms",
			Help:    "Query execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_rows_returned",
			Help:    "Number of rows returned per executed query.",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000},
		},
	)
	schemaLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_schema_loads_total",
			Help: "Total number of schema introspections.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		queryExecutionsTotal,
		queryExecutionDurationMs,
		queryRowsReturned,
		schemaLoadsTotal,
	)
}

func ObserveQueryExecution(rows int, elapsed time.Duration, err error) {
	if err != nil {
		queryExecutionsTotal.WithLabelValues("error").Inc()
		return
	}
	queryExecutionsTotal.WithLabelValues("ok").Inc()
	queryExecutionDurationMs.Observe(float64(elapsed.Milliseconds()))
	queryRowsReturned.Observe(float64(rows))
}

func ObserveSchemaLoad(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	schemaLoadsTotal.WithLabelValues(status).Inc()
}
