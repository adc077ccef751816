package nl2sql

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_generations_total",
			Help: "Total number of SQL generation calls by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	generationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_generation_duration_seconds",
			Help:    "Latency of provider completion calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, generationDurationSeconds)
}

func observeGeneration(provider string, err error, elapsed time.Duration) {
	outcome := "ok"
	var tagged *Error
	if err != nil {
		outcome = "error"
		if asError(err, &tagged) {
			outcome = string(tagged.Kind)
		}
	}
	generationsTotal.WithLabelValues(provider, outcome).Inc()
	generationDurationSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}
