package dataimport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buildflow_import_rows_total",
		Help: "Imported data rows by record kind and outcome (imported or skipped).",
	}, []string{"kind", "outcome"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buildflow_import_runs_total",
		Help: "Import calls by payload format and result (ok, fatal or dry_run).",
	}, []string{"format", "result"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "buildflow_import_duration_seconds",
		Help:    "Wall time of import calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"format"})
)
