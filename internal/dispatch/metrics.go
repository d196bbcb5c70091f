package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type scannerMetrics struct {
	tickDuration prometheus.Histogram
	due          prometheus.Gauge
	dispatched   prometheus.Counter
	duplicates   prometheus.Counter
	missed       prometheus.Counter
	errors       prometheus.Counter
}

func newScannerMetrics(reg prometheus.Registerer) *scannerMetrics {
	factory := promauto.With(reg)
	return &scannerMetrics{
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_tick_duration_seconds",
			Help:    "Duration of each dispatch scan tick",
			Buckets: prometheus.DefBuckets,
		}),
		due: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_schedules_due",
			Help: "Schedules found inside the dispatch window on the last tick",
		}),
		dispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_schedules_dispatched_total",
			Help: "Schedules dispatched as new runs",
		}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_schedules_duplicate_total",
			Help: "Schedules resolved as no-op dispatches because a live run already covered them",
		}),
		missed: factory.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_schedules_missed_total",
			Help: "Schedules that aged out of the dispatch window unclaimed",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_dispatch_errors_total",
			Help: "Per-schedule dispatch failures",
		}),
	}
}
