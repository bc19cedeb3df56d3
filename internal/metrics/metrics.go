package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipnotify_orders_fetched_total",
			Help: "Total number of orders returned by the order source.",
		},
	)

	OrdersSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipnotify_orders_skipped_total",
			Help: "Total number of orders skipped by reason.",
		},
		[]string{"reason"}, // wrong_source, wrong_status, already_processed, no_invoice
	)

	OrdersProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipnotify_orders_processed_total",
			Help: "Total number of orders published, notified and recorded.",
		},
	)

	OrderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipnotify_order_failures_total",
			Help: "Total number of per-order failures by stage.",
		},
		[]string{"stage"}, // list, invoice, publish, packages, record
	)

	NotifyFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipnotify_notify_failures_total",
			Help: "Total number of failed notification sends by reason.",
		},
		[]string{"reason"},
	)

	RunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shipnotify_run_duration_seconds",
			Help:    "Wall-clock duration of a full batch run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		OrdersFetchedTotal,
		OrdersSkippedTotal,
		OrdersProcessedTotal,
		OrderFailuresTotal,
		NotifyFailuresTotal,
		RunDurationSeconds,
	)
}

// RecordSkip increments the skip counter for the given reason.
func RecordSkip(reason string) {
	OrdersSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordFailure increments the per-order failure counter for the given stage.
func RecordFailure(stage string) {
	OrderFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordNotifyFailure increments the notify failure counter for the given reason.
func RecordNotifyFailure(reason string) {
	NotifyFailuresTotal.WithLabelValues(reason).Inc()
}
