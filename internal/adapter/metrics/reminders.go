package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReminderMetrics tracks the appointment reminder batch.
type ReminderMetrics struct {
	Batches       prometheus.Counter
	BatchDuration prometheus.Histogram
	Sent          prometheus.Counter
	Skipped       *prometheus.CounterVec
	Failed        prometheus.Counter
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "batches_total",
			Help:      "Total number of reminder batches run.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "batch_duration_seconds",
			Help:      "Duration of reminder batches in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		Sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Total number of appointments reminded.",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "skipped_total",
			Help:      "Total number of appointments skipped, by reason.",
		}, []string{"reason"}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "failed_total",
			Help:      "Total number of reminders that could not be delivered.",
		}),
	}

	reg.MustRegister(m.Batches, m.BatchDuration, m.Sent, m.Skipped, m.Failed)
	return m
}
