package metrics

import "github.com/prometheus/client_golang/prometheus"

// Guard outcomes.
const (
	OutcomeAuthorized   = "authorized"
	OutcomeLogin        = "login"
	OutcomeMismatch     = "mismatch"
	OutcomeLookupFailed = "lookup_failed"
	OutcomeAborted      = "aborted"
)

// AccessMetrics tracks role-guard decisions on dashboard routes.
type AccessMetrics struct {
	Decisions    *prometheus.CounterVec
	WaitDuration prometheus.Histogram
}

func NewAccessMetrics(reg prometheus.Registerer) *AccessMetrics {
	m := &AccessMetrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Total number of role guard decisions, by required role and outcome.",
		}, []string{"required_role", "outcome"}),
		WaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "decision_wait_seconds",
			Help:      "Time from request to role guard decision.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		}),
	}

	reg.MustRegister(m.Decisions, m.WaitDuration)
	return m
}

// RoleCacheMetrics holds Prometheus metrics for role cache performance.
type RoleCacheMetrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Invalidations prometheus.Counter
}

func NewRoleCacheMetrics(reg prometheus.Registerer) *RoleCacheMetrics {
	m := &RoleCacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "role_cache",
			Name:      "hits_total",
			Help:      "Total number of role cache hits.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "role_cache",
			Name:      "misses_total",
			Help:      "Total number of role cache misses.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "role_cache",
			Name:      "invalidations_total",
			Help:      "Total number of role cache invalidations.",
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Invalidations)
	return m
}
