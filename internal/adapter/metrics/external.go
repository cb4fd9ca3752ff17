package metrics

import "github.com/prometheus/client_golang/prometheus"

// ExternalMetrics tracks calls to third-party APIs (Stripe, Gemini, Supabase)
// and the state of the circuit breakers guarding them.
type ExternalMetrics struct {
	Calls        *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	BreakerState *prometheus.GaugeVec
}

func NewExternalMetrics(reg prometheus.Registerer) *ExternalMetrics {
	m := &ExternalMetrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "calls_total",
			Help:      "Total number of external API calls, by service and result.",
		}, []string{"service", "result"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_duration_seconds",
			Help:      "Duration of external API calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state by service (0=closed, 1=half-open, 2=open).",
		}, []string{"service"}),
	}

	reg.MustRegister(m.Calls, m.CallDuration, m.BreakerState)
	return m
}

// ObserveCall records one external call.
func (m *ExternalMetrics) ObserveCall(service string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.Calls.WithLabelValues(service, result).Inc()
	m.CallDuration.WithLabelValues(service).Observe(seconds)
}

// SetBreakerState records a breaker transition.
func (m *ExternalMetrics) SetBreakerState(service string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(service).Set(state)
}
