package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics exposes counters/histograms for turn handling.  A nil
// *TurnMetrics is valid and records nothing.
type TurnMetrics struct {
	turnsTotal      *prometheus.CounterVec
	fallbackTotal   *prometheus.CounterVec
	generationFails prometheus.Counter
	callLatency     *prometheus.HistogramVec
}

// NewTurnMetrics registers the collectors on reg, or the default registerer
// when reg is nil.
func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discharge",
			Subsystem: "assistant",
			Name:      "turns_total",
			Help:      "Total user turns by routing decision",
		}, []string{"route"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "discharge",
			Subsystem: "assistant",
			Name:      "web_fallback_total",
			Help:      "Web fallback invocations by outcome",
		}, []string{"outcome"}),
		generationFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "discharge",
			Subsystem: "assistant",
			Name:      "generation_failures_total",
			Help:      "Generation calls that failed and were replaced by an apology",
		}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "discharge",
			Subsystem: "assistant",
			Name:      "external_call_seconds",
			Help:      "Latency of calls to the retriever, web search and generation services",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.fallbackTotal, m.generationFails, m.callLatency)
	return m
}

// ObserveTurn counts one user turn under its routing decision.
func (m *TurnMetrics) ObserveTurn(route string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(route).Inc()
}

// ObserveFallback counts one web fallback by outcome.
func (m *TurnMetrics) ObserveFallback(outcome string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(outcome).Inc()
}

// ObserveGenerationFailure counts a generation call replaced by an apology.
func (m *TurnMetrics) ObserveGenerationFailure() {
	if m == nil {
		return
	}
	m.generationFails.Inc()
}

// ObserveCall records one external call; err decides the status label.
func (m *TurnMetrics) ObserveCall(service string, seconds float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.callLatency.WithLabelValues(service, status).Observe(seconds)
}
