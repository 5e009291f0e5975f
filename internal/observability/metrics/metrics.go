package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for the voice call pipeline.
type CallMetrics struct {
	turnsTotal      *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
	interruptions   prometheus.Counter
	functionCalls   *prometheus.CounterVec
	providerErrors  *prometheus.CounterVec
	activeCalls     prometheus.Gauge
	retrievalMisses prometheus.Counter
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceline",
			Subsystem: "call",
			Name:      "turns_total",
			Help:      "Total conversation turns processed",
		}, []string{"strategy", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voiceline",
			Subsystem: "call",
			Name:      "turn_latency_seconds",
			Help:      "Latency from finalized utterance to first synthesized audio",
			Buckets:   []float64{0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5, 8},
		}, []string{"strategy"}),
		interruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voiceline",
			Subsystem: "call",
			Name:      "interruptions_total",
			Help:      "Caller barge-ins that flushed in-progress synthesis",
		}),
		functionCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceline",
			Subsystem: "call",
			Name:      "function_calls_total",
			Help:      "Tool/function invocations requested by the model",
		}, []string{"function", "status"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceline",
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Errors from external providers",
		}, []string{"provider"}),
		activeCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voiceline",
			Subsystem: "call",
			Name:      "active",
			Help:      "Calls currently owned by the orchestration pipeline",
		}),
		retrievalMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voiceline",
			Subsystem: "retrieval",
			Name:      "timeouts_total",
			Help:      "Retrievals abandoned because the timeout elapsed",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal,
		m.turnLatency,
		m.interruptions,
		m.functionCalls,
		m.providerErrors,
		m.activeCalls,
		m.retrievalMisses,
	)
	return m
}

func (m *CallMetrics) ObserveTurn(strategy, status string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(strategy, status).Inc()
	m.turnLatency.WithLabelValues(strategy).Observe(seconds)
}

func (m *CallMetrics) ObserveInterruption() {
	if m == nil {
		return
	}
	m.interruptions.Inc()
}

func (m *CallMetrics) ObserveFunctionCall(name, status string) {
	if m == nil {
		return
	}
	m.functionCalls.WithLabelValues(name, status).Inc()
}

func (m *CallMetrics) ObserveProviderError(provider string) {
	if m == nil {
		return
	}
	m.providerErrors.WithLabelValues(provider).Inc()
}

func (m *CallMetrics) CallStarted() {
	if m == nil {
		return
	}
	m.activeCalls.Inc()
}

func (m *CallMetrics) CallEnded() {
	if m == nil {
		return
	}
	m.activeCalls.Dec()
}

func (m *CallMetrics) ObserveRetrievalTimeout() {
	if m == nil {
		return
	}
	m.retrievalMisses.Inc()
}
