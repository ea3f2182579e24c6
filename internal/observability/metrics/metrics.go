package metrics

import "github.com/prometheus/client_golang/prometheus"

// PortalMetrics exposes counters/histograms for portal flows.
type PortalMetrics struct {
	chatMessages   *prometheus.CounterVec
	quotaRejected  prometheus.Counter
	llmLatency     *prometheus.HistogramVec
	appointmentOps *prometheus.CounterVec
	feedEvents     prometheus.Counter
}

func NewPortalMetrics(reg prometheus.Registerer) *PortalMetrics {
	m := &PortalMetrics{
		chatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Total chat sends by outcome",
		}, []string{"status"}),
		quotaRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "chat",
			Name:      "quota_rejected_total",
			Help:      "Sends rejected by the daily quota",
		}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Latency of completion requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		appointmentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "ops_total",
			Help:      "Appointment operations by outcome",
		}, []string{"op", "status"}),
		feedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "feed_events_total",
			Help:      "Change-feed events published",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.chatMessages, m.quotaRejected, m.llmLatency, m.appointmentOps, m.feedEvents)
	return m
}

func (m *PortalMetrics) ObserveChatMessage(status string) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(status).Inc()
}

func (m *PortalMetrics) ObserveQuotaRejected() {
	if m == nil {
		return
	}
	m.quotaRejected.Inc()
}

func (m *PortalMetrics) ObserveLLMLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *PortalMetrics) ObserveAppointmentOp(op, status string) {
	if m == nil {
		return
	}
	m.appointmentOps.WithLabelValues(op, status).Inc()
}

func (m *PortalMetrics) ObserveFeedEvent() {
	if m == nil {
		return
	}
	m.feedEvents.Inc()
}
