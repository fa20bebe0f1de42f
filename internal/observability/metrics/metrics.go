package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics exposes counters/histograms for question relay, reply
// ingestion and the live feed.
type RelayMetrics struct {
	submissionsTotal *prometheus.CounterVec
	storeWritesTotal *prometheus.CounterVec
	smsTotal         *prometheus.CounterVec
	emailTotal       *prometheus.CounterVec
	inboundTotal     *prometheus.CounterVec
	handlerLatency   *prometheus.HistogramVec
	liveSubscribers  prometheus.Gauge
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askstuart",
			Subsystem: "relay",
			Name:      "submissions_total",
			Help:      "Question submissions by outcome",
		}, []string{"outcome"}),
		storeWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askstuart",
			Subsystem: "relay",
			Name:      "store_writes_total",
			Help:      "Relay store writes by status",
		}, []string{"status"}),
		smsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askstuart",
			Subsystem: "relay",
			Name:      "sms_total",
			Help:      "Outbound SMS notifications by status",
		}, []string{"status"}),
		emailTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askstuart",
			Subsystem: "relay",
			Name:      "email_total",
			Help:      "Outbound e-mail notifications by status",
		}, []string{"status"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askstuart",
			Subsystem: "ingestion",
			Name:      "inbound_sms_total",
			Help:      "Inbound SMS replies by result",
		}, []string{"result"}),
		handlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "askstuart",
			Subsystem: "http",
			Name:      "handler_latency_seconds",
			Help:      "Latency of relay and ingestion handlers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
		liveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "askstuart",
			Subsystem: "livefeed",
			Name:      "subscribers",
			Help:      "Open live feed connections",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.storeWritesTotal, m.smsTotal, m.emailTotal,
		m.inboundTotal, m.handlerLatency, m.liveSubscribers)
	return m
}

func (m *RelayMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *RelayMetrics) ObserveStoreWrite(status string) {
	if m == nil {
		return
	}
	m.storeWritesTotal.WithLabelValues(status).Inc()
}

func (m *RelayMetrics) ObserveSMS(status string) {
	if m == nil {
		return
	}
	m.smsTotal.WithLabelValues(status).Inc()
}

func (m *RelayMetrics) ObserveEmail(status string) {
	if m == nil {
		return
	}
	m.emailTotal.WithLabelValues(status).Inc()
}

func (m *RelayMetrics) ObserveInbound(result string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(result).Inc()
}

func (m *RelayMetrics) ObserveLatency(handler string, seconds float64) {
	if m == nil {
		return
	}
	m.handlerLatency.WithLabelValues(handler).Observe(seconds)
}

// SubscriberOpened and SubscriberClosed track live feed connections.
func (m *RelayMetrics) SubscriberOpened() {
	if m == nil {
		return
	}
	m.liveSubscribers.Inc()
}

func (m *RelayMetrics) SubscriberClosed() {
	if m == nil {
		return
	}
	m.liveSubscribers.Dec()
}
