package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the daemon's instrumentation. A nil *Metrics is valid and
// records nothing, so components can be wired without observability in tests.
type Metrics struct {
	encryptTotal     *prometheus.CounterVec
	decryptTotal     *prometheus.CounterVec
	sessionEvents    *prometheus.CounterVec
	keyServerLatency *prometheus.HistogramVec
}

// New registers the metric set on reg; nil means the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		encryptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memvault_seal_encrypt_total",
			Help: "Encrypt operations by outcome kind.",
		}, []string{"outcome"}),
		decryptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memvault_seal_decrypt_total",
			Help: "Decrypt operations by outcome kind.",
		}, []string{"outcome"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memvault_session_events_total",
			Help: "Session credential lifecycle events.",
		}, []string{"event"}),
		keyServerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memvault_keyserver_request_duration_seconds",
			Help:    "Key server share request latency by server and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"server", "outcome"}),
	}
	reg.MustRegister(m.encryptTotal, m.decryptTotal, m.sessionEvents, m.keyServerLatency)
	return m
}

func (m *Metrics) ObserveEncrypt(outcome string) {
	if m == nil {
		return
	}
	m.encryptTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDecrypt(outcome string) {
	if m == nil {
		return
	}
	m.decryptTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveKeyServerRequest(server, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.keyServerLatency.WithLabelValues(server, outcome).Observe(elapsed.Seconds())
}
