package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cognitive_hub"

// Metrics holds every hub collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Connections    *prometheus.GaugeVec
	Subscriptions  prometheus.Gauge
	CommandsFrom   *prometheus.CounterVec
	MessagesFrom   *prometheus.CounterVec
	AudioBytesFrom prometheus.Counter
	Sessions       *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	SkillReplies   *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Connections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "connections",
				Name:      "active",
				Help:      "Currently connected sockets",
			},
			[]string{"type"},
		),

		Subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "subscriptions",
				Name:      "active",
				Help:      "Live controller subscriptions to device accounts",
			},
		),

		CommandsFrom: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "commands",
				Name:      "received_total",
				Help:      "Commands received from clients",
			},
			[]string{"connection_type", "command_type"},
		),

		MessagesFrom: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Messages received from clients",
			},
			[]string{"connection_type"},
		),

		AudioBytesFrom: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audio",
				Name:      "received_bytes_total",
				Help:      "Audio bytes streamed in for speech recognition",
			},
		),

		Sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "started_total",
				Help:      "Cognitive sessions started",
			},
			[]string{"kind"},
		),

		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "provider_errors_total",
				Help:      "Provider failures surfaced to clients",
			},
			[]string{"kind"},
		),

		SkillReplies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "skills",
				Name:      "replies_total",
				Help:      "Replies produced by skills",
			},
			[]string{"skill"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Connections,
		m.Subscriptions,
		m.CommandsFrom,
		m.MessagesFrom,
		m.AudioBytesFrom,
		m.Sessions,
		m.ProviderErrors,
		m.SkillReplies,
	)

	return m
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
