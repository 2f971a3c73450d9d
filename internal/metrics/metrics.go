package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the delivery-path instruments. All series are
// registered on the provided registry so tests can use a private one.
type Metrics struct {
	registry *prometheus.Registry

	LiveChannels      prometheus.GaugeFunc
	MessagesDelivered *prometheus.CounterVec
	DeliveryMisses    prometheus.Counter
	SessionsOpened    prometheus.Counter
	SessionsClosed    prometheus.Counter
}

// New registers the delivery metrics. liveChannels reports the current
// registry size when scraped.
func New(reg *prometheus.Registry, liveChannels func() int) *Metrics {
	m := &Metrics{
		registry: reg,
		LiveChannels: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ciphergram_live_channels",
			Help: "Number of currently registered live delivery channels.",
		}, func() float64 { return float64(liveChannels()) }),
		MessagesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ciphergram_messages_dispatched_total",
			Help: "Messages durably stored by the dispatcher, by kind.",
		}, []string{"kind"}),
		DeliveryMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ciphergram_delivery_misses_total",
			Help: "Dispatches where the live push was skipped or failed.",
		}),
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ciphergram_ws_sessions_opened_total",
			Help: "Websocket sessions accepted.",
		}),
		SessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ciphergram_ws_sessions_closed_total",
			Help: "Websocket sessions torn down.",
		}),
	}

	reg.MustRegister(
		m.LiveChannels,
		m.MessagesDelivered,
		m.DeliveryMisses,
		m.SessionsOpened,
		m.SessionsClosed,
	)
	return m
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
