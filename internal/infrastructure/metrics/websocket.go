package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(wsConnections, wsSubscriptions) }

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Open WebSocket connections.",
		},
	)

	wsSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_live_subscriptions",
			Help: "Live store subscriptions held by WebSocket clients.",
		},
	)
)

func ConnectionOpened() { wsConnections.Inc() }
func ConnectionClosed() { wsConnections.Dec() }

func SubscriptionOpened() { wsSubscriptions.Inc() }
func SubscriptionClosed() { wsSubscriptions.Dec() }
