package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ordersSubmitted,
		orderTransitions,
		orderTransitionAnomalies,
	)
}

var (
	ordersSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_submitted_total",
			Help: "Bulk order requests submitted.",
		},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status changes, by target status.",
		},
		[]string{"status"},
	)

	orderTransitionAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transition_anomalies_total",
			Help: "Accepted order status changes that did not move forward in the pipeline.",
		},
		[]string{"from", "to"},
	)
)

func IncOrderSubmitted() {
	ordersSubmitted.Inc()
}

func IncOrderTransition(status string) {
	orderTransitions.WithLabelValues(norm(status)).Inc()
}

func IncOrderTransitionAnomaly(from, to string) {
	orderTransitionAnomalies.WithLabelValues(norm(from), norm(to)).Inc()
}
