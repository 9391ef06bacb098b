package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relaybot"

var (
	once sync.Once

	events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Count of classified inbound events by kind.",
		},
		[]string{"kind"},
	)

	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Count of inbound events dropped before handling.",
		},
		[]string{"reason"},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Count of committed order stage transitions by target stage.",
		},
		[]string{"to"},
	)

	ordersConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_confirmed_total",
			Help:      "Count of orders confirmed and handed to the operator.",
		},
	)

	relayMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Count of messages relayed between users and the operator.",
		},
		[]string{"direction"},
	)

	gatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_errors_total",
			Help:      "Count of failed outbound gateway calls by operation.",
		},
		[]string{"op"},
	)

	idleTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_ticks_total",
			Help:      "Count of simulated idle activity ticks.",
		},
	)
)

// Register registers metrics (idempotent). sessions reports the live session count.
func Register(sessions func() float64) {
	once.Do(func() {
		prometheus.MustRegister(events, eventsDropped, orderTransitions, ordersConfirmed, relayMessages, gatewayErrors, idleTicks)
		if sessions != nil {
			prometheus.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "sessions",
					Help:      "Number of chats with non-idle session state.",
				},
				sessions,
			))
		}
	})
}

func IncEvent(kind string) {
	events.WithLabelValues(kind).Inc()
}

func IncEventDropped(reason string) {
	eventsDropped.WithLabelValues(reason).Inc()
}

func IncOrderTransition(to string) {
	orderTransitions.WithLabelValues(to).Inc()
}

func IncOrderConfirmed() {
	ordersConfirmed.Inc()
}

func IncRelayMessage(direction string) {
	relayMessages.WithLabelValues(direction).Inc()
}

func IncGatewayError(op string) {
	gatewayErrors.WithLabelValues(op).Inc()
}

func IncIdleTick() {
	idleTicks.Inc()
}
