package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rally",
		Subsystem: "realtime",
		Name:      "connections_open",
		Help:      "Currently open websocket connections.",
	})

	eventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rally",
		Subsystem: "realtime",
		Name:      "events_delivered_total",
		Help:      "Events enqueued to a client send queue.",
	})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rally",
		Subsystem: "realtime",
		Name:      "events_dropped_total",
		Help:      "Events dropped due to client backpressure.",
	})

	connectionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rally",
		Subsystem: "realtime",
		Name:      "connections_rejected_total",
		Help:      "Rejected websocket subscription attempts.",
	}, []string{"reason"})
)
