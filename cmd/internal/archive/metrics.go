package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsArchived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rally",
		Subsystem: "archive",
		Name:      "sessions_archived_total",
		Help:      "Sessions transitioned to archived by the sweeper.",
	})

	sessionsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rally",
		Subsystem: "archive",
		Name:      "sessions_by_status",
		Help:      "Session counts by lifecycle status, refreshed on stats reads.",
	}, []string{"status"})

	sweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rally",
		Subsystem: "archive",
		Name:      "sweep_failures_total",
		Help:      "Sweep passes that returned an error.",
	})
)
