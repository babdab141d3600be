package npem

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pcileds",
		Subsystem: "npem",
		Name:      "writes_total",
		Help:      "Successful indication mask writes",
	}, []string{"address", "backend"})

	writeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pcileds",
		Subsystem: "npem",
		Name:      "write_errors_total",
		Help:      "Failed indication mask writes",
	}, []string{"address", "backend"})

	completionTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pcileds",
		Subsystem: "npem",
		Name:      "completion_timeouts_total",
		Help:      "Completion polls that hit the deadline without the device reporting command-complete",
	}, []string{"address"})

	enginesAttached = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pcileds",
		Subsystem: "npem",
		Name:      "engines",
		Help:      "Indication engines currently attached",
	})
)
