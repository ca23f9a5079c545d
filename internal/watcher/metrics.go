package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pendingSubmissions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trueth",
		Subsystem: "watcher",
		Name:      "pending_submissions",
		Help:      "Number of accepted submissions awaiting bridge completion.",
	})
	completedSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trueth",
		Subsystem: "watcher",
		Name:      "completed_submissions_total",
		Help:      "Number of submissions whose bridge completion was attested.",
	})
)
