package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trueth",
		Subsystem: "verifier",
		Name:      "verifications_total",
		Help:      "Bridge transaction verifications by outcome reason.",
	}, []string{"reason"})
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trueth",
		Subsystem: "api",
		Name:      "submissions_total",
		Help:      "Investigation submissions by result.",
	}, []string{"result"})
)
