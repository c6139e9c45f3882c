package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maitred_requests_total",
		Help: "Routed requests by destination class and status class.",
	}, []string{"destination", "code"})

	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maitred_upstream_errors_total",
		Help: "Failed upstream round trips by failure kind.",
	}, []string{"kind"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maitred_in_flight_requests",
		Help: "Requests currently being routed.",
	})
)
