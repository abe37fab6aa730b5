// Package metrics holds the Prometheus collectors exported on the admin endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "todogate"

// Connection outcomes.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRateLimited = "rate_limited"
	OutcomeQueueFull   = "queue_full"
	OutcomeReadError   = "read_error"
	OutcomeWriteError  = "write_error"
)

var (
	registry = prometheus.NewRegistry()

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "queue_depth",
			Help:      "Number of jobs waiting for a worker.",
		},
	)

	jobsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_total",
			Help:      "Number of jobs run to completion by workers.",
		},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "job_duration_seconds",
			Help:      "Time a worker spent executing one job.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	connectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections seen by the dispatcher, by outcome.",
		},
		[]string{"outcome"},
	)

	responsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses produced by the router, by status code.",
		},
		[]string{"code"},
	)
)

var registerMetrics sync.Once

// Register adds all collectors to the package registry. Safe to call more than once.
func Register() {
	registerMetrics.Do(func() {
		registry.MustRegister(queueDepth)
		registry.MustRegister(jobsTotal)
		registry.MustRegister(jobDuration)
		registry.MustRegister(connectionsTotal)
		registry.MustRegister(responsesTotal)
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

func RecordJob(d time.Duration) {
	jobsTotal.Inc()
	jobDuration.Observe(d.Seconds())
}

func RecordConnection(outcome string) {
	connectionsTotal.WithLabelValues(outcome).Inc()
}

func RecordResponse(code int) {
	responsesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}
