// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the auth core reports to. Nop satisfies it for callers
// that do not export metrics.
type Recorder interface {
	RecordOperation(operation, outcome string, duration time.Duration)
	RecordActivityLogFailure(action string)
	RecordProviderCall(call, outcome string)
	RecordSessionsPurged(n int64)
}

type Collector struct {
	operations      *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	activityFailure *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	sessionsPurged  prometheus.Counter
}

// NewCollector creates the instruments and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_auth_operations_total",
			Help: "Auth operations by operation and outcome (ok or an error kind).",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "identity_auth_operation_duration_seconds",
			Help:    "Auth operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		activityFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_activity_log_failures_total",
			Help: "Activity log writes that failed and were dropped.",
		}, []string{"action"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_provider_calls_total",
			Help: "Calls to the identity provider by call and outcome.",
		}, []string{"call", "outcome"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "identity_sessions_purged_total",
			Help: "Expired sessions removed by housekeeping.",
		}),
	}

	reg.MustRegister(
		c.operations,
		c.latency,
		c.activityFailure,
		c.providerCalls,
		c.sessionsPurged,
	)

	return c
}

func (c *Collector) RecordOperation(operation, outcome string, duration time.Duration) {
	c.operations.WithLabelValues(operation, outcome).Inc()
	c.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordActivityLogFailure(action string) {
	c.activityFailure.WithLabelValues(action).Inc()
}

func (c *Collector) RecordProviderCall(call, outcome string) {
	c.providerCalls.WithLabelValues(call, outcome).Inc()
}

func (c *Collector) RecordSessionsPurged(n int64) {
	c.sessionsPurged.Add(float64(n))
}

// Handler serves the gathered metrics in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOperation(string, string, time.Duration) {}
func (Nop) RecordActivityLogFailure(string)               {}
func (Nop) RecordProviderCall(string, string)             {}
func (Nop) RecordSessionsPurged(int64)                    {}
