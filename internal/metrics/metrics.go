// Package metrics holds Prometheus instruments that are used across the
// intake service.  All collectors are registered with the global registry, so
// mounting promhttp.Handler() in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// IntakeRequestsTotal counts finished intake requests by endpoint and
	// outcome (persisted, rate_limited, invalid, bot, unauthorized, failed).
	IntakeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_requests_total",
			Help: "Intake requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"})

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_rate_limited_total",
			Help: "Requests denied by the fixed-window rate limiter.",
		}, []string{"limiter"})

	RateLimitKeys = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intake_rate_limit_keys",
			Help: "Client keys currently tracked by a rate limiter.",
		}, []string{"limiter"})

	RateLimitEvictTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_rate_limit_evict_total",
			Help: "Rate-limit windows dropped by expiry or LRU pressure.",
		}, []string{"limiter", "reason"})

	StoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_store_duration_seconds",
			Help:    "Latency of persistence adapter calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "table"})

	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_store_errors_total",
			Help: "Failed persistence adapter calls.",
		}, []string{"op", "table"})

	NotifyErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_notify_errors_total",
			Help: "Lead notifications that could not be delivered.",
		})
)

func init() {
	prometheus.MustRegister(
		IntakeRequestsTotal,
		RateLimitedTotal,
		RateLimitKeys,
		RateLimitEvictTotal,
		StoreDuration,
		StoreErrorsTotal,
		NotifyErrorsTotal,
	)
}
