// Package services – resolver metrics
//
// Prometheus collectors for storefront timer resolution. Outcomes are a small
// fixed set so the label stays bounded:
//
//   - active:      a timer was returned and its impression counted
//   - missing:     shop or product id was empty, no store access
//   - no_match:    no live timer targets the product
//   - vanished:    the candidate disappeared before its impression was counted
//   - store_error: a query failed or timed out
//   - throttled:   the rate limiter answered before the resolver ran
package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeActive     = "active"
	outcomeMissing    = "missing"
	outcomeNoMatch    = "no_match"
	outcomeVanished   = "vanished"
	outcomeStoreError = "store_error"
	outcomeThrottled  = "throttled"
)

var (
	// resolutions counts resolver calls by outcome.
	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timer_resolutions_total",
			Help: "Storefront timer resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	// resolveLat records time spent in the store per resolution.
	resolveLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "timer_resolution_duration_seconds",
			Help:    "Duration of storefront timer resolutions in seconds.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// impressions counts impressions recorded across all shops.
	impressions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timer_impressions_total",
			Help: "Total number of timer impressions recorded.",
		},
	)
)

func init() {
	prometheus.MustRegister(resolutions, resolveLat, impressions)
}

// ObserveThrottled counts a storefront lookup the rate limiter rejected. The
// resolver records every other outcome itself.
func ObserveThrottled() {
	resolutions.WithLabelValues(outcomeThrottled).Inc()
}
