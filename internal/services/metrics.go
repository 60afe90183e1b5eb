// Package services – domain metrics
//
// Prometheus instruments for the generation path. HTTP-level metrics
// (request counts, latencies per route) live in the middleware layer; the
// counters here track mediation behavior that the HTTP layer cannot see:
// cache effectiveness and provider retry pressure.
package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "generation_cache_hits_total",
		Help: "Generation requests answered from the in-memory response cache.",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "generation_cache_misses_total",
		Help: "Generation requests that required a provider call.",
	})

	providerRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "generation_provider_retries_total",
		Help: "Provider calls re-attempted after a rate-limit-class failure.",
	})

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "End-to-end duration of generation requests, including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode", "outcome"})
)
