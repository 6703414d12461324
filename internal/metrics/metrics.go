// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package metrics exposes Prometheus instrumentation for Marketscope.
//
// Instrumented surfaces:
//   - Provider request latency, outcomes and retries
//   - Circuit breaker state per provider
//   - Response cache efficiency
//   - Analysis run duration and completeness
//   - API endpoint latency
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider Metrics
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketscope_provider_request_duration_seconds",
			Help:    "Duration of upstream provider requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscope_provider_requests_total",
			Help: "Total number of upstream provider requests by outcome",
		},
		[]string{"provider", "outcome"}, // "success", "error", "rate_limited", "circuit_open", "timeout"
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscope_provider_retries_total",
			Help: "Total number of retry attempts against upstream providers",
		},
		[]string{"provider"},
	)

	ProviderCooldowns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscope_provider_cooldowns_total",
			Help: "Total number of forced cooldowns after HTTP 429 responses",
		},
		[]string{"provider"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketscope_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscope_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"provider", "from", "to"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscope_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"category"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscope_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"category"},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketscope_cache_evictions_total",
			Help: "Total number of cache entries evicted by LRU pressure or TTL expiry",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketscope_cache_entries",
			Help: "Current number of entries in the response cache",
		},
	)

	// Orchestration Metrics
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketscope_analysis_duration_seconds",
			Help:    "Duration of complete multi-provider analysis runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 90, 120},
		},
	)

	AnalysisRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscope_analysis_runs_total",
			Help: "Total number of analysis runs by completeness",
		},
		[]string{"completeness"}, // "complete", "partial", "failed"
	)

	AnalysisConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketscope_analysis_confidence",
			Help:    "Confidence scores of completed analysis runs",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketscope_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscope_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)
)

// RecordProviderRequest records one upstream request with its outcome.
func RecordProviderRequest(provider, outcome string, duration time.Duration) {
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordCircuitBreakerTransition records a breaker state change and updates
// the state gauge.
func RecordCircuitBreakerTransition(provider, from, to string, state float64) {
	CircuitBreakerTransitions.WithLabelValues(provider, from, to).Inc()
	CircuitBreakerState.WithLabelValues(provider).Set(state)
}

// RecordAPIRequest records an API request observation.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	APIRequests.WithLabelValues(method, endpoint, code).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint, code).Observe(duration.Seconds())
}
