package luarmor

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the client's request
// lifecycle and reliability layers. It is safe for concurrent use, and all
// record methods are nil-safe so instrumentation can be optional.
type MetricsCollector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState prometheus.Gauge
	cooldownsActive     prometheus.Gauge

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	staleServed *prometheus.CounterVec

	dedupHits *prometheus.CounterVec

	queueDepth  prometheus.Gauge
	queueActive prometheus.Gauge

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer, letting tests isolate their metrics.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "luarmor_requests_total",
				Help: "Total number of provider HTTP attempts made",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "luarmor_request_duration_seconds",
				Help:    "Duration of provider HTTP attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "luarmor_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint"},
		),
		circuitBreakerState: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "luarmor_circuit_breaker_state",
				Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
		cooldownsActive: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "luarmor_cooldowns_active",
				Help: "Number of rate-limit keys currently cooling down",
			},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "luarmor_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"tier"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "luarmor_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"tier"},
		),
		staleServed: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "luarmor_cache_stale_served_total",
				Help: "Total number of stale cache entries served on upstream failure",
			},
			[]string{"operation"},
		),
		dedupHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "luarmor_deduplication_hits_total",
				Help: "Total number of calls coalesced into an in-flight request",
			},
			[]string{"operation"},
		),
		queueDepth: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "luarmor_queue_depth",
				Help: "Number of requests waiting for a concurrency slot",
			},
		),
		queueActive: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "luarmor_queue_active",
				Help: "Number of requests currently active against the provider",
			},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "luarmor_errors_total",
				Help: "Total number of classified errors",
			},
			[]string{"type", "endpoint"},
		),
	}
}

// RecordRequest records one attempt's status and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	mc.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRetry increments the retry counter.
func (mc *MetricsCollector) RecordRetry(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordCircuitBreakerState sets the breaker state gauge.
func (mc *MetricsCollector) RecordCircuitBreakerState(state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitBreakerState.Set(float64(state))
}

// RecordCooldownsActive sets the active cooldown gauge.
func (mc *MetricsCollector) RecordCooldownsActive(n int) {
	if mc == nil {
		return
	}
	mc.cooldownsActive.Set(float64(n))
}

// RecordCacheHit increments the cache hit counter for a tier.
func (mc *MetricsCollector) RecordCacheHit(tier string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss increments the cache miss counter for a tier.
func (mc *MetricsCollector) RecordCacheMiss(tier string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(tier).Inc()
}

// RecordStaleServed counts a degraded-mode stale response.
func (mc *MetricsCollector) RecordStaleServed(operation string) {
	if mc == nil {
		return
	}
	mc.staleServed.WithLabelValues(operation).Inc()
}

// RecordDedupHit counts a coalesced caller.
func (mc *MetricsCollector) RecordDedupHit(operation string) {
	if mc == nil {
		return
	}
	mc.dedupHits.WithLabelValues(operation).Inc()
}

// RecordQueue sets the queue gauges.
func (mc *MetricsCollector) RecordQueue(depth, active int) {
	if mc == nil {
		return
	}
	mc.queueDepth.Set(float64(depth))
	mc.queueActive.Set(float64(active))
}

// RecordError increments the error counter by type.
func (mc *MetricsCollector) RecordError(errorType, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(errorType, endpoint).Inc()
}
