package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/donation-matrix-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	operationDuration  *prometheus.HistogramVec
	donationsConfirmed prometheus.Counter
	levelsCompleted    *prometheus.CounterVec
	donationsGenerated *prometheus.CounterVec
	sideEffectsSkipped *prometheus.CounterVec
	advancements       *prometheus.CounterVec
	bootstrapDonations *prometheus.CounterVec
	eventsDropped      prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	confirmedCount       uint64
	completedCount       uint64
	generatedCount       uint64
	skippedCount         uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matrix_operation_duration_seconds",
		Help:    "Duration of matrix engine transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	donationsConfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matrix_donations_confirmed_total",
		Help: "Donations confirmed through the engine",
	})

	levelsCompleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matrix_levels_completed_total",
		Help: "Slots that reached their donation quota",
	}, []string{"level"})

	donationsGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matrix_donations_generated_total",
		Help: "Donations created by the engine",
	}, []string{"type"})

	sideEffectsSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matrix_side_effects_skipped_total",
		Help: "Completion side effects skipped and left for reconciliation",
	}, []string{"step"})

	advancements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matrix_participants_advanced_total",
		Help: "Participant level advancements",
	}, []string{"to_level"})

	bootstrapDonations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matrix_bootstrap_pairs_total",
		Help: "Donor/receiver pairs handled by cycle bootstrap",
	}, []string{"outcome"})

	eventsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matrix_events_dropped_total",
		Help: "Domain events that could not be handed to the dispatcher",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		operationDuration, donationsConfirmed, levelsCompleted, donationsGenerated, sideEffectsSkipped, advancements,
		bootstrapDonations, eventsDropped, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		operationDuration:  operationDuration,
		donationsConfirmed: donationsConfirmed,
		levelsCompleted:    levelsCompleted,
		donationsGenerated: donationsGenerated,
		sideEffectsSkipped: sideEffectsSkipped,
		advancements:       advancements,
		bootstrapDonations: bootstrapDonations,
		eventsDropped:      eventsDropped,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveMatrixOperation times one engine transaction.
func (m *MetricsService) ObserveMatrixOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operationDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordMatrixEffects accounts for what a committed engine transaction did.
func (m *MetricsService) RecordMatrixEffects(confirmed int, completedLevels []int, generated []models.DonationType, skippedSteps []string, advancedTo []int) {
	if m == nil {
		return
	}
	if confirmed > 0 {
		m.donationsConfirmed.Add(float64(confirmed))
		atomic.AddUint64(&m.confirmedCount, uint64(confirmed))
	}
	for _, level := range completedLevels {
		m.levelsCompleted.WithLabelValues(fmt.Sprintf("%d", level)).Inc()
	}
	atomic.AddUint64(&m.completedCount, uint64(len(completedLevels)))
	for _, t := range generated {
		m.donationsGenerated.WithLabelValues(string(t)).Inc()
	}
	atomic.AddUint64(&m.generatedCount, uint64(len(generated)))
	for _, step := range skippedSteps {
		m.sideEffectsSkipped.WithLabelValues(step).Inc()
	}
	atomic.AddUint64(&m.skippedCount, uint64(len(skippedSteps)))
	for _, level := range advancedTo {
		m.advancements.WithLabelValues(fmt.Sprintf("%d", level)).Inc()
	}
}

// RecordBootstrap counts created and skipped bootstrap pairs.
func (m *MetricsService) RecordBootstrap(created, skipped int) {
	if m == nil {
		return
	}
	m.bootstrapDonations.WithLabelValues("created").Add(float64(created))
	m.bootstrapDonations.WithLabelValues("skipped_existing").Add(float64(skipped))
}

// RecordEventsDropped counts events lost before reaching the dispatcher.
func (m *MetricsService) RecordEventsDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsDropped.Add(float64(n))
}

// Snapshot returns aggregated metrics suitable for the admin summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DonationsConfirmed:       atomic.LoadUint64(&m.confirmedCount),
		LevelsCompleted:          atomic.LoadUint64(&m.completedCount),
		DonationsGenerated:       atomic.LoadUint64(&m.generatedCount),
		SideEffectsSkipped:       atomic.LoadUint64(&m.skippedCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
