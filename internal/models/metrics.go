package models

import "time"

// SystemMetrics is a point-in-time summary of service and engine counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DonationsConfirmed       uint64    `json:"donations_confirmed"`
	LevelsCompleted          uint64    `json:"levels_completed"`
	DonationsGenerated       uint64    `json:"donations_generated"`
	SideEffectsSkipped       uint64    `json:"side_effects_skipped"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
