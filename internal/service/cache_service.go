package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

const progressKeyPrefix = "matrix:progress:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService caches participant progress projections and records cache metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// GetProgress returns a cached projection and whether it was found.
func (s *CacheService) GetProgress(ctx context.Context, participantID string) (*models.ParticipantProgress, bool) {
	if !s.Enabled() {
		return nil, false
	}
	var progress models.ParticipantProgress
	start := time.Now()
	err := s.repo.Get(ctx, progressKey(participantID), &progress)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("participant_id", participantID), zap.Error(err))
		}
		return nil, false
	}
	s.metrics.RecordCacheOperation(true, duration)
	return &progress, true
}

// SetProgress stores a projection with the default TTL. Failures are logged only.
func (s *CacheService) SetProgress(ctx context.Context, progress *models.ParticipantProgress) {
	if !s.Enabled() || progress == nil {
		return
	}
	start := time.Now()
	err := s.repo.Set(ctx, progressKey(progress.ParticipantID), progress, s.defaultTTL)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("participant_id", progress.ParticipantID), zap.Error(err))
	}
}

// InvalidateProgress drops the projections of the given participants.
func (s *CacheService) InvalidateProgress(ctx context.Context, participantIDs ...string) {
	if !s.Enabled() || len(participantIDs) == 0 {
		return
	}
	keys := make([]string, len(participantIDs))
	for i, id := range participantIDs {
		keys[i] = progressKey(id)
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidate failed", zap.Int("keys", len(keys)), zap.Error(err))
	}
}

// InvalidateAllProgress drops every cached projection, used after bulk queue changes.
func (s *CacheService) InvalidateAllProgress(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, progressKeyPrefix+"*"); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", progressKeyPrefix+"*"), zap.Error(err))
	}
}

func progressKey(participantID string) string {
	return fmt.Sprintf("%s%s", progressKeyPrefix, participantID)
}
