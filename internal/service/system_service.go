package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"datalens/internal/repository"
	"datalens/pkg/logger"
)

type SystemStats struct {
	Datasets      int64             `json:"datasets"`
	Insights      int64             `json:"insights"`
	StaleDatasets int64             `json:"stale_datasets"`
	Redis         map[string]string `json:"redis,omitempty"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// RedisStatsFunc reports cache server stats; nil disables the section.
type RedisStatsFunc func(ctx context.Context) (map[string]string, error)

type SystemService interface {
	Stats(ctx context.Context) (*SystemStats, error)
}

type systemService struct {
	datasets   repository.DatasetRepository
	insights   repository.InsightRepository
	cache      repository.CacheRepository
	redisStats RedisStatsFunc
	staleAfter time.Duration
	log        *logger.Logger
}

func NewSystemService(
	datasets repository.DatasetRepository,
	insights repository.InsightRepository,
	cache repository.CacheRepository,
	redisStats RedisStatsFunc,
	staleAfter time.Duration,
	log *logger.Logger,
) SystemService {
	return &systemService{
		datasets:   datasets,
		insights:   insights,
		cache:      cache,
		redisStats: redisStats,
		staleAfter: staleAfter,
		log:        log.With("service", "SystemService"),
	}
}

func (s *systemService) Stats(ctx context.Context) (*SystemStats, error) {
	stats := &SystemStats{GeneratedAt: time.Now().UTC()}

	var err error
	if stats.Datasets, err = s.datasets.Count(ctx); err != nil {
		return nil, fmt.Errorf("count datasets: %w", err)
	}
	if stats.Insights, err = s.insights.Count(ctx); err != nil {
		return nil, fmt.Errorf("count insights: %w", err)
	}
	stats.StaleDatasets = s.staleCount(ctx)

	if s.redisStats != nil {
		redisStats, err := s.redisStats(ctx)
		if err != nil {
			s.log.Warn("redis stats unavailable", "error", err)
		} else {
			stats.Redis = redisStats
		}
	}
	return stats, nil
}

// staleCount prefers the figure published by the monitor and falls back to a query.
func (s *systemService) staleCount(ctx context.Context) int64 {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, repository.StaleDatasetsKey); err == nil && raw != "" {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return n
			}
		}
	}
	n, err := s.datasets.CountStale(ctx, time.Now().UTC().Add(-s.staleAfter))
	if err != nil {
		s.log.Warn("stale dataset count failed", "error", err)
		return 0
	}
	return n
}
