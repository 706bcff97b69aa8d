package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"datalens/internal/apierr"
	"datalens/internal/models"
	"datalens/internal/repository"
	"datalens/internal/utils"
	"datalens/pkg/logger"
)

const insightsCacheTTL = 10 * time.Minute

type Report struct {
	FileName string
	Content  *bytes.Buffer
}

type InsightService interface {
	List(ctx context.Context, dataset *models.Dataset) ([]models.Insight, error)
	Export(ctx context.Context, dataset *models.Dataset) (*Report, error)
}

type insightService struct {
	insights repository.InsightRepository
	cache    repository.CacheRepository
	log      *logger.Logger
	now      func() time.Time
}

func NewInsightService(insights repository.InsightRepository, cache repository.CacheRepository, log *logger.Logger) InsightService {
	return &insightService{
		insights: insights,
		cache:    cache,
		log:      log.With("service", "InsightService"),
		now:      time.Now,
	}
}

// List returns the dataset's insights newest first, served from cache when present.
func (s *insightService) List(ctx context.Context, dataset *models.Dataset) ([]models.Insight, error) {
	key := repository.InsightsKey(dataset.ID)
	if s.cache != nil {
		var cached []models.Insight
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn("insight cache read failed", "dataset_id", dataset.ID, "error", err)
		} else if found {
			return cached, nil
		}
	}

	insights, err := s.insights.ListByDataset(ctx, dataset.ID)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("list insights: %w", err))
	}
	if insights == nil {
		insights = []models.Insight{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, insights, insightsCacheTTL); err != nil {
			s.log.Warn("insight cache write failed", "dataset_id", dataset.ID, "error", err)
		}
	}
	return insights, nil
}

func (s *insightService) Export(ctx context.Context, dataset *models.Dataset) (*Report, error) {
	insights, err := s.List(ctx, dataset)
	if err != nil {
		return nil, err
	}
	now := s.now()
	buf, err := utils.BuildInsightReport(dataset, insights, now)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	return &Report{FileName: utils.ReportFileName(dataset, now), Content: buf}, nil
}
