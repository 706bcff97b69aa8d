package repository

import (
	"context"

	"datalens/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InsightRepository interface {
	Create(ctx context.Context, insight *models.Insight) error
	ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]models.Insight, error)
	CountByDataset(ctx context.Context, datasetID uuid.UUID) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type insightRepository struct {
	db *gorm.DB
}

func NewInsightRepository(db *gorm.DB) InsightRepository {
	return &insightRepository{db: db}
}

func (r *insightRepository) Create(ctx context.Context, insight *models.Insight) error {
	return r.db.WithContext(ctx).Create(insight).Error
}

func (r *insightRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]models.Insight, error) {
	var insights []models.Insight
	err := r.db.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("created_at DESC").
		Find(&insights).
		Error
	return insights, err
}

func (r *insightRepository) CountByDataset(ctx context.Context, datasetID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Insight{}).
		Where("dataset_id = ?", datasetID).
		Count(&count).
		Error
	return count, err
}

func (r *insightRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Insight{}).
		Count(&count).
		Error
	return count, err
}
