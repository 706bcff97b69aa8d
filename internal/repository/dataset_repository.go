package repository

import (
	"context"
	"errors"
	"time"

	"datalens/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

type DatasetRepository interface {
	Create(ctx context.Context, dataset *models.Dataset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Dataset, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Dataset, error)
	MarkReady(ctx context.Context, id uuid.UUID, columnsInfo datatypes.JSON, rowCount int) error
	DeleteWithInsights(ctx context.Context, id uuid.UUID) error
	CountStale(ctx context.Context, olderThan time.Time) (int64, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]models.Dataset, error)
	Count(ctx context.Context) (int64, error)
}

type datasetRepository struct {
	db *gorm.DB
}

func NewDatasetRepository(db *gorm.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

func (r *datasetRepository) Create(ctx context.Context, dataset *models.Dataset) error {
	return r.db.WithContext(ctx).Create(dataset).Error
}

func (r *datasetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	var dataset models.Dataset
	err := r.db.WithContext(ctx).First(&dataset, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

func (r *datasetRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Dataset, error) {
	var dataset models.Dataset
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&dataset).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

func (r *datasetRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Dataset, error) {
	var datasets []models.Dataset
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&datasets).
		Error
	return datasets, err
}

// MarkReady writes the inferred schema, the row count and the ready status in one UPDATE.
// The write is unconditional: re-processing overwrites the previous values.
func (r *datasetRepository) MarkReady(ctx context.Context, id uuid.UUID, columnsInfo datatypes.JSON, rowCount int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Dataset{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"columns_info": columnsInfo,
			"row_count":    rowCount,
			"status":       models.DatasetStatusReady,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *datasetRepository) DeleteWithInsights(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dataset_id = ?", id).Delete(&models.Insight{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Dataset{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *datasetRepository) CountStale(ctx context.Context, olderThan time.Time) (int64, error) {
	var count int64
	err := r.staleQuery(ctx, olderThan).Count(&count).Error
	return count, err
}

func (r *datasetRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]models.Dataset, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var datasets []models.Dataset
	err := r.staleQuery(ctx, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&datasets).
		Error
	return datasets, err
}

func (r *datasetRepository) staleQuery(ctx context.Context, olderThan time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Dataset{}).
		Where("status = ? AND created_at < ?", models.DatasetStatusProcessing, olderThan)
}

func (r *datasetRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Dataset{}).
		Count(&count).
		Error
	return count, err
}
