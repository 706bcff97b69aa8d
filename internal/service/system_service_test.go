package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"datalens/internal/models"
	"datalens/internal/repository"
	"datalens/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemStats(t *testing.T) {
	ctx := context.Background()
	datasets := newFakeDatasets(&models.Dataset{ID: uuid.New()}, &models.Dataset{ID: uuid.New()})
	insights := &fakeInsights{}
	require.NoError(t, insights.Create(ctx, &models.Insight{DatasetID: uuid.New()}))
	cache := newFakeCache()
	require.NoError(t, cache.Set(ctx, repository.StaleDatasetsKey, 3, 0))

	svc := NewSystemService(datasets, insights, cache, func(context.Context) (map[string]string, error) {
		return map[string]string{"redis_version": "7.2"}, nil
	}, 30*time.Minute, logger.Nop())

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Datasets)
	assert.Equal(t, int64(1), stats.Insights)
	assert.Equal(t, int64(3), stats.StaleDatasets)
	assert.Equal(t, "7.2", stats.Redis["redis_version"])
}

func TestSystemStatsToleratesRedisFailure(t *testing.T) {
	svc := NewSystemService(newFakeDatasets(), &fakeInsights{}, nil, func(context.Context) (map[string]string, error) {
		return nil, errors.New("down")
	}, time.Minute, logger.Nop())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stats.Redis)
	assert.Zero(t, stats.StaleDatasets)
}
