package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"datalens/internal/models"
	"datalens/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedDataset(t *testing.T, repo DatasetRepository, userID uuid.UUID, createdAt time.Time) *models.Dataset {
	t.Helper()
	ds := &models.Dataset{
		UserID:    userID,
		Name:      "sales.csv",
		FileType:  "csv",
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), ds))
	return ds
}

func TestDatasetCreateDefaults(t *testing.T) {
	repo := NewDatasetRepository(newTestDB(t))
	ds := seedDataset(t, repo, uuid.New(), time.Time{})

	assert.NotEqual(t, uuid.Nil, ds.ID)
	got, err := repo.GetByID(context.Background(), ds.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DatasetStatusProcessing, got.Status)
	assert.Nil(t, got.RowCount)
	assert.Empty(t, got.ColumnsInfo)
}

func TestDatasetGetByIDNotFound(t *testing.T) {
	repo := NewDatasetRepository(newTestDB(t))
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDatasetMarkReady(t *testing.T) {
	ctx := context.Background()
	repo := NewDatasetRepository(newTestDB(t))
	ds := seedDataset(t, repo, uuid.New(), time.Time{})

	info, err := models.ColumnsInfoFor([]string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, repo.MarkReady(ctx, ds.ID, info, 2))

	got, err := repo.GetByID(ctx, ds.ID)
	require.NoError(t, err)
	assert.True(t, got.IsReady())
	require.NotNil(t, got.RowCount)
	assert.Equal(t, 2, *got.RowCount)

	var cols map[string]string
	require.NoError(t, json.Unmarshal(got.ColumnsInfo, &cols))
	assert.Equal(t, map[string]string{"a": "string", "b": "string"}, cols)

	// Second run overwrites unconditionally.
	info, err = models.ColumnsInfoFor([]string{"x"})
	require.NoError(t, err)
	require.NoError(t, repo.MarkReady(ctx, ds.ID, info, 7))
	got, err = repo.GetByID(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, *got.RowCount)

	assert.ErrorIs(t, repo.MarkReady(ctx, uuid.New(), info, 1), ErrNotFound)
}

func TestDatasetListByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewDatasetRepository(newTestDB(t))
	owner := uuid.New()
	now := time.Now().UTC()

	older := seedDataset(t, repo, owner, now.Add(-2*time.Hour))
	newer := seedDataset(t, repo, owner, now.Add(-time.Hour))
	seedDataset(t, repo, uuid.New(), now)

	list, err := repo.ListByUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	_, err = repo.GetByIDForUser(ctx, newer.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := repo.GetByIDForUser(ctx, newer.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
}

func TestDatasetDeleteWithInsights(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	datasets := NewDatasetRepository(db)
	insights := NewInsightRepository(db)

	ds := seedDataset(t, datasets, uuid.New(), time.Time{})
	other := seedDataset(t, datasets, uuid.New(), time.Time{})
	for _, target := range []*models.Dataset{ds, other} {
		require.NoError(t, insights.Create(ctx, &models.Insight{
			DatasetID:   target.ID,
			InsightType: models.InsightTypeSummary,
			Title:       "Data Summary",
			Content:     "text",
		}))
	}

	require.NoError(t, datasets.DeleteWithInsights(ctx, ds.ID))

	_, err := datasets.GetByID(ctx, ds.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := insights.CountByDataset(ctx, ds.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = insights.CountByDataset(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, datasets.DeleteWithInsights(ctx, ds.ID), ErrNotFound)
}

func TestDatasetStaleQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewDatasetRepository(newTestDB(t))
	now := time.Now().UTC()

	stale := seedDataset(t, repo, uuid.New(), now.Add(-3*time.Hour))
	seedDataset(t, repo, uuid.New(), now.Add(-time.Minute))
	done := seedDataset(t, repo, uuid.New(), now.Add(-4*time.Hour))
	info, err := models.ColumnsInfoFor([]string{"a"})
	require.NoError(t, err)
	require.NoError(t, repo.MarkReady(ctx, done.ID, info, 1))

	cutoff := now.Add(-30 * time.Minute)
	count, err := repo.CountStale(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	list, err := repo.ListStale(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stale.ID, list[0].ID)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestInsightListByDatasetNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ds := seedDataset(t, NewDatasetRepository(db), uuid.New(), time.Time{})
	repo := NewInsightRepository(db)
	now := time.Now().UTC()
	userID := uuid.New()

	first := &models.Insight{DatasetID: ds.ID, UserID: &userID, InsightType: models.InsightTypeSummary, Title: "Data Summary", Content: "a", CreatedAt: now.Add(-time.Minute)}
	second := &models.Insight{DatasetID: ds.ID, InsightType: models.InsightTypeTrends, Title: "Key Trends", Content: "a", CreatedAt: now}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	list, err := repo.ListByDataset(ctx, ds.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Nil(t, list[0].UserID)
	require.NotNil(t, list[1].UserID)
	assert.Equal(t, userID, *list[1].UserID)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestInsightsKey(t *testing.T) {
	id := uuid.MustParse("6f1c1f3e-3c55-4c5b-9a57-2b1e7f0c9d11")
	assert.Equal(t, "datalens:insights:6f1c1f3e-3c55-4c5b-9a57-2b1e7f0c9d11", InsightsKey(id))
}
