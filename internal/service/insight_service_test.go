package service

import (
	"context"
	"testing"
	"time"

	"datalens/internal/models"
	"datalens/internal/repository"
	"datalens/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestInsightListUsesCache(t *testing.T) {
	ctx := context.Background()
	insights := &fakeInsights{}
	cache := newFakeCache()
	svc := NewInsightService(insights, cache, logger.Nop())

	ds := &models.Dataset{ID: uuid.New()}
	require.NoError(t, insights.Create(ctx, &models.Insight{DatasetID: ds.ID, InsightType: "summary", Title: "Data Summary", Content: "c"}))

	first, err := svc.List(ctx, ds)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.List(ctx, ds)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, insights.lists)

	require.NoError(t, cache.Delete(ctx, repository.InsightsKey(ds.ID)))
	_, err = svc.List(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, 2, insights.lists)
}

func TestInsightListEmptyIsNotNil(t *testing.T) {
	svc := NewInsightService(&fakeInsights{}, nil, logger.Nop())
	list, err := svc.List(context.Background(), &models.Dataset{ID: uuid.New()})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestInsightExport(t *testing.T) {
	ctx := context.Background()
	insights := &fakeInsights{}
	svc := NewInsightService(insights, nil, logger.Nop())
	svc.(*insightService).now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	ds := &models.Dataset{ID: uuid.MustParse("11111111-2222-4333-8444-555555555555"), Name: "a.csv", FileType: "csv"}
	for _, c := range models.InsightCategories {
		require.NoError(t, insights.Create(ctx, &models.Insight{DatasetID: ds.ID, InsightType: c.Type, Title: c.Title, Content: "c"}))
	}

	report, err := svc.Export(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, "insights_11111111_20260102_030405.xlsx", report.FileName)

	f, err := excelize.OpenReader(report.Content)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Insights")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}
