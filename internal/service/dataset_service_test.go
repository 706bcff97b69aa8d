package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"datalens/internal/apierr"
	"datalens/internal/ingest"
	"datalens/internal/models"
	"datalens/internal/repository"
	"datalens/pkg/logger"
	"datalens/pkg/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filesBase = "http://files.local"

// storeFiles serves downloads straight out of a MemoryStore.
type storeFiles struct {
	store *storage.MemoryStore
}

func (f storeFiles) Fetch(_ context.Context, url string) ([]byte, error) {
	key := strings.TrimPrefix(url, filesBase+"/"+f.store.Bucket()+"/")
	b, ok := f.store.Get(key)
	if !ok {
		return nil, errors.New("no such object")
	}
	return b, nil
}

type datasetFixture struct {
	svc      DatasetService
	datasets *fakeDatasets
	insights *fakeInsights
	cache    *fakeCache
	store    *storage.MemoryStore
	llm      *fakeLLM
}

func newDatasetFixture(t *testing.T) *datasetFixture {
	t.Helper()
	f := &datasetFixture{
		datasets: newFakeDatasets(),
		insights: &fakeInsights{},
		cache:    newFakeCache(),
		store:    storage.NewMemoryStore("datasets", filesBase),
		llm:      &fakeLLM{text: "insight"},
	}
	ingestSvc := NewIngestService(f.datasets, f.insights, f.cache, storeFiles{f.store}, f.llm, IngestConfig{
		Parse: ingest.DefaultOptions(),
	}, logger.Nop())
	svc := NewDatasetService(f.datasets, f.cache, f.store, ingestSvc, 1<<20, logger.Nop())
	svc.(*datasetService).now = func() time.Time { return time.UnixMilli(1718000000000) }
	f.svc = svc
	return f
}

func TestUploadStoresAndProcesses(t *testing.T) {
	f := newDatasetFixture(t)
	user := uuid.New()

	out, err := f.svc.Upload(context.Background(), user, UploadInput{
		FileName: "Sales.CSV",
		Content:  []byte("region,total\nnorth,10\nsouth,12\n"),
	})
	require.NoError(t, err)
	require.NoError(t, out.ProcessErr)

	key := *out.Dataset.StorageKey
	assert.True(t, strings.HasPrefix(key, user.String()+"/1718000000000-"))
	assert.True(t, strings.HasSuffix(key, ".csv"))
	_, ok := f.store.Get(key)
	assert.True(t, ok)

	ds := out.Dataset
	assert.Equal(t, "Sales.CSV", ds.Name)
	assert.Equal(t, "csv", ds.FileType)
	assert.Equal(t, user, ds.UserID)
	require.NotNil(t, ds.FileURL)
	assert.Equal(t, filesBase+"/datasets/"+key, *ds.FileURL)
	require.NotNil(t, ds.FileSize)
	assert.Equal(t, int64(31), *ds.FileSize)
	assert.Equal(t, models.DatasetStatusReady, ds.Status)
	require.NotNil(t, out.Process)
	assert.Len(t, out.Process.Insights, 4)
}

func TestUploadReportsProcessingFailure(t *testing.T) {
	f := newDatasetFixture(t)
	f.llm.err = errors.New("quota exceeded")

	out, err := f.svc.Upload(context.Background(), uuid.New(), UploadInput{
		FileName: "x.json",
		Name:     "My data",
		Content:  []byte(`[{"k":1}]`),
	})
	require.NoError(t, err)
	require.Error(t, out.ProcessErr)
	assert.Equal(t, apierr.CodeModel, apierr.CodeOf(out.ProcessErr))
	assert.Equal(t, "My data", out.Dataset.Name)
	assert.Equal(t, models.DatasetStatusReady, out.Dataset.Status)
}

func TestUploadRejections(t *testing.T) {
	f := newDatasetFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, uuid.New(), UploadInput{FileName: "notes.txt", Content: []byte("x")})
	assert.Equal(t, apierr.CodeValidation, apierr.CodeOf(err))

	_, err = f.svc.Upload(ctx, uuid.New(), UploadInput{FileName: "a.csv"})
	assert.Equal(t, apierr.CodeValidation, apierr.CodeOf(err))

	_, err = f.svc.Upload(ctx, uuid.New(), UploadInput{FileName: "a.csv", Content: make([]byte, 2<<20)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, apierr.From(err).Status)

	assert.Zero(t, f.datasets.created)
}

func TestGetIsOwnerScoped(t *testing.T) {
	f := newDatasetFixture(t)
	owner := uuid.New()
	ds := &models.Dataset{ID: uuid.New(), UserID: owner, Name: "a", FileType: "csv"}
	require.NoError(t, f.datasets.Create(context.Background(), ds))

	got, err := f.svc.Get(context.Background(), owner, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, ds.ID, got.ID)

	_, err = f.svc.Get(context.Background(), uuid.New(), ds.ID)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

func TestDeleteRemovesEverything(t *testing.T) {
	f := newDatasetFixture(t)
	ctx := context.Background()
	user := uuid.New()

	out, err := f.svc.Upload(ctx, user, UploadInput{FileName: "a.csv", Content: []byte("a\n1\n")})
	require.NoError(t, err)
	key := *out.Dataset.StorageKey

	require.NoError(t, f.svc.Delete(ctx, user, out.Dataset.ID))

	_, err = f.datasets.GetByID(ctx, out.Dataset.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, ok := f.store.Get(key)
	assert.False(t, ok)
	assert.Contains(t, f.cache.deleted, repository.InsightsKey(out.Dataset.ID))

	err = f.svc.Delete(ctx, user, out.Dataset.ID)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

func TestDeleteToleratesMissingObject(t *testing.T) {
	f := newDatasetFixture(t)
	ctx := context.Background()
	user := uuid.New()
	key := "gone/1.csv"
	ds := &models.Dataset{ID: uuid.New(), UserID: user, Name: "a", FileType: "csv", StorageKey: &key}
	require.NoError(t, f.datasets.Create(ctx, ds))

	assert.NoError(t, f.svc.Delete(ctx, user, ds.ID))
}

func TestReprocessAppendsInsights(t *testing.T) {
	f := newDatasetFixture(t)
	ctx := context.Background()
	user := uuid.New()

	out, err := f.svc.Upload(ctx, user, UploadInput{FileName: "a.csv", Content: []byte("a,b\n1,2\n")})
	require.NoError(t, err)

	res, err := f.svc.Reprocess(ctx, user, out.Dataset.ID)
	require.NoError(t, err)
	assert.Len(t, res.Insights, 4)
	assert.Len(t, f.insights.rows, 8)

	_, err = f.svc.Reprocess(ctx, uuid.New(), out.Dataset.ID)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

func TestReprocessWithoutFile(t *testing.T) {
	f := newDatasetFixture(t)
	user := uuid.New()
	ds := &models.Dataset{ID: uuid.New(), UserID: user, Name: "demo", FileType: "demo"}
	require.NoError(t, f.datasets.Create(context.Background(), ds))

	_, err := f.svc.Reprocess(context.Background(), user, ds.ID)
	assert.Equal(t, apierr.CodeValidation, apierr.CodeOf(err))
}
