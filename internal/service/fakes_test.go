package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"datalens/internal/clients"
	"datalens/internal/models"
	"datalens/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type fakeDatasets struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]*models.Dataset
	readyErr error
	created  int
}

func newFakeDatasets(seed ...*models.Dataset) *fakeDatasets {
	f := &fakeDatasets{rows: map[uuid.UUID]*models.Dataset{}}
	for _, d := range seed {
		f.rows[d.ID] = d
	}
	return f
}

func (f *fakeDatasets) Create(_ context.Context, d *models.Dataset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	f.created++
	cp := *d
	f.rows[d.ID] = &cp
	return nil
}

func (f *fakeDatasets) GetByID(_ context.Context, id uuid.UUID) (*models.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDatasets) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Dataset, error) {
	d, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

func (f *fakeDatasets) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Dataset
	for _, d := range f.rows {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDatasets) MarkReady(_ context.Context, id uuid.UUID, info datatypes.JSON, rowCount int) error {
	if f.readyErr != nil {
		return f.readyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.ColumnsInfo = info
	d.RowCount = &rowCount
	d.Status = models.DatasetStatusReady
	return nil
}

func (f *fakeDatasets) DeleteWithInsights(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeDatasets) CountStale(context.Context, time.Time) (int64, error) { return 0, nil }
func (f *fakeDatasets) ListStale(context.Context, time.Time, int) ([]models.Dataset, error) {
	return nil, nil
}
func (f *fakeDatasets) Count(context.Context) (int64, error) { return int64(len(f.rows)), nil }

type fakeInsights struct {
	mu      sync.Mutex
	rows    []models.Insight
	failAt  int // 1-based insert that fails; 0 never fails
	inserts int
	lists   int
}

func (f *fakeInsights) Create(_ context.Context, in *models.Insight) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.failAt > 0 && f.inserts == f.failAt {
		return errors.New("connection reset")
	}
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	f.rows = append(f.rows, *in)
	return nil
}

func (f *fakeInsights) ListByDataset(_ context.Context, id uuid.UUID) ([]models.Insight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var out []models.Insight
	for _, in := range f.rows {
		if in.DatasetID == id {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeInsights) CountByDataset(ctx context.Context, id uuid.UUID) (int64, error) {
	rows, _ := f.ListByDataset(ctx, id)
	return int64(len(rows)), nil
}

func (f *fakeInsights) Count(context.Context) (int64, error) { return int64(len(f.rows)), nil }

type fakeCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache { return &fakeCache{values: map[string][]byte{}} }

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.values[key]), nil
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = raw
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *fakeCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	raw, ok := c.values[key]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, key, value, ttl)
}

type fakeFiles struct {
	body  map[string][]byte
	err   error
	calls int
}

func (f *fakeFiles) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.body[url]
	if !ok {
		return nil, &clients.StatusError{StatusCode: 404, Body: "not found"}
	}
	return b, nil
}

type fakeLLM struct {
	text     string
	err      error
	requests []clients.CompletionRequest
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(_ context.Context, req clients.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}
