package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"datalens/internal/apierr"
	"datalens/internal/ingest"
	"datalens/internal/models"
	"datalens/internal/repository"
	"datalens/pkg/logger"
	"datalens/pkg/storage"

	"github.com/google/uuid"
)

type UploadInput struct {
	FileName    string
	Name        string
	Description *string
	Content     []byte
}

// UploadResult reports the stored dataset and the outcome of its first pipeline run.
// ProcessErr is set when the upload succeeded but processing did not.
type UploadResult struct {
	Dataset    *models.Dataset
	Process    *ProcessResult
	ProcessErr error
}

type DatasetService interface {
	Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*UploadResult, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Dataset, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Dataset, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Reprocess(ctx context.Context, userID, id uuid.UUID) (*ProcessResult, error)
}

type datasetService struct {
	datasets     repository.DatasetRepository
	cache        repository.CacheRepository
	store        storage.BlobStore
	ingest       IngestService
	maxFileBytes int64
	log          *logger.Logger
	now          func() time.Time
}

func NewDatasetService(
	datasets repository.DatasetRepository,
	cache repository.CacheRepository,
	store storage.BlobStore,
	ingestService IngestService,
	maxFileBytes int64,
	log *logger.Logger,
) DatasetService {
	return &datasetService{
		datasets:     datasets,
		cache:        cache,
		store:        store,
		ingest:       ingestService,
		maxFileBytes: maxFileBytes,
		log:          log.With("service", "DatasetService"),
		now:          time.Now,
	}
}

func (s *datasetService) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*UploadResult, error) {
	fileType := ingest.NormalizeFileType(path.Ext(in.FileName))
	if !ingest.IsSupported(fileType) {
		return nil, apierr.Validation(fmt.Errorf("unsupported file extension %q, expected one of %s",
			path.Ext(in.FileName), strings.Join(ingest.SupportedTypes(), ", ")))
	}
	if len(in.Content) == 0 {
		return nil, apierr.Validation(errors.New("file is empty"))
	}
	if s.maxFileBytes > 0 && int64(len(in.Content)) > s.maxFileBytes {
		return nil, apierr.PayloadTooLarge(fmt.Errorf("file exceeds %d bytes", s.maxFileBytes))
	}

	key := storage.ObjectKey(userID, in.FileName, s.now())
	if err := s.store.Put(ctx, key, in.Content, storage.ContentTypeFor(fileType)); err != nil {
		s.log.Error("upload failed", "key", key, "error", err)
		return nil, apierr.Storage(fmt.Errorf("store file: %w", err))
	}
	fileURL := s.store.PublicURL(key)

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = in.FileName
	}
	size := int64(len(in.Content))
	dataset := &models.Dataset{
		UserID:      userID,
		Name:        name,
		Description: in.Description,
		FileType:    fileType,
		FileSize:    &size,
		FileURL:     &fileURL,
		StorageKey:  &key,
		Status:      models.DatasetStatusProcessing,
	}
	if err := s.datasets.Create(ctx, dataset); err != nil {
		s.log.Error("create dataset failed", "error", err)
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.log.Warn("orphaned upload", "key", key, "error", delErr)
		}
		return nil, apierr.Persistence(fmt.Errorf("create dataset: %w", err))
	}
	s.log.Info("dataset uploaded", "dataset_id", dataset.ID, "key", key, "bytes", size)

	out := &UploadResult{Dataset: dataset}
	out.Process, out.ProcessErr = s.ingest.Process(ctx, ProcessRequest{
		DatasetID: dataset.ID.String(),
		FileURL:   fileURL,
		FileType:  fileType,
	}, Caller{UserID: &userID})

	if fresh, err := s.datasets.GetByID(ctx, dataset.ID); err == nil {
		out.Dataset = fresh
	}
	return out, nil
}

func (s *datasetService) List(ctx context.Context, userID uuid.UUID) ([]models.Dataset, error) {
	datasets, err := s.datasets.ListByUser(ctx, userID)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("list datasets: %w", err))
	}
	return datasets, nil
}

func (s *datasetService) Get(ctx context.Context, userID, id uuid.UUID) (*models.Dataset, error) {
	dataset, err := s.datasets.GetByIDForUser(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierr.NotFound(fmt.Errorf("dataset %s not found", id))
	}
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("load dataset: %w", err))
	}
	return dataset, nil
}

// Delete removes the dataset, its insights and the stored file. A failure to delete
// the stored file is logged and does not fail the request.
func (s *datasetService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	dataset, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.datasets.DeleteWithInsights(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apierr.NotFound(fmt.Errorf("dataset %s not found", id))
		}
		return apierr.Persistence(fmt.Errorf("delete dataset: %w", err))
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, repository.InsightsKey(id)); err != nil {
			s.log.Warn("insight cache invalidation failed", "dataset_id", id, "error", err)
		}
	}
	if dataset.StorageKey != nil && *dataset.StorageKey != "" {
		if err := s.store.Delete(ctx, *dataset.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("stored file not deleted", "dataset_id", id, "key", *dataset.StorageKey, "error", err)
		}
	}

	s.log.Info("dataset deleted", "dataset_id", id)
	return nil
}

// Reprocess runs the pipeline again on the stored file. Insights are appended,
// not replaced.
func (s *datasetService) Reprocess(ctx context.Context, userID, id uuid.UUID) (*ProcessResult, error) {
	dataset, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if dataset.FileURL == nil || *dataset.FileURL == "" {
		return nil, apierr.Validation(errors.New("dataset has no stored file"))
	}
	return s.ingest.Process(ctx, ProcessRequest{
		DatasetID: dataset.ID.String(),
		FileURL:   *dataset.FileURL,
		FileType:  dataset.FileType,
	}, Caller{UserID: &userID})
}
