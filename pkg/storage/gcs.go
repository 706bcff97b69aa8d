package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSConfig struct {
	Bucket        string
	PublicBaseURL string
	// Endpoint points the client at an emulator; empty means Google Cloud.
	Endpoint string
}

// GCSStore is a BlobStore on Google Cloud Storage.
type GCSStore struct {
	client        *gcs.Client
	bucketName    string
	publicBaseURL string
}

func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	opts := []option.ClientOption{option.WithScopes(gcs.ScopeReadWrite)}
	if endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"); endpoint != "" {
		opts = []option.ClientOption{
			option.WithEndpoint(endpoint + "/storage/v1/"),
			option.WithoutAuthentication(),
		}
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		base = "https://storage.googleapis.com"
	}
	return &GCSStore{client: client, bucketName: bucket, publicBaseURL: base}, nil
}

func (s *GCSStore) Bucket() string { return s.bucketName }

func (s *GCSStore) Put(ctx context.Context, key string, content []byte, contentType string) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := s.client.Bucket(s.bucketName).Object(normalizeKey(key)).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, s.bucketName, err)
	}
	return nil
}

func (s *GCSStore) PublicURL(key string) string {
	return joinURL(s.publicBaseURL, s.bucketName, key)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
