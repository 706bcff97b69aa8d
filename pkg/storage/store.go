package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// BlobStore keeps uploaded dataset files.
type BlobStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// PublicURL is the URL the ingestion pipeline downloads the object from.
	PublicURL(key string) string
	Bucket() string
}

// ObjectKey builds "<userID>/<unixMillis>-<suffix>.<ext>" for an uploaded file.
// The random suffix keeps two uploads in the same millisecond apart.
func ObjectKey(userID uuid.UUID, fileName string, now time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%d-%s.%s", userID, now.UnixMilli(), uuid.NewString()[:8], ext)
}

// ContentTypeFor maps a dataset file type to a MIME type.
func ContentTypeFor(fileType string) string {
	switch strings.ToLower(fileType) {
	case "csv":
		return "text/csv"
	case "json":
		return "application/json"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

func normalizeKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}

func joinURL(base, bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), bucket, normalizeKey(key))
}
