package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxFileBytes bounds how much of a remote file is buffered.
const DefaultMaxFileBytes int64 = 50 << 20

// bodyExcerptBytes is how much of a failed response body is kept in the error.
const bodyExcerptBytes = 512

// ErrFileTooLarge is returned when the remote body exceeds the configured ceiling.
var ErrFileTooLarge = fmt.Errorf("file exceeds size limit")

type FileClient interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError carries the HTTP status of a failed download.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("download returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("download returned status %d: %s", e.StatusCode, e.Body)
}

type fileClient struct {
	maxBytes   int64
	httpClient *http.Client
}

func NewFileClient(maxBytes int64, timeout time.Duration) FileClient {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &fileClient{
		maxBytes: maxBytes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *fileClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "datalens-ingest/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerptBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	if resp.ContentLength > c.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, resp.ContentLength, c.maxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, c.maxBytes)
	}
	return body, nil
}
