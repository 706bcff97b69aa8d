package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps objects in process memory. It backs local runs without an
// object store and the package tests.
type MemoryStore struct {
	mu            sync.RWMutex
	objects       map[string][]byte
	bucketName    string
	publicBaseURL string
}

func NewMemoryStore(bucket, publicBaseURL string) *MemoryStore {
	return &MemoryStore{
		objects:       make(map[string][]byte),
		bucketName:    bucket,
		publicBaseURL: publicBaseURL,
	}
}

func (s *MemoryStore) Bucket() string { return s.bucketName }

func (s *MemoryStore) Put(_ context.Context, key string, content []byte, _ string) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[normalizeKey(key)]
	return b, ok
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = normalizeKey(key)
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) PublicURL(key string) string {
	return joinURL(s.publicBaseURL, s.bucketName, key)
}
