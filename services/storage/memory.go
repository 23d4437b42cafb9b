package storagesvc

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core/submission"
)

// Object is a file kept by MemoryStorage.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStorage keeps uploads in memory; used in tests and local runs without S3.
type MemoryStorage struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object

	// Err, when set, is returned by Upload.
	Err error
	// DeleteErr, when set, is returned by Delete.
	DeleteErr error
}

var _ submission.FileStorage = (*MemoryStorage)(nil)

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{baseURL: baseURL, objects: make(map[string]Object)}
}

func (s *MemoryStorage) Upload(_ context.Context, path string, body io.Reader, _ int64, contentType string) error {
	if s.Err != nil {
		return s.Err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.Wrap(err, "reading upload")
	}
	s.mu.Lock()
	s.objects[path] = Object{Data: data, ContentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, path string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	delete(s.objects, path)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) PublicURL(path string) string {
	return s.baseURL + "/" + path
}

func (s *MemoryStorage) Get(path string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	return obj, ok
}

func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
