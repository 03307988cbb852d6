package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"alcyxob/workout-timer/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// failingArchiveLogs fails every archive key update.
type failingArchiveLogs struct {
	repository.WorkoutLogRepository
}

func (failingArchiveLogs) SetArchiveKey(context.Context, primitive.ObjectID, primitive.ObjectID, string) error {
	return errors.New("write failed")
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) PutObject(_ context.Context, key, _ string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errors.New("bucket unavailable")
	}
	s.objects[key] = body
	return nil
}

func (s *memStorage) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://archive.test/" + key, nil
}

func (s *memStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
