package vod

import (
	"context"
	"sync"
	"time"
)

// Store is the persistence abstraction for lesson records.
// Implementations can be in-memory or backed by a relational database.
// The pipeline writes through Store only after a transcode has been verified;
// callers never see a lesson pointing at an asset that does not exist.
type Store interface {
	// GetLesson returns the lesson with the given id, or ErrNotFound.
	GetLesson(ctx context.Context, id string) (*Lesson, error)

	// UpdateLessonVideoURL records the manifest location against the lesson,
	// creating the record if absent.
	UpdateLessonVideoURL(ctx context.Context, id, manifestPath string) error
}

// MemoryStore is a concurrency-safe in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.RWMutex
	lessons map[string]*Lesson
}

// NewMemoryStore returns a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lessons: make(map[string]*Lesson)}
}

// GetLesson implements Store.GetLesson.
func (s *MemoryStore) GetLesson(_ context.Context, id string) (*Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// UpdateLessonVideoURL implements Store.UpdateLessonVideoURL.
func (s *MemoryStore) UpdateLessonVideoURL(_ context.Context, id, manifestPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lessons[id]
	if !ok {
		l = &Lesson{ID: id}
		s.lessons[id] = l
	}
	l.VideoURL = manifestPath
	l.UpdatedAt = time.Now().UTC()
	return nil
}
