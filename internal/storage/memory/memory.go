// Package memory implements an in-memory storage.Store used by tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/marigoldlabs/keepsake/backend/internal/storage"
)

// Store keeps blobs in process memory and records delete calls so tests can
// assert on cascade behavior.
type Store struct {
	mu       sync.Mutex
	objects  map[string]storedObject
	deletes  []string
	saves    int
	maxBytes int64

	// FailDeletes forces every Delete call to return an error when set.
	FailDeletes bool
	// FailSaves forces every Save call to return an error when set.
	FailSaves bool
}

type storedObject struct {
	data        []byte
	contentType string
}

// NewStore returns an empty in-memory backend with the given size ceiling.
func NewStore(maxBytes int64) *Store {
	return &Store{objects: make(map[string]storedObject), maxBytes: maxBytes}
}

func (s *Store) Save(ctx context.Context, upload storage.Upload) (storage.Object, error) {
	if err := storage.ValidateUpload(upload, s.maxBytes); err != nil {
		return storage.Object{}, err
	}
	if s.FailSaves {
		return storage.Object{}, fmt.Errorf("memory storage: save disabled")
	}

	data, err := io.ReadAll(upload.Reader)
	if err != nil {
		return storage.Object{}, err
	}

	filename, err := storage.NewFilename(upload.OriginalName)
	if err != nil {
		return storage.Object{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.objects[filename] = storedObject{data: data, contentType: upload.ContentType}

	return storage.Object{
		Filename:    filename,
		URL:         "/api/images/" + filename,
		Size:        int64(len(data)),
		ContentType: upload.ContentType,
	}, nil
}

func (s *Store) Open(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	object, ok := s.objects[filename]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(object.data)), object.contentType, nil
}

func (s *Store) Delete(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, filename)
	if s.FailDeletes {
		return fmt.Errorf("memory storage: delete disabled")
	}
	if _, ok := s.objects[filename]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(s.objects, filename)
	return nil
}

// DeleteCalls returns the filenames passed to Delete, in call order.
func (s *Store) DeleteCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

// SaveCalls reports how many Save calls reached the backend.
func (s *Store) SaveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Len reports the number of stored blobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
