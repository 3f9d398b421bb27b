// Package local implements blob storage on the server filesystem. Stored
// objects are addressed by the /api/images/:filename route.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/marigoldlabs/keepsake/backend/internal/storage"
)

const urlPrefix = "/api/images/"

// Config options for the filesystem backend.
type Config struct {
	BaseDir  string
	MaxBytes int64
}

// Store is the filesystem implementation of storage.Store.
type Store struct {
	baseDir  string
	maxBytes int64
}

// NewStore creates the upload directory if needed and returns the backend.
func NewStore(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, errors.New("local storage: base directory is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: create base directory: %w", err)
	}
	return &Store{baseDir: cfg.BaseDir, maxBytes: cfg.MaxBytes}, nil
}

// Save writes the upload to disk and returns its serving URL.
func (s *Store) Save(ctx context.Context, upload storage.Upload) (storage.Object, error) {
	if err := storage.ValidateUpload(upload, s.maxBytes); err != nil {
		return storage.Object{}, err
	}

	filename, err := storage.NewFilename(upload.OriginalName)
	if err != nil {
		return storage.Object{}, fmt.Errorf("local storage: generate filename: %w", err)
	}

	file, err := os.Create(filepath.Join(s.baseDir, filename))
	if err != nil {
		return storage.Object{}, fmt.Errorf("local storage: create file: %w", err)
	}

	written, err := io.Copy(file, upload.Reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.baseDir, filename))
		return storage.Object{}, fmt.Errorf("local storage: write file: %w", err)
	}

	return storage.Object{
		Filename:    filename,
		URL:         urlPrefix + filename,
		Size:        written,
		ContentType: upload.ContentType,
	}, nil
}

// Open returns a reader over the stored file and its content type.
func (s *Store) Open(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	cleaned, err := s.safePath(filename)
	if err != nil {
		return nil, "", err
	}

	file, err := os.Open(cleaned)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", storage.ErrObjectNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("local storage: open file: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return file, contentType, nil
}

// Delete removes the stored file. A missing file surfaces ErrObjectNotFound.
func (s *Store) Delete(ctx context.Context, filename string) error {
	cleaned, err := s.safePath(filename)
	if err != nil {
		return err
	}

	err = os.Remove(cleaned)
	if errors.Is(err, os.ErrNotExist) {
		return storage.ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("local storage: remove file: %w", err)
	}
	return nil
}

// safePath rejects path traversal attempts in externally supplied filenames.
func (s *Store) safePath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", storage.ErrObjectNotFound
	}
	return filepath.Join(s.baseDir, filename), nil
}
