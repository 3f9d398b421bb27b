// Package storage defines the object-store contract for image blobs and the
// validation shared by its backends.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	// ErrObjectNotFound indicates the referenced blob does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrPayloadTooLarge indicates the upload exceeds the configured ceiling.
	ErrPayloadTooLarge = errors.New("storage: payload too large")
	// ErrUnsupportedMediaType indicates the upload is not an image.
	ErrUnsupportedMediaType = errors.New("storage: unsupported media type")
)

// Upload describes an incoming blob.
type Upload struct {
	Reader       io.Reader
	Size         int64
	ContentType  string
	OriginalName string
}

// Object describes a stored blob.
type Object struct {
	Filename    string
	URL         string
	Size        int64
	ContentType string
}

// Store persists, serves and removes image blobs. Delete is idempotent:
// removing an absent object returns ErrObjectNotFound, which callers may
// treat as success.
type Store interface {
	Save(ctx context.Context, upload Upload) (Object, error)
	Open(ctx context.Context, filename string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, filename string) error
}

// FilenameFromURL extracts the stored filename from a blob URL. Both backends
// keep the filename as the final path segment, so the mapping is shared.
func FilenameFromURL(url string) string {
	return path.Base(strings.TrimSuffix(url, "/"))
}

// ValidateUpload enforces the image-only and size-ceiling rules common to all
// backends.
func ValidateUpload(upload Upload, maxBytes int64) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(upload.ContentType)), "image/") {
		return fmt.Errorf("%w: %s", ErrUnsupportedMediaType, upload.ContentType)
	}
	if maxBytes > 0 && upload.Size > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrPayloadTooLarge, upload.Size, maxBytes)
	}
	return nil
}

// NewFilename produces a unique blob filename preserving the original
// extension.
func NewFilename(originalName string) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(originalName))
	return fmt.Sprintf("img-%d-%s%s", time.Now().UnixNano(), hex.EncodeToString(suffix), ext), nil
}
