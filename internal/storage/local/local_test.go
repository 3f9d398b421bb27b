package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marigoldlabs/keepsake/backend/internal/storage"
)

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	store, err := NewStore(Config{BaseDir: t.TempDir(), MaxBytes: maxBytes})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store
}

func TestSaveOpenDeleteRoundTrip(t *testing.T) {
	store := newTestStore(t, 0)
	content := "jpeg-bytes"

	object, err := store.Save(context.Background(), storage.Upload{
		Reader:       strings.NewReader(content),
		Size:         int64(len(content)),
		ContentType:  "image/jpeg",
		OriginalName: "holiday.jpg",
	})
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if object.URL != "/api/images/"+object.Filename {
		t.Fatalf("unexpected url %q for filename %q", object.URL, object.Filename)
	}
	if object.Size != int64(len(content)) {
		t.Fatalf("expected size %d, got %d", len(content), object.Size)
	}

	reader, contentType, err := store.Open(context.Background(), object.Filename)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	defer reader.Close()
	if contentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", contentType)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if string(data) != content {
		t.Fatalf("stored content mismatch: %q", data)
	}

	if err := store.Delete(context.Background(), object.Filename); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if err := store.Delete(context.Background(), object.Filename); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("second delete must surface ErrObjectNotFound, got %v", err)
	}
}

func TestSaveRejectsNonImages(t *testing.T) {
	store := newTestStore(t, 0)

	_, err := store.Save(context.Background(), storage.Upload{
		Reader:       strings.NewReader("%PDF-1.7"),
		Size:         8,
		ContentType:  "application/pdf",
		OriginalName: "report.pdf",
	})
	if !errors.Is(err, storage.ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}
}

func TestSaveRejectsOversizedUploads(t *testing.T) {
	store := newTestStore(t, 4)

	_, err := store.Save(context.Background(), storage.Upload{
		Reader:       strings.NewReader("12345"),
		Size:         5,
		ContentType:  "image/png",
		OriginalName: "big.png",
	})
	if !errors.Is(err, storage.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestTraversalFilenamesAreTreatedAsMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(Config{BaseDir: filepath.Join(dir, "uploads")})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}

	secret := filepath.Join(dir, "secret.txt")
	if err := os.WriteFile(secret, []byte("do not serve"), 0o600); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	for _, filename := range []string{"../secret.txt", "a/b.jpg", ""} {
		if _, _, err := store.Open(context.Background(), filename); !errors.Is(err, storage.ErrObjectNotFound) {
			t.Fatalf("open %q: expected ErrObjectNotFound, got %v", filename, err)
		}
		if err := store.Delete(context.Background(), filename); !errors.Is(err, storage.ErrObjectNotFound) {
			t.Fatalf("delete %q: expected ErrObjectNotFound, got %v", filename, err)
		}
	}
	if _, err := os.Stat(secret); err != nil {
		t.Fatalf("file outside the base directory must survive: %v", err)
	}
}
