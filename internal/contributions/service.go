package contributions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/marigoldlabs/keepsake/backend/internal/storage"
)

var (
	errMissingDatabase    = errors.New("database handle is required")
	errMissingIDProvider  = errors.New("id provider is required")
	errMissingBookFinder  = errors.New("book finder is required")
	errMissingObjectStore = errors.New("object store is required")
)

// DefaultPageLimit is the pagination default for contribution listings.
const DefaultPageLimit = 20

// FileUpload describes one submitted file.
type FileUpload struct {
	Reader       io.Reader
	Size         int64
	ContentType  string
	OriginalName string
}

// BookFinder answers whether a contribution target exists.
type BookFinder interface {
	BookExists(ctx context.Context, id string) (bool, error)
}

// ObjectWriter persists submitted blobs.
type ObjectWriter interface {
	Save(ctx context.Context, upload storage.Upload) (storage.Object, error)
}

// IDProvider issues identifiers for contribution records.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the contribution service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Books      BookFinder
	Objects    ObjectWriter
	Logger     *zap.Logger
}

// Service accepts externally submitted photos against a book's
// contribute-identity, independent of the owner's edit flow.
type Service struct {
	db      *gorm.DB
	clock   func() time.Time
	ids     IDProvider
	books   BookFinder
	objects ObjectWriter
	logger  *zap.Logger
}

// NewService constructs the contribution service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Books == nil {
		return nil, errMissingBookFinder
	}
	if cfg.Objects == nil {
		return nil, errMissingObjectStore
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		db:      cfg.Database,
		clock:   clock,
		ids:     cfg.IDProvider,
		books:   cfg.Books,
		objects: cfg.Objects,
		logger:  logger,
	}, nil
}

// Submit stores every file and records one Contribution per file. All
// validation happens before the first blob is written. Files are processed
// independently: a failure on one file does not roll back contributions
// already committed in the same batch.
func (s *Service) Submit(ctx context.Context, bookID string, files []FileUpload, notes, prompts []string, contributorUserID string) ([]Contribution, error) {
	exists, err := s.books.BookExists(ctx, bookID)
	if err != nil {
		s.logError("contributions.submit", "book_lookup_failed", err, zap.String("book_id", bookID))
		return nil, err
	}
	if !exists {
		return nil, ErrBookNotFound
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > maxFilesPerSubmission {
		return nil, fmt.Errorf("%w: got %d, limit is %d", ErrTooManyFiles, len(files), maxFilesPerSubmission)
	}
	if len(notes) > 0 && len(notes) != len(files) {
		return nil, fmt.Errorf("%w: %d notes for %d files", ErrCountMismatch, len(notes), len(files))
	}
	if len(prompts) > 0 && len(prompts) != len(files) {
		return nil, fmt.Errorf("%w: %d prompts for %d files", ErrCountMismatch, len(prompts), len(files))
	}

	result := make([]Contribution, 0, len(files))
	for index, file := range files {
		photoID, err := newPhotoID()
		if err != nil {
			s.logError("contributions.submit", "photo_id_failed", err, zap.String("book_id", bookID))
			return result, err
		}

		object, err := s.objects.Save(ctx, storage.Upload{
			Reader:       file.Reader,
			Size:         file.Size,
			ContentType:  file.ContentType,
			OriginalName: file.OriginalName,
		})
		if err != nil {
			s.logError("contributions.submit", "blob_store_failed", err,
				zap.String("book_id", bookID),
				zap.Int("file_index", index))
			return result, err
		}

		id, err := s.ids.NewID()
		if err != nil {
			s.logError("contributions.submit", "id_generation_failed", err, zap.String("book_id", bookID))
			return result, err
		}

		contribution := Contribution{
			ID:                id,
			MemoryBookID:      bookID,
			ContributorUserID: contributorUserID,
			PhotoID:           photoID,
			URL:               object.URL,
			Note:              pick(notes, index),
			Prompt:            pick(prompts, index),
			ContributedAt:     s.clock().UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&contribution).Error; err != nil {
			s.logError("contributions.submit", "insert_failed", err,
				zap.String("book_id", bookID),
				zap.Int("file_index", index))
			return result, err
		}
		result = append(result, contribution)
	}

	return result, nil
}

// List returns the book's contributions, newest first, with the total count.
func (s *Service) List(ctx context.Context, bookID string, limit, offset int) ([]Contribution, int64, error) {
	exists, err := s.books.BookExists(ctx, bookID)
	if err != nil {
		s.logError("contributions.list", "book_lookup_failed", err, zap.String("book_id", bookID))
		return nil, 0, err
	}
	if !exists {
		return nil, 0, ErrBookNotFound
	}

	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&Contribution{}).
		Where("memory_book_id = ?", bookID).
		Count(&total).Error; err != nil {
		s.logError("contributions.list", "count_failed", err, zap.String("book_id", bookID))
		return nil, 0, err
	}

	var items []Contribution
	if err := s.db.WithContext(ctx).
		Where("memory_book_id = ?", bookID).
		Order("contributed_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		s.logError("contributions.list", "query_failed", err, zap.String("book_id", bookID))
		return nil, 0, err
	}

	return items, total, nil
}

// newPhotoID returns an opaque high-entropy display tag. It is never used as
// a lookup key, so no collision check is needed.
func newPhotoID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func pick(values []string, index int) string {
	if index < len(values) {
		return values[index]
	}
	return ""
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("contributions service error", attrs...)
}
