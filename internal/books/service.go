package books

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/marigoldlabs/keepsake/backend/internal/contributions"
	"github.com/marigoldlabs/keepsake/backend/internal/publicid"
	"github.com/marigoldlabs/keepsake/backend/internal/storage"
)

const (
	// maxCreateAttempts bounds the retry loop on public-id collisions.
	maxCreateAttempts = 5

	// DefaultPageLimit is the pagination default shared by list operations.
	DefaultPageLimit = 20
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingPublicIDs  = errors.New("public id generator is required")
)

// IDProvider issues internal identifiers for new books.
type IDProvider interface {
	NewID() (string, error)
}

// ObjectDeleter removes stored blobs during cascade deletion.
type ObjectDeleter interface {
	Delete(ctx context.Context, filename string) error
}

// ServiceConfig describes the dependencies of the memory book store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	PublicIDs  publicid.Generator
	Objects    ObjectDeleter
	Logger     *zap.Logger
}

// Service owns memory book aggregates and their three identities.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	ids       IDProvider
	publicIDs publicid.Generator
	objects   ObjectDeleter
	logger    *zap.Logger
}

// NewService constructs the memory book service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.PublicIDs == nil {
		return nil, errMissingPublicIDs
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
		db:        cfg.Database,
		clock:     clock,
		ids:       cfg.IDProvider,
		publicIDs: cfg.PublicIDs,
		objects:   cfg.Objects,
		logger:    logger,
	}, nil
}

// Create validates the input, allocates a public id pair and persists the
// book with empty pages. Public-id uniqueness is enforced by the insert: a
// unique-constraint violation regenerates the pair, bounded by
// maxCreateAttempts.
func (s *Service) Create(ctx context.Context, ownerID, name, bookType string) (Book, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" {
		return Book{}, fmt.Errorf("%w: owner is required", ErrValidation)
	}
	if name == "" {
		return Book{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	parsedType, err := ParseBookType(bookType)
	if err != nil {
		return Book{}, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		s.logError("books.create", "id_generation_failed", err)
		return Book{}, err
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		shareID, contributeID, err := s.publicIDs.NewPair()
		if err != nil {
			s.logError("books.create", "public_id_generation_failed", err)
			return Book{}, err
		}

		now := s.clock().UTC()
		record := MemoryBook{
			ID:           id,
			OwnerID:      ownerID,
			Name:         name,
			Type:         parsedType,
			PagesJSON:    "[]",
			ShareID:      shareID,
			ContributeID: contributeID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		err = s.db.WithContext(ctx).Create(&record).Error
		if err == nil {
			return s.decode(record)
		}
		if !isUniqueViolation(err) {
			s.logError("books.create", "insert_failed", err, zap.String("book_id", id))
			return Book{}, err
		}
		s.logger.Warn("public id collision on insert, regenerating",
			zap.Int("attempt", attempt),
			zap.String("book_id", id))
	}

	s.logError("books.create", "public_id_exhausted", ErrPublicIDExhausted, zap.String("book_id", id))
	return Book{}, ErrPublicIDExhausted
}

// ListByOwner returns the caller's books, newest first, with the total count.
func (s *Service) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Book, int64, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&MemoryBook{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error; err != nil {
		s.logError("books.list", "count_failed", err)
		return nil, 0, err
	}

	var records []MemoryBook
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		s.logError("books.list", "query_failed", err)
		return nil, 0, err
	}

	result := make([]Book, 0, len(records))
	for _, record := range records {
		book, err := s.decode(record)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, book)
	}
	return result, total, nil
}

// GetByID fetches a book for its owner. Foreign-owned and missing books both
// yield ErrNotFound.
func (s *Service) GetByID(ctx context.Context, ownerID, id string) (Book, error) {
	record, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return Book{}, err
	}
	return s.decode(record)
}

// GetByShareID resolves a share capability token to the full book.
func (s *Service) GetByShareID(ctx context.Context, shareID string) (Book, error) {
	if !publicid.IsValid(shareID) {
		return Book{}, ErrNotFound
	}

	var record MemoryBook
	err := s.db.WithContext(ctx).Where("share_id = ?", shareID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Book{}, ErrNotFound
	}
	if err != nil {
		s.logError("books.get_by_share", "query_failed", err)
		return Book{}, err
	}
	return s.decode(record)
}

// GetByContributeID resolves a contribute capability token to the
// metadata-only projection.
func (s *Service) GetByContributeID(ctx context.Context, contributeID string) (Summary, error) {
	if !publicid.IsValid(contributeID) {
		return Summary{}, ErrNotFound
	}

	var record MemoryBook
	err := s.db.WithContext(ctx).Where("contribute_id = ?", contributeID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		s.logError("books.get_by_contribute", "query_failed", err)
		return Summary{}, err
	}
	return Summary{
		ID:           record.ID,
		Name:         record.Name,
		Type:         record.Type,
		ContributeID: record.ContributeID,
	}, nil
}

// BookExists reports whether a book exists under its internal id. It backs
// the contribution service's target check.
func (s *Service) BookExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&MemoryBook{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update applies a partial update; a supplied pages array replaces the whole
// document. UpdatedAt is refreshed on every successful update.
func (s *Service) Update(ctx context.Context, ownerID, id string, update UpdateRequest) (Book, error) {
	record, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return Book{}, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return Book{}, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		record.Name = name
	}
	if update.Type != nil {
		parsedType, err := ParseBookType(*update.Type)
		if err != nil {
			return Book{}, err
		}
		record.Type = parsedType
	}
	if update.Pages != nil {
		if err := ValidatePages(*update.Pages); err != nil {
			return Book{}, err
		}
		encoded, err := json.Marshal(*update.Pages)
		if err != nil {
			return Book{}, err
		}
		record.PagesJSON = string(encoded)
	}

	record.UpdatedAt = s.clock().UTC()
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		s.logError("books.update", "save_failed", err, zap.String("book_id", id))
		return Book{}, err
	}
	return s.decode(record)
}

// Delete removes the book, its contributions and, best effort, every blob its
// pages and contributions reference. Blob deletion failures are logged but
// never block the document delete: an orphaned blob is preferable to an
// orphaned document.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	record, err := s.findOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	book, err := s.decode(record)
	if err != nil {
		return err
	}

	var urls []string
	for _, page := range book.Pages {
		for _, photo := range page.Photos {
			if photo.URL != "" {
				urls = append(urls, photo.URL)
			}
		}
	}

	var contributed []contributions.Contribution
	if err := s.db.WithContext(ctx).
		Where("memory_book_id = ?", id).
		Find(&contributed).Error; err != nil {
		s.logError("books.delete", "contribution_query_failed", err, zap.String("book_id", id))
		return err
	}
	for _, contribution := range contributed {
		if contribution.URL != "" {
			urls = append(urls, contribution.URL)
		}
	}

	failed := 0
	if s.objects != nil {
		for _, url := range urls {
			err := s.objects.Delete(ctx, storage.FilenameFromURL(url))
			if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				failed++
				s.logger.Warn("blob deletion failed during book delete",
					zap.String("book_id", id),
					zap.String("url", url),
					zap.Error(err))
			}
		}
	}
	if failed > 0 {
		s.logger.Warn("book deleted with unreleased blobs",
			zap.String("book_id", id),
			zap.Int("failed_deletions", failed),
			zap.Int("total_blobs", len(urls)))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("memory_book_id = ?", id).Delete(&contributions.Contribution{}).Error; err != nil {
			s.logError("books.delete", "contribution_delete_failed", err, zap.String("book_id", id))
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&MemoryBook{}).Error; err != nil {
			s.logError("books.delete", "book_delete_failed", err, zap.String("book_id", id))
			return err
		}
		return nil
	})
}

func (s *Service) findOwned(ctx context.Context, ownerID, id string) (MemoryBook, error) {
	var record MemoryBook
	err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MemoryBook{}, ErrNotFound
	}
	if err != nil {
		s.logError("books.find_owned", "query_failed", err, zap.String("book_id", id))
		return MemoryBook{}, err
	}
	return record, nil
}

func (s *Service) decode(record MemoryBook) (Book, error) {
	pages := []Page{}
	if record.PagesJSON != "" {
		if err := json.Unmarshal([]byte(record.PagesJSON), &pages); err != nil {
			s.logError("books.decode", "pages_unmarshal_failed", err, zap.String("book_id", record.ID))
			return Book{}, fmt.Errorf("decode pages for book %s: %w", record.ID, err)
		}
	}
	return Book{
		ID:           record.ID,
		OwnerID:      record.OwnerID,
		Name:         record.Name,
		Type:         record.Type,
		Pages:        pages,
		ShareID:      record.ShareID,
		ContributeID: record.ContributeID,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("books service error", attrs...)
}
