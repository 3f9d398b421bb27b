package books

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BookType enumerates the supported memory book categories.
type BookType string

const (
	BookTypeClass      BookType = "Class"
	BookTypeDepartment BookType = "Department"
	BookTypeGroup      BookType = "Group"
)

// ParseBookType validates raw input against the fixed enum.
func ParseBookType(value string) (BookType, error) {
	switch BookType(strings.TrimSpace(value)) {
	case BookTypeClass:
		return BookTypeClass, nil
	case BookTypeDepartment:
		return BookTypeDepartment, nil
	case BookTypeGroup:
		return BookTypeGroup, nil
	default:
		return "", fmt.Errorf("%w: unknown book type %q", ErrValidation, value)
	}
}

// PageLayout enumerates the fixed photo grid layouts.
type PageLayout string

const (
	LayoutSingle        PageLayout = "single"
	LayoutTwoHorizontal PageLayout = "two-horizontal"
	LayoutTwoVertical   PageLayout = "two-vertical"
	LayoutThreeLeft     PageLayout = "three-left"
	LayoutThreeRight    PageLayout = "three-right"
	LayoutThreeTop      PageLayout = "three-top"
	LayoutThreeBottom   PageLayout = "three-bottom"
	LayoutFourGrid      PageLayout = "four-grid"
)

var validLayouts = map[PageLayout]struct{}{
	LayoutSingle:        {},
	LayoutTwoHorizontal: {},
	LayoutTwoVertical:   {},
	LayoutThreeLeft:     {},
	LayoutThreeRight:    {},
	LayoutThreeTop:      {},
	LayoutThreeBottom:   {},
	LayoutFourGrid:      {},
}

// Photo is an embedded value referencing a blob in object storage.
type Photo struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Note   string `json:"note"`
	Prompt string `json:"prompt"`
}

// Page is a value type owned by its book and replaced wholesale on update.
type Page struct {
	ID     string     `json:"id"`
	Layout PageLayout `json:"layout"`
	Note   string     `json:"note"`
	Photos []Photo    `json:"photos"`
}

// ValidatePages checks the layout enum and photo references of a replacement
// pages array.
func ValidatePages(pages []Page) error {
	for i, page := range pages {
		if strings.TrimSpace(page.ID) == "" {
			return fmt.Errorf("%w: page %d is missing an id", ErrValidation, i)
		}
		if _, ok := validLayouts[page.Layout]; !ok {
			return fmt.Errorf("%w: page %d has unknown layout %q", ErrValidation, i, page.Layout)
		}
		for j, photo := range page.Photos {
			if strings.TrimSpace(photo.ID) == "" || strings.TrimSpace(photo.URL) == "" {
				return fmt.Errorf("%w: photo %d on page %d is missing id or url", ErrValidation, j, i)
			}
		}
	}
	return nil
}

// MemoryBook is the persisted aggregate root. Pages are stored as a JSON
// document column, matching the embedded-document ownership model: they have
// no identity or lifetime outside their book.
type MemoryBook struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	OwnerID      string    `gorm:"column:owner_id;size:190;not null;index:idx_books_owner_created,priority:1"`
	Name         string    `gorm:"column:name;size:320;not null"`
	Type         BookType  `gorm:"column:type;size:32;not null"`
	PagesJSON    string    `gorm:"column:pages_json;type:text;not null;default:'[]'"`
	ShareID      string    `gorm:"column:share_id;size:32;not null;uniqueIndex"`
	ContributeID string    `gorm:"column:contribute_id;size:32;not null;uniqueIndex"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index:idx_books_owner_created,priority:2"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (MemoryBook) TableName() string {
	return "memory_books"
}

// Book is the decoded aggregate returned by the service.
type Book struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"-"`
	Name         string    `json:"name"`
	Type         BookType  `json:"type"`
	Pages        []Page    `json:"pages"`
	ShareID      string    `json:"shareId"`
	ContributeID string    `json:"contributeId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Summary is the metadata-only projection exposed through a contribute link.
// It deliberately omits pages so the link leaks no existing content.
type Summary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         BookType `json:"type"`
	ContributeID string   `json:"contributeId"`
}

// UpdateRequest carries a partial update; nil fields are left unchanged and a
// non-nil Pages replaces the whole array.
type UpdateRequest struct {
	Name  *string
	Type  *string
	Pages *[]Page
}

// ErrValidation indicates missing or out-of-range book input.
var ErrValidation = errors.New("books: invalid input")

// ErrNotFound covers both unknown identifiers and foreign-owned books, so an
// ownership mismatch is indistinguishable from a missing record.
var ErrNotFound = errors.New("books: memory book not found")

// ErrPublicIDExhausted indicates repeated public-id collisions on insert.
var ErrPublicIDExhausted = errors.New("books: could not allocate unique public ids")
