package contributions

import (
	"errors"
	"time"
)

// Contribution is a photo submitted through a contribute link. Records are
// immutable and independent of the book's pages until the owner merges them
// by editing the book.
type Contribution struct {
	ID                string    `gorm:"column:id;primaryKey;size:190;not null"`
	MemoryBookID      string    `gorm:"column:memory_book_id;size:190;not null;index:idx_contributions_book_time,priority:1"`
	ContributorUserID string    `gorm:"column:contributor_user_id;size:190"`
	PhotoID           string    `gorm:"column:photo_id;size:64;not null"`
	URL               string    `gorm:"column:url;size:512;not null"`
	Note              string    `gorm:"column:note;type:text;not null;default:''"`
	Prompt            string    `gorm:"column:prompt;type:text;not null;default:''"`
	ContributedAt     time.Time `gorm:"column:contributed_at;not null;index:idx_contributions_book_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Contribution) TableName() string {
	return "contributions"
}

const maxFilesPerSubmission = 10

var (
	// ErrBookNotFound indicates the target memory book does not exist.
	ErrBookNotFound = errors.New("contributions: memory book not found")
	// ErrNoFiles indicates a submission with no files.
	ErrNoFiles = errors.New("contributions: at least one file is required")
	// ErrTooManyFiles indicates a submission above the per-request cap.
	ErrTooManyFiles = errors.New("contributions: too many files in one submission")
	// ErrCountMismatch indicates notes or prompts not pairing with files.
	ErrCountMismatch = errors.New("contributions: notes and prompts must match the file count")
)
