package accounts

import (
	"strings"
	"time"
)

// User captures a registered account. The password is stored only as a bcrypt
// hash.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;size:190;not null"`
	Name         string    `gorm:"column:name;size:320;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing user accounts.
func (User) TableName() string {
	return "users"
}

// normalizeEmail canonicalizes an address for lookup and uniqueness.
func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
