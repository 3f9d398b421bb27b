// Package ids issues internal entity identifiers.
package ids

import "github.com/google/uuid"

// UUIDProvider issues UUIDv7 identifiers. Its NewID method satisfies the
// IDProvider interfaces declared by consuming services.
type UUIDProvider struct{}

// NewUUIDProvider constructs a provider issuing UUIDv7 identifiers.
func NewUUIDProvider() UUIDProvider {
	return UUIDProvider{}
}

// NewID returns a fresh time-ordered identifier.
func (UUIDProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
