// Package publicid produces the short public identifiers that act as
// capability tokens for sharing and contributing to a memory book.
package publicid

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	// Length is the number of characters in every generated identifier.
	Length = 12

	// Nine bytes encode to exactly twelve unpadded base64 characters,
	// so a draw only comes up short when '+' or '/' gets stripped.
	randomBytesPerID = 9
)

// ErrEntropyUnavailable indicates the random source could not be read.
var ErrEntropyUnavailable = errors.New("publicid: random source unavailable")

// Generator yields pairs of public identifiers for a new memory book.
// Implementations must guarantee the two identifiers within a pair differ;
// uniqueness across the whole store is the caller's responsibility.
type Generator interface {
	NewPair() (shareID string, contributeID string, err error)
}

type randomGenerator struct{}

// NewGenerator constructs the crypto/rand backed Generator.
func NewGenerator() Generator {
	return randomGenerator{}
}

// NewPair returns two distinct short identifiers.
func (randomGenerator) NewPair() (string, string, error) {
	for {
		shareID, err := newShortID()
		if err != nil {
			return "", "", err
		}
		contributeID, err := newShortID()
		if err != nil {
			return "", "", err
		}
		if shareID != contributeID {
			return shareID, contributeID, nil
		}
	}
}

// newShortID derives a lowercase alphanumeric identifier from random bytes.
// Base64 symbol characters are stripped, so a draw occasionally comes up
// short and is retried.
func newShortID() (string, error) {
	for {
		buf := make([]byte, randomBytesPerID)
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Join(ErrEntropyUnavailable, err)
		}

		encoded := base64.StdEncoding.EncodeToString(buf)
		cleaned := strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			default:
				return -1
			}
		}, encoded)

		if len(cleaned) < Length {
			continue
		}
		return strings.ToLower(cleaned[:Length]), nil
	}
}

// IsValid reports whether a value has the shape of a generated identifier.
func IsValid(value string) bool {
	if len(value) != Length {
		return false
	}
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
