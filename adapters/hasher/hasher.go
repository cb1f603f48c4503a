// Package hasher provides password hashing implementations.
package hasher

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/warpmodel/ports"
)

// Bcrypt uses bcrypt for hashing.
type Bcrypt struct{}

// NewBcrypt creates a bcrypt hasher.
func NewBcrypt() *Bcrypt {
	return &Bcrypt{}
}

// Hash generates a bcrypt hash from plaintext. Costs outside the bcrypt
// range fall back to the default cost.
func (h *Bcrypt) Hash(plaintext string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare checks if plaintext matches hash.
func (h *Bcrypt) Compare(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Ensure interface compliance.
var _ ports.Hasher = (*Bcrypt)(nil)

// Fake provides a reversible hasher for testing (NOT FOR PRODUCTION).
type Fake struct{}

const fakePrefix = "hashed:"

// Hash prefixes the plaintext; the cost is ignored.
func (Fake) Hash(plaintext string, _ int) (string, error) {
	return fakePrefix + plaintext, nil
}

// Compare does simple equality check against the prefixed value.
func (Fake) Compare(hash, plaintext string) bool {
	return strings.TrimPrefix(hash, fakePrefix) == plaintext && strings.HasPrefix(hash, fakePrefix)
}

// Ensure interface compliance.
var _ ports.Hasher = Fake{}
