// Package ports defines interfaces (contracts) between the model layer and its
// collaborators. Implementations live in adapters/.
package ports

import "time"

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Security Port
// -----------------------------------------------------------------------------

// Hasher provides password hashing for the password parser.
type Hasher interface {
	// Hash generates a hash from a plaintext value using the given work factor.
	Hash(plaintext string, cost int) (string, error)

	// Compare checks if plaintext matches hash.
	Compare(hash, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Storage Port
// -----------------------------------------------------------------------------

// Storage resolves attachment keys to client-reachable URLs.
type Storage interface {
	URL(key string) string
}
