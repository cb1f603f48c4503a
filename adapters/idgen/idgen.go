// Package idgen provides the identifier generators used for session tokens.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/artpar/warpmodel/ports"
)

// UUID generates random version 4 UUIDs.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.New().String()
}

var _ ports.IDGenerator = UUID{}

// Sequential generates deterministic UUID-shaped ids for tests: the
// counter fills the last group.
type Sequential struct {
	counter uint64
}

// NewSequential creates a sequential generator starting at 1.
func NewSequential() *Sequential {
	return &Sequential{}
}

// New returns the next id.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return fmt.Sprintf("00000000-0000-4000-8000-%012x", n)
}

var _ ports.IDGenerator = (*Sequential)(nil)
