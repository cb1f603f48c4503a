package record

import "time"

// Meta is caller metadata forwarded to hooks.
type Meta struct {
	Client     string
	SDKVersion string
	AppVersion string
}

// Request is what a beforeSave hook sees. The system keys live in the
// exported fields and are unreachable through Keys.
type Request struct {
	Keys        *KeyMap
	IsNew       bool
	IsDestroyed bool
	Meta

	ID        any
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt time.Time
}

// Timestamps returns the system timestamps set on the request, keyed by
// their column name.
func (r *Request) Timestamps() map[string]time.Time {
	out := make(map[string]time.Time, 3)
	if !r.CreatedAt.IsZero() {
		out[KeyCreatedAt] = r.CreatedAt
	}
	if !r.UpdatedAt.IsZero() {
		out[KeyUpdatedAt] = r.UpdatedAt
	}
	if !r.DeletedAt.IsZero() {
		out[KeyDeletedAt] = r.DeletedAt
	}
	return out
}
