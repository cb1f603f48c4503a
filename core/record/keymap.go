// Package record holds the per-operation state of a mutation: the KeyMap of
// client fields, the Request that wraps it, and the Response a beforeSave
// hook completes.
package record

import "fmt"

// System keys are owned by the Request and never stored in a KeyMap.
const (
	KeyID        = "id"
	KeyCreatedAt = "created_at"
	KeyUpdatedAt = "updated_at"
	KeyDeletedAt = "deleted_at"
)

// IsSystemKey reports whether key is one of the four system keys.
func IsSystemKey(key string) bool {
	switch key {
	case KeyID, KeyCreatedAt, KeyUpdatedAt, KeyDeletedAt:
		return true
	}
	return false
}

// SystemKeyError is returned when a caller addresses a system key through a KeyMap.
type SystemKeyError struct {
	Key string
}

func (e *SystemKeyError) Error() string {
	return fmt.Sprintf("key `%s` is reserved and cannot be accessed directly", e.Key)
}

// KeyMap is an ordered field name to value container.
// It is owned by a single pipeline and is not safe for concurrent use.
type KeyMap struct {
	order  []string
	values map[string]any
}

// NewKeyMap creates a KeyMap. System keys in initial are ignored.
func NewKeyMap(initial map[string]any, order []string) *KeyMap {
	m := &KeyMap{values: make(map[string]any, len(initial))}
	for _, k := range order {
		if v, ok := initial[k]; ok {
			_ = m.Set(k, v)
		}
	}
	for k, v := range initial {
		if !m.Has(k) {
			_ = m.Set(k, v)
		}
	}
	return m
}

// Set writes a value. New keys are appended to the iteration order.
func (m *KeyMap) Set(key string, value any) error {
	if IsSystemKey(key) {
		return &SystemKeyError{Key: key}
	}
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.order = append(m.order, key)
	}
	m.values[key] = value
	return nil
}

// Get returns the value stored under key.
func (m *KeyMap) Get(key string) (any, error) {
	if IsSystemKey(key) {
		return nil, &SystemKeyError{Key: key}
	}
	return m.values[key], nil
}

// Delete removes key.
func (m *KeyMap) Delete(key string) error {
	if IsSystemKey(key) {
		return &SystemKeyError{Key: key}
	}
	if _, ok := m.values[key]; !ok {
		return nil
	}
	delete(m.values, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Has reports whether key is present.
func (m *KeyMap) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (m *KeyMap) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of keys.
func (m *KeyMap) Len() int {
	return len(m.order)
}

// Each calls fn for every key in insertion order.
func (m *KeyMap) Each(fn func(key string, value any)) {
	for _, k := range m.Keys() {
		fn(k, m.values[k])
	}
}

// Copy returns a shallow snapshot of the values.
func (m *KeyMap) Copy() map[string]any {
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
