package storage

import (
	"sync"

	"ecstore/internal/tag"
)

// Store defines the interface for replica row storage.
type Store interface {
	// Get returns a copy of the row for key, or nil if the key is unknown.
	Get(key string) (*Row, error)
	// PutFragment stores one fragment in slot index (>= 1). The slot is only
	// overwritten by a strictly larger tag; the metadata tag is advanced.
	PutFragment(key string, index int, t tag.Tag, payload []byte) error
	// AdvanceTag raises the metadata tag of key to t if t is larger.
	AdvanceTag(key string, t tag.Tag) error
	// PutValue stores a full value if t is larger than the stored tag.
	PutValue(key string, t tag.Tag, value []byte) error
	// Close releases the store's resources.
	Close() error
}

// InMemoryStore is an in-memory implementation of Store.
// It's thread-safe.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*Row
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rows: make(map[string]*Row),
	}
}

// Get retrieves the row for key.
func (s *InMemoryStore) Get(key string) (*Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.rows[key]
	if !exists {
		return nil, nil
	}
	// Return a copy to avoid external modifications
	return row.Clone(), nil
}

// PutFragment stores a fragment.
func (s *InMemoryStore) PutFragment(key string, index int, t tag.Tag, payload []byte) error {
	return s.update(key, func(row *Row) error {
		return row.applyFragment(index, t, payload)
	})
}

// AdvanceTag raises the metadata tag.
func (s *InMemoryStore) AdvanceTag(key string, t tag.Tag) error {
	return s.update(key, func(row *Row) error {
		return row.applyAdvance(t)
	})
}

// PutValue stores a full value.
func (s *InMemoryStore) PutValue(key string, t tag.Tag, value []byte) error {
	return s.update(key, func(row *Row) error {
		return row.applyValue(t, value)
	})
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}

// update applies fn to a copy of the row and installs it only on success.
func (s *InMemoryStore) update(key string, fn func(*Row) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := NewRow(key)
	if existing, exists := s.rows[key]; exists {
		row = existing.Clone()
	}
	if err := fn(row); err != nil {
		return err
	}
	s.rows[key] = row
	return nil
}
