package storage

import (
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"ecstore/internal/tag"
)

var bucketRows = []byte("rows")

// BoltStore implements Store backed by BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a BoltDB database in dir.
func NewBoltStore(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	dbPath := filepath.Join(dir, "rows.db")
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{NoSync: false})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRows)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get reads the row for key.
func (s *BoltStore) Get(key string) (*Row, error) {
	var row *Row
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRows).Get([]byte(key))
		if v == nil {
			return nil
		}
		r, err := UnmarshalRow(v)
		if err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
		row = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// PutFragment stores a fragment.
func (s *BoltStore) PutFragment(key string, index int, t tag.Tag, payload []byte) error {
	return s.update(key, func(row *Row) error {
		return row.applyFragment(index, t, payload)
	})
}

// AdvanceTag raises the metadata tag.
func (s *BoltStore) AdvanceTag(key string, t tag.Tag) error {
	return s.update(key, func(row *Row) error {
		return row.applyAdvance(t)
	})
}

// PutValue stores a full value.
func (s *BoltStore) PutValue(key string, t tag.Tag, value []byte) error {
	return s.update(key, func(row *Row) error {
		return row.applyValue(t, value)
	})
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// update runs a read-modify-write of one row inside a single transaction.
func (s *BoltStore) update(key string, fn func(*Row) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRows)

		row := NewRow(key)
		if v := b.Get([]byte(key)); v != nil {
			existing, err := UnmarshalRow(v)
			if err != nil {
				return fmt.Errorf("key %s: %w", key, err)
			}
			row = existing
		}
		if err := fn(row); err != nil {
			return err
		}
		return b.Put([]byte(key), MarshalRow(row))
	})
}
