// Package nvram is the byte-level persistence capability: a small
// key-to-blob store backed by bbolt, standing in for the EEPROM the
// relay board firmware would use.
package nvram

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var bucket = []byte("nvram")

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open nvram file %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create nvram bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the blob stored under key, or nil when the key has never
// been written.
func (s *Store) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v != nil {
			out = make([]byte, len(v))
			copy(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read nvram key %s: %w", key, err)
	}
	return out, nil
}

func (s *Store) Put(key string, val []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), val)
	})
	if err != nil {
		return fmt.Errorf("failed to write nvram key %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete nvram key %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
