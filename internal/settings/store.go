package settings

import (
	"fmt"

	"github.com/poolhouse/poolhouse-controller/internal/nvram"
)

const storageKey = "settings"

// Store round-trips the settings record to non-volatile storage as one
// whole-record blob. There is no partial update.
type Store struct {
	nv *nvram.Store
}

func NewStore(nv *nvram.Store) *Store {
	return &Store{nv: nv}
}

// Load returns ErrNotFound when storage is blank or carries a record
// with a stale version tag.
func (s *Store) Load() (*Record, error) {
	data, err := s.nv.Get(storageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	var rec Record
	if err := rec.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) Save(rec *Record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.nv.Put(storageKey, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Erase drops the stored record so the next Load falls back to defaults.
func (s *Store) Erase() error {
	return s.nv.Delete(storageKey)
}
