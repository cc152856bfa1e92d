package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"folio/internal/interfaces"
)

// credentialRecord is the stored shape of a single credential key/value pair
type credentialRecord struct {
	Key       string `badgerhold:"key"`
	Value     string
	UpdatedAt time.Time
}

// CredentialStorage implements the CredentialStore interface for Badger
type CredentialStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCredentialStorage creates a new CredentialStorage instance
func NewCredentialStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CredentialStore {
	return &CredentialStorage{
		db:     db,
		logger: logger,
	}
}

// normalizeKey converts a key to lowercase for case-insensitive storage
func (s *CredentialStorage) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get retrieves a value by key (case-insensitive)
func (s *CredentialStorage) Get(ctx context.Context, key string) (string, error) {
	var record credentialRecord
	err := s.db.Store().Get(s.normalizeKey(key), &record)
	if err == badgerhold.ErrNotFound {
		return "", interfaces.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credential key: %w", err)
	}

	return record.Value, nil
}

// Set inserts or updates a key/value pair (case-insensitive)
func (s *CredentialStorage) Set(ctx context.Context, key string, value string) error {
	record := credentialRecord{
		Key:       s.normalizeKey(key),
		Value:     value,
		UpdatedAt: time.Now(),
	}

	if err := s.db.Store().Upsert(record.Key, &record); err != nil {
		return fmt.Errorf("failed to set credential key: %w", err)
	}

	return nil
}

// Delete removes a key/value pair. Deleting an absent key is not an error.
func (s *CredentialStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Delete(s.normalizeKey(key), &credentialRecord{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete credential key: %w", err)
	}
	return nil
}
