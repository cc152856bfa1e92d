package interfaces

import (
	"context"
	"errors"

	"folio/internal/models"
)

// ErrKeyNotFound is returned when a key is not found in the credential store
var ErrKeyNotFound = errors.New("key not found")

// CredentialStore defines the durable key/value boundary used for session
// credentials. Writes are eventually durable; the in-memory copy held by a
// client is authoritative once loaded.
type CredentialStore interface {
	// Get retrieves a value by key, returns ErrKeyNotFound if absent
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or updates a key/value pair
	Set(ctx context.Context, key string, value string) error

	// Delete removes a key/value pair. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// ServerStore persists server registrations and the primary-server pointer
// across process restarts.
type ServerStore interface {
	// ListServers returns all registrations in insertion order
	ListServers(ctx context.Context) ([]models.Server, error)

	// SaveServer inserts or updates a registration
	SaveServer(ctx context.Context, server *models.Server) error

	// DeleteServer removes a registration. Deleting an absent id is not an error.
	DeleteServer(ctx context.Context, id string) error

	// PrimaryID returns the stored primary-server pointer, or "" if none is set
	PrimaryID(ctx context.Context) (string, error)

	// SetPrimaryID stores the primary-server pointer; "" clears it
	SetPrimaryID(ctx context.Context, id string) error
}
