package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"folio/internal/interfaces"
	"folio/internal/models"
)

const primaryPointerKey = "primary_server"

// settingRecord holds registry-level settings such as the primary-server pointer
type settingRecord struct {
	Name  string `badgerhold:"key"`
	Value string
}

// ServerStorage implements the ServerStore interface for Badger
type ServerStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewServerStorage creates a new ServerStorage instance
func NewServerStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ServerStore {
	return &ServerStorage{
		db:     db,
		logger: logger,
	}
}

// ListServers returns all server registrations ordered by creation time
func (s *ServerStorage) ListServers(ctx context.Context) ([]models.Server, error) {
	var servers []models.Server
	err := s.db.Store().Find(&servers, badgerhold.Where("ID").Ne("").SortBy("CreatedAt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}

// SaveServer inserts or updates a server registration
func (s *ServerStorage) SaveServer(ctx context.Context, server *models.Server) error {
	if server.ID == "" {
		return fmt.Errorf("server ID is required")
	}

	now := time.Now()
	if server.CreatedAt.IsZero() {
		server.CreatedAt = now
	}
	server.UpdatedAt = now

	if err := s.db.Store().Upsert(server.ID, server); err != nil {
		return fmt.Errorf("failed to store server: %w", err)
	}
	return nil
}

// DeleteServer removes a server registration. Deleting an absent id is not an error.
func (s *ServerStorage) DeleteServer(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.Server{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return nil
}

// PrimaryID returns the stored primary-server pointer, or "" if none is set
func (s *ServerStorage) PrimaryID(ctx context.Context) (string, error) {
	var record settingRecord
	err := s.db.Store().Get(primaryPointerKey, &record)
	if err == badgerhold.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get primary server pointer: %w", err)
	}
	return record.Value, nil
}

// SetPrimaryID stores the primary-server pointer; "" clears it
func (s *ServerStorage) SetPrimaryID(ctx context.Context, id string) error {
	if id == "" {
		err := s.db.Store().Delete(primaryPointerKey, &settingRecord{})
		if err != nil && err != badgerhold.ErrNotFound {
			return fmt.Errorf("failed to clear primary server pointer: %w", err)
		}
		return nil
	}

	record := settingRecord{Name: primaryPointerKey, Value: id}
	if err := s.db.Store().Upsert(primaryPointerKey, &record); err != nil {
		return fmt.Errorf("failed to set primary server pointer: %w", err)
	}
	return nil
}
