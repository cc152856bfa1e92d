package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"folio/internal/interfaces"
	"folio/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestCredentialStorageRoundtrip(t *testing.T) {
	db := newTestDB(t)
	storage := NewCredentialStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "server:srv_1:token", "T1"))

	value, err := storage.Get(ctx, "server:srv_1:token")
	require.NoError(t, err)
	assert.Equal(t, "T1", value)

	// Overwrite
	require.NoError(t, storage.Set(ctx, "server:srv_1:token", "T2"))
	value, err = storage.Get(ctx, "server:srv_1:token")
	require.NoError(t, err)
	assert.Equal(t, "T2", value)
}

func TestCredentialStorageKeyNormalization(t *testing.T) {
	db := newTestDB(t)
	storage := NewCredentialStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "Server:SRV_1:Token", "T1"))

	value, err := storage.Get(ctx, "  server:srv_1:token  ")
	require.NoError(t, err)
	assert.Equal(t, "T1", value)
}

func TestCredentialStorageMissingKey(t *testing.T) {
	db := newTestDB(t)
	storage := NewCredentialStorage(db, arbor.NewLogger())
	ctx := context.Background()

	_, err := storage.Get(ctx, "server:srv_1:token")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestCredentialStorageDelete(t *testing.T) {
	db := newTestDB(t)
	storage := NewCredentialStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "server:srv_1:token", "T1"))
	require.NoError(t, storage.Delete(ctx, "server:srv_1:token"))

	_, err := storage.Get(ctx, "server:srv_1:token")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	// Deleting an absent key is not an error
	assert.NoError(t, storage.Delete(ctx, "server:srv_1:token"))
}

func TestServerStorageListOrdering(t *testing.T) {
	db := newTestDB(t)
	storage := NewServerStorage(db, arbor.NewLogger())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"srv_a", "srv_b", "srv_c"} {
		server := &models.Server{
			ID:        id,
			Name:      id,
			URL:       "http://" + id + ":5000",
			Type:      models.ServerTypeKavita,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, storage.SaveServer(ctx, server))
	}

	servers, err := storage.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 3)
	assert.Equal(t, "srv_a", servers[0].ID)
	assert.Equal(t, "srv_b", servers[1].ID)
	assert.Equal(t, "srv_c", servers[2].ID)
}

func TestServerStorageSaveUpdatesExisting(t *testing.T) {
	db := newTestDB(t)
	storage := NewServerStorage(db, arbor.NewLogger())
	ctx := context.Background()

	server := &models.Server{ID: "srv_a", Name: "A", URL: "http://a:5000", Type: models.ServerTypeKavita}
	require.NoError(t, storage.SaveServer(ctx, server))
	created := server.CreatedAt
	require.False(t, created.IsZero())

	server.Name = "A Renamed"
	require.NoError(t, storage.SaveServer(ctx, server))

	servers, err := storage.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "A Renamed", servers[0].Name)
	assert.Equal(t, created.Unix(), servers[0].CreatedAt.Unix())
}

func TestServerStorageSaveRequiresID(t *testing.T) {
	db := newTestDB(t)
	storage := NewServerStorage(db, arbor.NewLogger())

	err := storage.SaveServer(context.Background(), &models.Server{Name: "A", URL: "http://a:5000"})
	assert.Error(t, err)
}

func TestServerStorageDeleteAbsentID(t *testing.T) {
	db := newTestDB(t)
	storage := NewServerStorage(db, arbor.NewLogger())

	assert.NoError(t, storage.DeleteServer(context.Background(), "srv_missing"))
}

func TestServerStoragePrimaryPointer(t *testing.T) {
	db := newTestDB(t)
	storage := NewServerStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// Unset pointer reads as empty, not an error
	id, err := storage.PrimaryID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", id)

	require.NoError(t, storage.SetPrimaryID(ctx, "srv_a"))
	id, err = storage.PrimaryID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "srv_a", id)

	// Clearing with "" removes the pointer
	require.NoError(t, storage.SetPrimaryID(ctx, ""))
	id, err = storage.PrimaryID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", id)
}
