// Package registry owns the set of registered media servers and mediates
// access to their API clients. Clients are built lazily and cached per server
// id; any settings update evicts the cached client so the next access rebuilds
// it from fresh settings.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"folio/internal/common"
	"folio/internal/interfaces"
	"folio/internal/kavita"
	"folio/internal/models"
)

// ErrServerNotFound is returned when an operation names an unregistered server id
var ErrServerNotFound = errors.New("server not registered")

// ErrNoServers is returned when no server is registered
var ErrNoServers = errors.New("no servers registered")

// ClientEntry pairs a live client with its registration, used for fan-out
type ClientEntry struct {
	ServerID string
	Server   models.Server
	Client   *kavita.Client
}

// Registry holds the configured remote servers, designates a primary server,
// and caches one live client per server id.
type Registry struct {
	logger      arbor.ILogger
	serverStore interfaces.ServerStore
	credStore   interfaces.CredentialStore
	clientOpts  []kavita.ClientOption
	validate    *validator.Validate

	mu        sync.Mutex
	servers   []models.Server
	primaryID string
	clients   map[string]*kavita.Client
}

// Option configures the Registry
type Option func(*Registry)

// WithClientOptions appends options applied to every client the registry builds
func WithClientOptions(opts ...kavita.ClientOption) Option {
	return func(r *Registry) {
		r.clientOpts = append(r.clientOpts, opts...)
	}
}

// NewRegistry creates a registry backed by the given stores, loading any
// persisted registrations and the primary pointer.
func NewRegistry(ctx context.Context, serverStore interfaces.ServerStore, credStore interfaces.CredentialStore, logger arbor.ILogger, opts ...Option) (*Registry, error) {
	r := &Registry{
		logger:      logger,
		serverStore: serverStore,
		credStore:   credStore,
		validate:    validator.New(),
		clients:     make(map[string]*kavita.Client),
	}
	for _, opt := range opts {
		opt(r)
	}

	servers, err := serverStore.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load server registrations: %w", err)
	}
	primaryID, err := serverStore.PrimaryID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary server pointer: %w", err)
	}

	r.servers = servers
	r.primaryID = primaryID

	logger.Debug().Int("servers", len(servers)).Str("primary_id", primaryID).Msg("Server registry loaded")
	return r, nil
}

// AddServer registers a new server. The base URL is normalized once here; the
// first registered server becomes primary.
func (r *Registry) AddServer(ctx context.Context, descriptor models.Server) (*models.Server, error) {
	normalized, err := models.NormalizeBaseURL(descriptor.URL)
	if err != nil {
		return nil, err
	}

	server := descriptor
	server.ID = common.NewServerID()
	server.URL = normalized
	if server.Type == "" {
		server.Type = models.ServerTypeKavita
	}

	if err := r.validate.Struct(&server); err != nil {
		return nil, fmt.Errorf("invalid server registration: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.serverStore.SaveServer(ctx, &server); err != nil {
		return nil, err
	}
	r.servers = append(r.servers, server)

	if r.primaryID == "" {
		if err := r.setPrimaryLocked(ctx, server.ID); err != nil {
			return nil, err
		}
	}

	r.logger.Info().Str("server_id", server.ID).Str("name", server.Name).Str("url", server.URL).Msg("Server registered")
	return &server, nil
}

// RemoveServer removes a registration, evicts its cached client, deletes its
// stored credentials, and promotes the first remaining server to primary if
// the removed one was primary (or clears the pointer if none remain).
func (r *Registry) RemoveServer(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.indexLocked(id)
	if index < 0 {
		return ErrServerNotFound
	}

	if err := r.serverStore.DeleteServer(ctx, id); err != nil {
		return err
	}

	delete(r.clients, id)
	r.clearCredentialsLocked(ctx, id)
	r.servers = append(r.servers[:index], r.servers[index+1:]...)

	if r.primaryID == id {
		next := ""
		if len(r.servers) > 0 {
			next = r.servers[0].ID
		}
		if err := r.setPrimaryLocked(ctx, next); err != nil {
			return err
		}
	}

	r.logger.Info().Str("server_id", id).Msg("Server removed")
	return nil
}

// UpdateServer applies explicit settings updates and unconditionally evicts
// the cached client so the next access rebuilds it from fresh settings.
func (r *Registry) UpdateServer(ctx context.Context, id string, patch models.ServerPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.indexLocked(id)
	if index < 0 {
		return ErrServerNotFound
	}

	server := r.servers[index]
	if patch.Name != nil {
		server.Name = *patch.Name
	}
	if patch.URL != nil {
		normalized, err := models.NormalizeBaseURL(*patch.URL)
		if err != nil {
			return err
		}
		server.URL = normalized
	}
	if patch.Type != nil {
		server.Type = *patch.Type
	}

	if err := r.validate.Struct(&server); err != nil {
		return fmt.Errorf("invalid server update: %w", err)
	}

	if err := r.serverStore.SaveServer(ctx, &server); err != nil {
		return err
	}

	r.servers[index] = server
	delete(r.clients, id)

	r.logger.Info().Str("server_id", id).Msg("Server updated, cached client evicted")
	return nil
}

// SetPrimary repoints the primary pointer. An unregistered id is rejected
// rather than silently accepted, so the pointer can never go stale.
func (r *Registry) SetPrimary(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(id) < 0 {
		return ErrServerNotFound
	}
	return r.setPrimaryLocked(ctx, id)
}

// Servers returns a snapshot of all registrations in insertion order
func (r *Registry) Servers() []models.Server {
	r.mu.Lock()
	defer r.mu.Unlock()

	servers := make([]models.Server, len(r.servers))
	copy(servers, r.servers)
	return servers
}

// PrimaryID returns the current primary server id, or "" if none
func (r *Registry) PrimaryID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primaryID
}

// Client returns the cached client for a server id, building it on first
// access. The instance stays cached until the registration is removed or
// updated; authentication failures never evict it.
func (r *Registry) Client(id string) (*kavita.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clientLocked(id)
}

// PrimaryClient resolves the primary server (falling back to the first
// registered server if no explicit primary is set) and returns its client.
func (r *Registry) PrimaryClient() (*kavita.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.primaryID
	if id == "" {
		if len(r.servers) == 0 {
			return nil, ErrNoServers
		}
		id = r.servers[0].ID
	}
	return r.clientLocked(id)
}

// AllClients returns the full registry with live client handles, used for
// cross-server fan-out.
func (r *Registry) AllClients() []ClientEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]ClientEntry, 0, len(r.servers))
	for _, server := range r.servers {
		client, err := r.clientLocked(server.ID)
		if err != nil {
			r.logger.Warn().Str("server_id", server.ID).Str("error", err.Error()).Msg("Failed to build client for server")
			continue
		}
		entries = append(entries, ClientEntry{
			ServerID: server.ID,
			Server:   server,
			Client:   client,
		})
	}
	return entries
}

// clientLocked builds-and-caches or returns the cached client for a server id.
// Caller must hold r.mu.
func (r *Registry) clientLocked(id string) (*kavita.Client, error) {
	if client, ok := r.clients[id]; ok {
		return client, nil
	}

	index := r.indexLocked(id)
	if index < 0 {
		return nil, ErrServerNotFound
	}
	server := r.servers[index]

	opts := append([]kavita.ClientOption{
		kavita.WithCredentialStore(r.credStore, server.ID),
		kavita.WithLogger(r.logger),
	}, r.clientOpts...)

	client, err := kavita.NewClient(server.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build client for server %s: %w", id, err)
	}

	r.clients[id] = client
	return client, nil
}

// setPrimaryLocked persists and applies the primary pointer. Caller must hold r.mu.
func (r *Registry) setPrimaryLocked(ctx context.Context, id string) error {
	if err := r.serverStore.SetPrimaryID(ctx, id); err != nil {
		return err
	}
	r.primaryID = id
	return nil
}

// indexLocked returns the index of a server id, or -1. Caller must hold r.mu.
func (r *Registry) indexLocked(id string) int {
	for i := range r.servers {
		if r.servers[i].ID == id {
			return i
		}
	}
	return -1
}

// clearCredentialsLocked removes a removed server's stored credential keys.
// Caller must hold r.mu.
func (r *Registry) clearCredentialsLocked(ctx context.Context, id string) {
	if r.credStore == nil {
		return
	}
	for _, field := range []string{"token", "refresh_token", "api_key"} {
		key := fmt.Sprintf("server:%s:%s", id, field)
		if err := r.credStore.Delete(ctx, key); err != nil {
			r.logger.Warn().Str("key", key).Str("error", err.Error()).Msg("Failed to remove stored credential for removed server")
		}
	}
}
