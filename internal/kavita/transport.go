package kavita

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"folio/internal/interfaces"
	"folio/internal/models"
)

const refreshPath = "/api/Account/refresh-token"

// Credential store field names, scoped per server id
const (
	fieldToken        = "token"
	fieldRefreshToken = "refresh_token"
	fieldAPIKey       = "api_key"
)

func credentialKey(serverID, field string) string {
	return fmt.Sprintf("server:%s:%s", serverID, field)
}

// requestState tracks the per-request retry lifecycle. Modeling the lifecycle
// as explicit states makes the at-most-one-retry guarantee structural: only a
// request still in stateSent may trigger a refresh.
type requestState int

const (
	stateSent requestState = iota
	stateAwaitingRefresh
	stateRetried
)

// transport issues HTTP requests against a fixed base URL with a bounded
// timeout, attaching the current bearer token and recovering exactly once from
// an authorization failure per originating request.
//
// The in-memory credentials are authoritative once loaded; the credential
// store is the recovery source across process restarts. Concurrent refreshes
// are tolerated: each overwrites the access token with an equally valid value.
type transport struct {
	baseURL    string
	serverID   string
	httpClient *http.Client
	store      interfaces.CredentialStore
	limiter    *rate.Limiter
	logger     arbor.ILogger

	mu     sync.Mutex
	creds  models.SessionCredentials
	loaded bool
}

func newTransport(baseURL, serverID string, store interfaces.CredentialStore, timeout time.Duration, limiter *rate.Limiter, logger arbor.ILogger) *transport {
	return &transport{
		baseURL:  baseURL,
		serverID: serverID,
		store:    store,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		logger:  logger,
	}
}

// do issues a request and recovers at most once from a 401 by refreshing the
// access token and re-issuing the original request. A 401 on the retried
// request is surfaced as-is.
func (t *transport) do(ctx context.Context, method, path string, body interface{}, query url.Values) ([]byte, error) {
	state := stateSent
	for {
		data, err := t.send(ctx, method, path, body, query)
		if err == nil {
			return data, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || state != stateSent {
			return nil, err
		}

		state = stateAwaitingRefresh
		if refreshErr := t.refresh(ctx); refreshErr != nil {
			t.logger.Warn().
				Str("endpoint", path).
				Str("error", refreshErr.Error()).
				Msg("Token refresh failed, clearing session credentials")
			t.clearCredentials(ctx)
			// Propagate the original authorization failure, not the refresh error
			return nil, err
		}
		state = stateRetried
	}
}

// send issues a single request attempt
func (t *transport) send(ctx context.Context, method, path string, body interface{}, query url.Values) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, classifyTransport(err, path)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	reqURL := t.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if token := t.bearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err, path)
	}

	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp.StatusCode, path, serverMessage(data))
	}

	return data, nil
}

// refresh calls the token-refresh endpoint with the current access+refresh
// pair and replaces the in-memory access token, persisting it. The refresh
// token is only rotated when the server returns a new one.
func (t *transport) refresh(ctx context.Context) error {
	t.mu.Lock()
	if t.creds.RefreshToken == "" {
		t.loadLocked(ctx)
	}
	token := t.creds.Token
	refreshToken := t.creds.RefreshToken
	t.mu.Unlock()

	if refreshToken == "" {
		return &APIError{
			Kind:     KindUnauthorized,
			Endpoint: refreshPath,
			Message:  "no refresh token available",
		}
	}

	payload, err := json.Marshal(map[string]string{
		"token":        token,
		"refreshToken": refreshToken,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err, refreshPath)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(err, refreshPath)
	}
	if resp.StatusCode >= 400 {
		return classifyStatus(resp.StatusCode, refreshPath, serverMessage(data))
	}

	var result struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(data, &result); err != nil || result.Token == "" {
		return &APIError{
			Kind:     KindMalformedResponse,
			Status:   resp.StatusCode,
			Endpoint: refreshPath,
			Message:  "refresh response missing token",
		}
	}

	t.mu.Lock()
	t.creds.Token = result.Token
	rotated := result.RefreshToken != "" && result.RefreshToken != t.creds.RefreshToken
	if rotated {
		t.creds.RefreshToken = result.RefreshToken
	}
	creds := t.creds
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Set(ctx, credentialKey(t.serverID, fieldToken), creds.Token); err != nil {
			t.logger.Warn().Str("error", err.Error()).Msg("Failed to persist refreshed access token")
		}
		if rotated {
			if err := t.store.Set(ctx, credentialKey(t.serverID, fieldRefreshToken), creds.RefreshToken); err != nil {
				t.logger.Warn().Str("error", err.Error()).Msg("Failed to persist rotated refresh token")
			}
		}
	}

	t.logger.Debug().Str("server_id", t.serverID).Msg("Access token refreshed")
	return nil
}

// bearerToken returns the current access token, lazily loading stored
// credentials on first use.
func (t *transport) bearerToken(ctx context.Context) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.creds.Token == "" {
		t.loadLocked(ctx)
	}
	return t.creds.Token
}

// apiKey returns the long-lived API key, lazily loading stored credentials on
// first use.
func (t *transport) apiKey(ctx context.Context) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.creds.APIKey == "" {
		t.loadLocked(ctx)
	}
	return t.creds.APIKey
}

// credentials returns a snapshot of the in-memory credential fields
func (t *transport) credentials() models.SessionCredentials {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.creds
}

// loadLocked populates empty in-memory fields from the credential store.
// Caller must hold t.mu.
func (t *transport) loadLocked(ctx context.Context) {
	if t.store == nil || t.loaded {
		return
	}
	t.loaded = true

	fields := []struct {
		name   string
		target *string
	}{
		{fieldToken, &t.creds.Token},
		{fieldRefreshToken, &t.creds.RefreshToken},
		{fieldAPIKey, &t.creds.APIKey},
	}
	for _, f := range fields {
		if *f.target != "" {
			continue
		}
		value, err := t.store.Get(ctx, credentialKey(t.serverID, f.name))
		if err != nil {
			if !errors.Is(err, interfaces.ErrKeyNotFound) {
				t.logger.Debug().Str("field", f.name).Str("error", err.Error()).Msg("Failed to load stored credential")
			}
			continue
		}
		*f.target = value
	}
}

// setCredentials replaces all three credential fields in memory and mirrors
// them into the credential store.
func (t *transport) setCredentials(ctx context.Context, creds models.SessionCredentials) error {
	t.mu.Lock()
	t.creds = creds
	t.loaded = true
	t.mu.Unlock()

	if t.store == nil {
		return nil
	}

	for field, value := range map[string]string{
		fieldToken:        creds.Token,
		fieldRefreshToken: creds.RefreshToken,
		fieldAPIKey:       creds.APIKey,
	} {
		if err := t.store.Set(ctx, credentialKey(t.serverID, field), value); err != nil {
			return fmt.Errorf("failed to persist %s: %w", field, err)
		}
	}
	return nil
}

// clearCredentials removes all three credential fields from memory and the
// credential store, forcing the caller back to an unauthenticated state.
func (t *transport) clearCredentials(ctx context.Context) {
	t.mu.Lock()
	t.creds = models.SessionCredentials{}
	t.loaded = true
	t.mu.Unlock()

	if t.store == nil {
		return
	}

	for _, field := range []string{fieldToken, fieldRefreshToken, fieldAPIKey} {
		if err := t.store.Delete(ctx, credentialKey(t.serverID, field)); err != nil {
			t.logger.Warn().Str("field", field).Str("error", err.Error()).Msg("Failed to remove stored credential")
		}
	}
}

// serverMessage extracts a human-readable message from an error response body
func serverMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}

	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
