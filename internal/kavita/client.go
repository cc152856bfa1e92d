// Package kavita provides a typed client for the Kavita media server REST API.
// It owns per-server session credentials, transparently refreshes expired
// bearer tokens, and maps failures into classified errors.
package kavita

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"folio/internal/interfaces"
	"folio/internal/models"
)

const (
	// DefaultTimeout is the fixed wall-clock bound applied to every request.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10

	// DefaultEnrichmentConcurrency bounds the per-series volume fetches that
	// run during listing enrichment.
	DefaultEnrichmentConcurrency = 8
)

// API endpoint paths
const (
	healthPath         = "/api/Health"
	loginPath          = "/api/Account/login"
	librariesPath      = "/api/Library/libraries"
	seriesAllPath      = "/api/Series/all-v2"
	seriesAltPath      = "/api/Series/series"
	seriesPath         = "/api/Series"
	volumesPath        = "/api/Series/volumes"
	chaptersPath       = "/api/Series/chapter"
	chapterInfoPath    = "/api/Reader/chapter-info"
	progressPath       = "/api/Reader/progress"
	readerImagePath    = "/api/Reader/image"
	seriesCoverPath    = "/api/Image/series-cover"
	volumeCoverPath    = "/api/Image/volume-cover"
	chapterCoverPath   = "/api/Image/chapter-cover"
	bookInfoFormat     = "/api/Book/%d/book-info"
	bookPageFormat     = "/api/Book/%d/book-page"
	bookChaptersFormat = "/api/Book/%d/chapters"
)

// Client is a typed Kavita API client bound to a single server.
type Client struct {
	baseURL     string
	transport   *transport
	logger      arbor.ILogger
	enrichLimit int
}

// ClientOption configures the Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	serverID    string
	store       interfaces.CredentialStore
	httpClient  *http.Client
	logger      arbor.ILogger
	timeout     time.Duration
	limiter     *rate.Limiter
	enrichLimit int
}

// WithCredentialStore attaches a durable credential store scoped to the given
// server id. Without a store the client keeps credentials in memory only.
func WithCredentialStore(store interfaces.CredentialStore, serverID string) ClientOption {
	return func(c *clientConfig) {
		c.store = store
		c.serverID = serverID
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithTimeout overrides the fixed per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *clientConfig) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithEnrichmentConcurrency bounds the concurrent per-series enrichment fetches.
func WithEnrichmentConcurrency(limit int) ClientOption {
	return func(c *clientConfig) {
		if limit > 0 {
			c.enrichLimit = limit
		}
	}
}

// NewClient creates a client for the server at baseURL. The base URL is
// normalized once here; it is never re-derived elsewhere.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	normalized, err := models.NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	cfg := &clientConfig{
		timeout:     DefaultTimeout,
		limiter:     rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		enrichLimit: DefaultEnrichmentConcurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = arbor.NewLogger()
	}

	t := newTransport(normalized, cfg.serverID, cfg.store, cfg.timeout, cfg.limiter, cfg.logger)
	if cfg.httpClient != nil {
		t.httpClient = cfg.httpClient
	}

	return &Client{
		baseURL:     normalized,
		transport:   t,
		logger:      cfg.logger,
		enrichLimit: cfg.enrichLimit,
	}, nil
}

// BaseURL returns the normalized server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Credentials returns a snapshot of the current session credentials
func (c *Client) Credentials() models.SessionCredentials {
	return c.transport.credentials()
}

// TestConnection issues a lightweight health probe. It never returns an
// error: any failure, including timeout, resolves to false so callers can
// try-before-commit during the connect flow.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.transport.do(ctx, http.MethodGet, healthPath, nil, nil)
	if err != nil {
		c.logger.Debug().
			Str("url", c.baseURL).
			Str("error", err.Error()).
			Msg("Connection test failed")
		return false
	}
	return true
}

// Login authenticates and stores all three credential fields atomically, in
// memory and in the credential store.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	data, err := c.transport.do(ctx, http.MethodPost, loginPath, map[string]string{
		"username": username,
		"password": password,
	}, nil)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, &APIError{Kind: KindMalformedResponse, Endpoint: loginPath, Message: "failed to decode login response"}
	}

	if err := c.transport.setCredentials(ctx, models.SessionCredentials{
		Token:        user.Token,
		RefreshToken: user.RefreshToken,
		APIKey:       user.APIKey,
	}); err != nil {
		return nil, err
	}

	c.logger.Info().Str("username", user.Username).Str("url", c.baseURL).Msg("Authenticated with server")
	return &user, nil
}

// Logout clears all three credential fields from memory and durable storage
func (c *Client) Logout(ctx context.Context) {
	c.transport.clearCredentials(ctx)
}

// Libraries lists the server's libraries
func (c *Client) Libraries(ctx context.Context) ([]models.Library, error) {
	data, err := c.transport.do(ctx, http.MethodGet, librariesPath, nil, nil)
	if err != nil {
		return nil, err
	}

	var libraries []models.Library
	if err := json.Unmarshal(data, &libraries); err != nil {
		return nil, &APIError{Kind: KindMalformedResponse, Endpoint: librariesPath, Message: "failed to decode libraries response"}
	}
	return libraries, nil
}

// Series lists one page of series in a library, enriched with derived volume
// and chapter counts. The primary endpoint's response may be an envelope with
// a result field or a bare array; any other shape, or an outright failure,
// triggers one retry against the alternate listing endpoint before the
// primary error is surfaced.
func (c *Client) Series(ctx context.Context, libraryID, page, pageSize int) ([]models.Series, error) {
	list, err := c.seriesPrimary(ctx, libraryID, page, pageSize)
	if err != nil {
		c.logger.Warn().
			Int("library_id", libraryID).
			Str("error", err.Error()).
			Msg("Primary series endpoint failed, trying alternate endpoint")

		alt, fallbackErr := c.seriesFallback(ctx, libraryID, page, pageSize)
		if fallbackErr != nil {
			// Surface the primary error, not the fallback's
			return nil, err
		}
		return alt, nil
	}

	c.enrichSeries(ctx, list)
	return list, nil
}

func (c *Client) seriesPrimary(ctx context.Context, libraryID, page, pageSize int) ([]models.Series, error) {
	data, err := c.transport.do(ctx, http.MethodPost, seriesAllPath, map[string]int{
		"libraryId":  libraryID,
		"pageNumber": page,
		"pageSize":   pageSize,
	}, nil)
	if err != nil {
		return nil, err
	}

	return decodeSeriesList(data)
}

func (c *Client) seriesFallback(ctx context.Context, libraryID, page, pageSize int) ([]models.Series, error) {
	query := url.Values{}
	query.Set("libraryId", strconv.Itoa(libraryID))
	query.Set("pageNumber", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))

	data, err := c.transport.do(ctx, http.MethodGet, seriesAltPath, nil, query)
	if err != nil {
		return nil, err
	}

	var list []models.Series
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &APIError{Kind: KindMalformedResponse, Endpoint: seriesAltPath, Message: "failed to decode series response"}
	}
	return list, nil
}

// decodeSeriesList resolves the two accepted listing shapes as a tagged
// union: a bare JSON array, or an envelope carrying a result field. Any other
// shape is a malformed response.
func decodeSeriesList(data []byte) ([]models.Series, error) {
	var list []models.Series
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Result != nil {
		if err := json.Unmarshal(envelope.Result, &list); err == nil {
			return list, nil
		}
	}

	return nil, &APIError{
		Kind:     KindMalformedResponse,
		Endpoint: seriesAllPath,
		Message:  "series response is neither an envelope with a result field nor an array",
	}
}

// enrichSeries attaches derived volume and chapter counts to each series with
// one concurrent volumes fetch per item. An item whose fetch fails stays
// unenriched; the page order is preserved since enrichment writes in place.
func (c *Client) enrichSeries(ctx context.Context, list []models.Series) {
	if len(list) == 0 {
		return
	}

	sem := make(chan struct{}, c.enrichLimit)
	var wg sync.WaitGroup

	for i := range list {
		wg.Add(1)
		sem <- struct{}{}
		go func(s *models.Series) {
			defer wg.Done()
			defer func() { <-sem }()

			volumes, err := c.Volumes(ctx, s.Id)
			if err != nil {
				c.logger.Warn().
					Int("series_id", s.Id).
					Str("error", err.Error()).
					Msg("Failed to fetch volumes for series enrichment")
				return
			}

			chapters := 0
			for _, v := range volumes {
				chapters += len(v.Chapters)
			}
			s.VolumeCount = len(volumes)
			s.ChapterCount = chapters
		}(&list[i])
	}

	wg.Wait()
}

// SeriesByID fetches a single series' metadata
func (c *Client) SeriesByID(ctx context.Context, seriesID int) (*models.Series, error) {
	endpoint := seriesPath + "/" + strconv.Itoa(seriesID)
	data, err := c.transport.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}

	var series models.Series
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, &APIError{Kind: KindMalformedResponse, Endpoint: endpoint, Message: "failed to decode series response"}
	}
	return &series, nil
}

// Volumes lists the volumes within a series
func (c *Client) Volumes(ctx context.Context, seriesID int) ([]models.Volume, error) {
	query := url.Values{}
	query.Set("seriesId", strconv.Itoa(seriesID))

	data, err := c.transport.do(ctx, http.MethodGet, volumesPath, nil, query)
	if err != nil {
		return nil, err
	}

	var volumes []models.Volume
	if err := json.Unmarshal(data, &volumes); err != nil {
		return nil, &APIError{Kind: KindMalformedResponse, Endpoint: volumesPath, Message: "failed to decode volumes response"}
	}
	return volumes, nil
}

// Chapters lists the chapters within a volume
func (c *Client) Chapters(ctx context.Context, volumeID int) ([]models.Chapter, error) {
	query := url.Values{}
	query.Set("volumeId", strconv.Itoa(volumeID))

	data, err := c.transport.do(ctx, http.MethodGet, chaptersPath, nil, query)
	if err != nil {
		return nil, err
	}

	var chapters []models.Chapter
	if err := json.Unmarshal(data, &chapters); err != nil {
		return nil, &APIError{Kind: KindMalformedResponse, Endpoint: chaptersPath, Message: "failed to decode chapters response"}
	}
	return chapters, nil
}

// ChapterInfo fetches the metadata used to route a chapter to the correct
// rendering strategy
func (c *Client) ChapterInfo(ctx context.Context, chapterID int) (*models.ChapterInfo, error) {
	query := url.Values{}
	query.Set("chapterId", strconv.Itoa(chapterID))

	data, err := c.transport.do(ctx, http.MethodGet, chapterInfoPath, nil, query)
	if err != nil {
		return nil, err
	}

	var info models.ChapterInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &APIError{Kind: KindMalformedResponse, Endpoint: chapterInfoPath, Message: "failed to decode chapter info response"}
	}
	return &info, nil
}
