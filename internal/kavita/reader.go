package kavita

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"folio/internal/models"
)

// BookInfo fetches the paginated-document metadata for a book-backed chapter
func (c *Client) BookInfo(ctx context.Context, chapterID int) (*models.BookInfo, error) {
	endpoint := fmt.Sprintf(bookInfoFormat, chapterID)
	data, err := c.transport.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}

	var info models.BookInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, &APIError{Kind: KindMalformedResponse, Endpoint: endpoint, Message: "failed to decode book info response"}
	}
	return &info, nil
}

// BookPage fetches one page of a paginated document as raw content
func (c *Client) BookPage(ctx context.Context, chapterID, page int) (string, error) {
	endpoint := fmt.Sprintf(bookPageFormat, chapterID)
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))

	data, err := c.transport.do(ctx, http.MethodGet, endpoint, nil, query)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// BookChapters lists the table-of-contents entries of a book-backed chapter
func (c *Client) BookChapters(ctx context.Context, chapterID int) ([]models.BookChapter, error) {
	endpoint := fmt.Sprintf(bookChaptersFormat, chapterID)
	data, err := c.transport.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}

	var chapters []models.BookChapter
	if err := json.Unmarshal(data, &chapters); err != nil {
		return nil, &APIError{Kind: KindMalformedResponse, Endpoint: endpoint, Message: "failed to decode book chapters response"}
	}
	return chapters, nil
}

// WarmCache hints the server to prepare a chapter for reading. Best-effort:
// failures are logged, never returned. Book formats trigger server-side
// extraction via the metadata probe; image-backed formats fetch the first
// page; PDFs are skipped since extraction happens on demand and pre-caching
// risks timeouts.
func (c *Client) WarmCache(ctx context.Context, chapterID int) {
	info, err := c.ChapterInfo(ctx, chapterID)
	if err != nil {
		c.logger.Debug().Int("chapter_id", chapterID).Str("error", err.Error()).Msg("Cache warm skipped: chapter info unavailable")
		return
	}

	switch info.Kind() {
	case models.ContentKindEpub:
		if _, err := c.BookInfo(ctx, chapterID); err != nil {
			c.logger.Debug().Int("chapter_id", chapterID).Str("error", err.Error()).Msg("Cache warm failed for book chapter")
			return
		}
	case models.ContentKindPdf:
		c.logger.Debug().Int("chapter_id", chapterID).Msg("Cache warm skipped for PDF chapter")
		return
	default:
		query := url.Values{}
		query.Set("chapterId", strconv.Itoa(chapterID))
		query.Set("page", "0")
		if apiKey := c.transport.apiKey(ctx); apiKey != "" {
			query.Set("apiKey", apiKey)
		}
		if _, err := c.transport.do(ctx, http.MethodGet, readerImagePath, nil, query); err != nil {
			c.logger.Debug().Int("chapter_id", chapterID).Str("error", err.Error()).Msg("Cache warm failed for image chapter")
			return
		}
	}

	c.logger.Debug().Int("chapter_id", chapterID).Msg("Chapter cache warmed")
}

// RecordProgress records the reading position for a chapter. Fire-and-forget:
// failures are logged, never returned, so progress tracking cannot block
// reading.
func (c *Client) RecordProgress(ctx context.Context, seriesID, volumeID, chapterID, page int) {
	_, err := c.transport.do(ctx, http.MethodPost, progressPath, map[string]int{
		"seriesId":  seriesID,
		"volumeId":  volumeID,
		"chapterId": chapterID,
		"pageNum":   page,
	}, nil)
	if err != nil {
		c.logger.Warn().
			Int("series_id", seriesID).
			Int("chapter_id", chapterID).
			Int("page", page).
			Str("error", err.Error()).
			Msg("Failed to record reading progress")
	}
}

// CoverURL returns the authenticated cover image URL for a series. URL
// builders are pure: they carry the long-lived API key as a query parameter
// because image loaders cannot attach custom headers.
func (c *Client) CoverURL(seriesID int) string {
	query := url.Values{}
	query.Set("seriesId", strconv.Itoa(seriesID))
	return c.resourceURL(seriesCoverPath, query)
}

// VolumeCoverURL returns the authenticated cover image URL for a volume
func (c *Client) VolumeCoverURL(volumeID int) string {
	query := url.Values{}
	query.Set("volumeId", strconv.Itoa(volumeID))
	return c.resourceURL(volumeCoverPath, query)
}

// ChapterCoverURL returns the authenticated cover image URL for a chapter
func (c *Client) ChapterCoverURL(chapterID int) string {
	query := url.Values{}
	query.Set("chapterId", strconv.Itoa(chapterID))
	return c.resourceURL(chapterCoverPath, query)
}

// PageImageURL returns the authenticated image URL for one page of a chapter
func (c *Client) PageImageURL(chapterID, page int) string {
	query := url.Values{}
	query.Set("chapterId", strconv.Itoa(chapterID))
	query.Set("page", strconv.Itoa(page))
	return c.resourceURL(readerImagePath, query)
}

func (c *Client) resourceURL(path string, query url.Values) string {
	if apiKey := c.transport.apiKey(context.Background()); apiKey != "" {
		query.Set("apiKey", apiKey)
	}
	return c.baseURL + path + "?" + query.Encode()
}
