package kavita

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/models"
)

func TestTestConnection(t *testing.T) {
	t.Run("Reachable Server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/Health" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client, err := NewClient(server.URL)
		require.NoError(t, err)
		assert.True(t, client.TestConnection(context.Background()))
	})

	t.Run("Connection Refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		client, err := NewClient(url)
		require.NoError(t, err)
		// No error escapes, only false
		assert.False(t, client.TestConnection(context.Background()))
	})
}

func TestNewClientNormalizesBaseURL(t *testing.T) {
	client, err := NewClient("http://192.168.1.50:5000/")
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.50:5000", client.BaseURL())

	_, err = NewClient("not a url")
	assert.Error(t, err)
}

func TestSeriesEnvelopeShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/Series/all-v2":
			writeJSON(w, map[string]interface{}{
				"result": []map[string]interface{}{
					{"id": 1, "name": "Alpha"},
					{"id": 2, "name": "Beta"},
				},
			})
		case "/api/Series/volumes":
			writeJSON(w, []map[string]interface{}{
				{"id": 10, "chapters": []map[string]interface{}{{"id": 100}, {"id": 101}}},
				{"id": 11, "chapters": []map[string]interface{}{{"id": 102}}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	series, err := client.Series(context.Background(), 1, 0, 50)
	require.NoError(t, err)
	require.Len(t, series, 2)

	// Page order preserved, both items enriched
	assert.Equal(t, "Alpha", series[0].Name)
	assert.Equal(t, "Beta", series[1].Name)
	for _, s := range series {
		assert.Equal(t, 2, s.VolumeCount)
		assert.Equal(t, 3, s.ChapterCount)
	}
}

func TestSeriesBareArrayShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/Series/all-v2":
			writeJSON(w, []map[string]interface{}{{"id": 7, "name": "Gamma"}})
		case "/api/Series/volumes":
			writeJSON(w, []map[string]interface{}{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	series, err := client.Series(context.Background(), 1, 0, 50)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "Gamma", series[0].Name)
}

func TestSeriesFallsBackOnUnrecognizedShape(t *testing.T) {
	var altCalled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/Series/all-v2":
			// Neither an envelope with a result field nor an array
			writeJSON(w, map[string]interface{}{})
		case "/api/Series/series":
			altCalled = true
			assert.Equal(t, "3", r.URL.Query().Get("libraryId"))
			writeJSON(w, []map[string]interface{}{{"id": 9, "name": "Delta"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	series, err := client.Series(context.Background(), 3, 0, 50)
	require.NoError(t, err)
	assert.True(t, altCalled)
	require.Len(t, series, 1)
	assert.Equal(t, "Delta", series[0].Name)
}

func TestSeriesSurfacesPrimaryErrorWhenFallbackFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/Series/all-v2":
			writeJSON(w, map[string]interface{}{})
		case "/api/Series/series":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.Series(context.Background(), 1, 0, 50)
	require.Error(t, err)
	// The primary endpoint's malformed-response error wins, not the fallback's 500
	assert.True(t, IsKind(err, KindMalformedResponse))
}

func TestSeriesEnrichmentFaultIsolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/Series/all-v2":
			writeJSON(w, []map[string]interface{}{
				{"id": 1, "name": "Alpha"},
				{"id": 2, "name": "Beta"},
				{"id": 3, "name": "Gamma"},
			})
		case "/api/Series/volumes":
			if r.URL.Query().Get("seriesId") == "2" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			writeJSON(w, []map[string]interface{}{
				{"id": 10, "chapters": []map[string]interface{}{{"id": 100}}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	series, err := client.Series(context.Background(), 1, 0, 50)
	require.NoError(t, err)
	require.Len(t, series, 3)

	// The failing item stays unenriched, the others carry derived counts
	assert.Equal(t, 1, series[0].VolumeCount)
	assert.Equal(t, 0, series[1].VolumeCount)
	assert.Equal(t, 0, series[1].ChapterCount)
	assert.Equal(t, 1, series[2].VolumeCount)

	// Page order untouched
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, []string{series[0].Name, series[1].Name, series[2].Name})
}

func TestRecordProgressNeverRaises(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	// Must not panic or surface the failure
	client.RecordProgress(context.Background(), 1, 2, 3, 4)
}

func TestWarmCacheFormatRouting(t *testing.T) {
	tests := []struct {
		name         string
		fileName     string
		format       models.MediaFormat
		wantBookInfo bool
		wantImage    bool
	}{
		{"Epub By Extension", "book.epub", models.FormatArchive, true, false},
		{"Pdf Skipped", "scan.pdf", models.FormatArchive, false, false},
		{"Extension Wins Over Format Code", "book.epub", models.FormatPdf, true, false},
		{"Archive Fetches First Page", "chapter.cbz", models.FormatArchive, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBookInfo, gotImage bool
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.URL.Path == "/api/Reader/chapter-info":
					writeJSON(w, map[string]interface{}{
						"fileName":     tt.fileName,
						"seriesFormat": int(tt.format),
					})
				case strings.HasSuffix(r.URL.Path, "/book-info"):
					gotBookInfo = true
					writeJSON(w, map[string]interface{}{"bookTitle": "x", "pages": 3})
				case r.URL.Path == "/api/Reader/image":
					gotImage = true
					assert.Equal(t, "0", r.URL.Query().Get("page"))
					w.WriteHeader(http.StatusOK)
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			client, err := NewClient(server.URL)
			require.NoError(t, err)

			client.WarmCache(context.Background(), 42)
			assert.Equal(t, tt.wantBookInfo, gotBookInfo)
			assert.Equal(t, tt.wantImage, gotImage)
		})
	}
}

func TestResourceURLsCarryAPIKey(t *testing.T) {
	store := newMemStore()
	store.Set(context.Background(), "server:srv1:api_key", "K1")

	client, err := NewClient("http://host:5000", WithCredentialStore(store, "srv1"))
	require.NoError(t, err)

	assert.Equal(t, "http://host:5000/api/Image/series-cover?apiKey=K1&seriesId=12", client.CoverURL(12))
	assert.Equal(t, "http://host:5000/api/Image/volume-cover?apiKey=K1&volumeId=5", client.VolumeCoverURL(5))
	assert.Equal(t, "http://host:5000/api/Image/chapter-cover?apiKey=K1&chapterId=7", client.ChapterCoverURL(7))
	assert.Equal(t, "http://host:5000/api/Reader/image?apiKey=K1&chapterId=7&page=3", client.PageImageURL(7, 3))
}

func TestResourceURLsWithoutAPIKey(t *testing.T) {
	client, err := NewClient("http://host:5000")
	require.NoError(t, err)

	assert.Equal(t, "http://host:5000/api/Image/series-cover?seriesId=12", client.CoverURL(12))
}

func TestBookPageReturnsRawContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/Book/9/book-page" {
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			fmt.Fprint(w, "<p>page content</p>")
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	content, err := client.BookPage(context.Background(), 9, 2)
	require.NoError(t, err)
	assert.Equal(t, "<p>page content</p>", content)
}

func TestErrorKindsFromStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusForbidden, KindForbidden},
		{http.StatusNotFound, KindNotFound},
		{http.StatusInternalServerError, KindServerError},
		{http.StatusBadGateway, KindServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("Status %d", tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
			}))
			defer server.Close()

			client, err := NewClient(server.URL)
			require.NoError(t, err)

			_, err = client.Libraries(context.Background())
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "expected kind %s, got %v", tt.kind, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, "nope", apiErr.Message)
		})
	}
}

func TestDecodeSeriesList(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantLen int
		wantErr bool
	}{
		{"Bare Array", `[{"id":1},{"id":2}]`, 2, false},
		{"Envelope", `{"result":[{"id":1}]}`, 1, false},
		{"Empty Object", `{}`, 0, true},
		{"Envelope With Non Array Result", `{"result":5}`, 0, true},
		{"Scalar", `"nope"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := decodeSeriesList([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsKind(err, KindMalformedResponse))
				return
			}
			require.NoError(t, err)
			assert.Len(t, list, tt.wantLen)
		})
	}
}
