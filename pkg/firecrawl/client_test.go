package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-api-key", WithBaseURL(srv.URL))
}

func TestCrawl(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crawl", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CrawlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, "https://drift.example", req.URL)
		assert.Equal(t, 3, req.MaxDepth)
		assert.Equal(t, 150, req.Limit)
		assert.Equal(t, []string{"/products/*", "/collections/*"}, req.IncludePaths)
		assert.Equal(t, []string{"/cart*", "/blog/*"}, req.ExcludePaths)
		if assert.NotNil(t, req.ScrapeOptions) {
			assert.Equal(t, []string{"markdown", "html"}, req.ScrapeOptions.Formats)
		}

		assert.NoError(t, json.NewEncoder(w).Encode(CrawlResponse{Success: true, ID: "crawl-123"}))
	})

	resp, err := client.Crawl(context.Background(), CrawlRequest{
		URL:           "https://drift.example",
		MaxDepth:      3,
		Limit:         150,
		IncludePaths:  []string{"/products/*", "/collections/*"},
		ExcludePaths:  []string{"/cart*", "/blog/*"},
		ScrapeOptions: &ScrapeOptions{Formats: []string{"markdown", "html"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "crawl-123", resp.ID)
}

func TestGetCrawlStatus(t *testing.T) {
	t.Parallel()

	pages := []PageData{
		{
			URL:        "https://drift.example/products/ethiopia-yirgacheffe",
			Markdown:   "# Ethiopia Yirgacheffe",
			HTML:       "<h1>Ethiopia Yirgacheffe</h1>",
			Title:      "Ethiopia Yirgacheffe",
			StatusCode: 200,
		},
		{
			URL:        "https://drift.example/products/house-blend",
			Markdown:   "# House Blend",
			Title:      "House Blend",
			StatusCode: 200,
		},
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/crawl/crawl-123", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Content-Type"), "GET carries no body")

		assert.NoError(t, json.NewEncoder(w).Encode(CrawlStatusResponse{
			Status: "completed",
			Total:  len(pages),
			Data:   pages,
		}))
	})

	resp, err := client.GetCrawlStatus(context.Background(), "crawl-123")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, pages, resp.Data)
}

func TestScrape(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)

		var req ScrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, "https://drift.example/products/house-blend", req.URL)
		assert.Equal(t, []string{"markdown"}, req.Formats)

		assert.NoError(t, json.NewEncoder(w).Encode(ScrapeResponse{
			Success: true,
			Data: PageData{
				URL:         "https://drift.example/products/house-blend",
				Markdown:    "# House Blend\nMedium roast, chocolate and caramel.",
				Title:       "House Blend",
				Description: "A balanced everyday medium roast.",
				StatusCode:  200,
			},
		}))
	})

	resp, err := client.Scrape(context.Background(), ScrapeRequest{
		URL:     "https://drift.example/products/house-blend",
		Formats: []string{"markdown"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "House Blend", resp.Data.Title)
	assert.Equal(t, "A balanced everyday medium roast.", resp.Data.Description)
}

func TestAPIStatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		call   func(Client) error
	}{
		{
			name:   "crawl unauthorized",
			status: 401,
			body:   `{"error":"Unauthorized"}`,
			call: func(c Client) error {
				_, err := c.Crawl(context.Background(), CrawlRequest{URL: "https://drift.example"})
				return err
			},
		},
		{
			name:   "crawl server error",
			status: 500,
			body:   `{"error":"internal server error"}`,
			call: func(c Client) error {
				_, err := c.Crawl(context.Background(), CrawlRequest{URL: "https://drift.example"})
				return err
			},
		},
		{
			name:   "status not found",
			status: 404,
			body:   `{"error":"not found"}`,
			call: func(c Client) error {
				_, err := c.GetCrawlStatus(context.Background(), "nonexistent")
				return err
			},
		},
		{
			name:   "scrape rate limited",
			status: 429,
			body:   `{"error":"rate limited"}`,
			call: func(c Client) error {
				_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://drift.example"})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := tt.call(client)
			require.Error(t, err)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.body, apiErr.Body)
		})
	}
}

func TestAPIErrorBodyTruncated(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", errorBodyLimit+200)))
	})

	_, err := client.Crawl(context.Background(), CrawlRequest{URL: "https://drift.example"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, apiErr.Body, errorBodyLimit+len("..."))
	assert.True(t, strings.HasSuffix(apiErr.Body, "..."))
}

func TestMalformedJSON(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	_, err := client.Scrape(context.Background(), ScrapeRequest{URL: "https://drift.example"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Crawl(ctx, CrawlRequest{URL: "https://drift.example"})
	require.Error(t, err)
	assert.Zero(t, calls.Load(), "a cancelled call never reaches the wire")
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	e := &APIError{StatusCode: 429, Body: `{"error":"rate limited"}`}
	assert.Equal(t, `firecrawl: HTTP 429: {"error":"rate limited"}`, e.Error())
	assert.Equal(t, 429, e.HTTPStatus())
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient("key").(*httpClient)
	assert.Equal(t, "key", c.apiKey)
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, time.Minute, c.http.Timeout)
}

func TestClientOptions(t *testing.T) {
	t.Parallel()

	custom := &http.Client{}
	c := NewClient("key", WithBaseURL("http://localhost:1"), WithHTTPClient(custom)).(*httpClient)
	assert.Equal(t, "http://localhost:1", c.baseURL)
	assert.Same(t, custom, c.http)
}
