package discover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanatlas/coffee-cli/internal/fetch"
	"github.com/beanatlas/coffee-cli/internal/model"
)

func testFetcher() *fetch.Client {
	return fetch.New(fetch.Options{
		Timeout:           5 * time.Second,
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
}

// siteRecorder tracks which paths a crawl actually requested.
type siteRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *siteRecorder) record(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
}

func (r *siteRecorder) requested() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func storefront(t *testing.T, pages map[string]string) (*httptest.Server, *siteRecorder) {
	t.Helper()
	rec := &siteRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r.URL.Path)
		html, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return server, rec
}

const kenyaProductHTML = `<html><head><title>Kenya AA | Drift Coffee</title>
<meta name="description" content="Bright washed lot from Nyeri.">
</head><body>
<div itemtype="https://schema.org/Product" class="product-info">
<h1>Kenya AA</h1>
<span class="price">$21.50</span>
<form><select name="size"><option>250g</option><option>500g</option></select>
<button type="submit">Add to Cart</button></form>
<p>Roast level: light. Tasting notes of blackcurrant and plum. Grown at high altitude.</p>
</div></body></html>`

const storefrontHomeHTML = `<html><head><title>Drift Coffee</title></head><body>
<a href="/collections/coffee">Shop Coffee</a>
<a href="/blog/news">News</a>
<a href="/about">About</a>
<a href="mailto:hello@drift.example">Email</a>
<a href="/logo.png">Logo</a>
<a href="https://instagram.com/driftcoffee">Instagram</a>
</body></html>`

const storefrontListHTML = `<html><head><title>Coffee | Drift Coffee</title></head><body>
<a href="/products/kenya-aa">Kenya AA</a>
<a href="/products/house-blend">House Blend</a>
<a href="/cart">Cart</a>
</body></html>`

const storefrontAboutHTML = `<html><head><title>About | Drift Coffee</title></head>
<body><h1>About</h1><p>We roast in small batches.</p></body></html>`

func TestLocalDiscoverer_Discover(t *testing.T) {
	server, rec := storefront(t, map[string]string{
		"/":                     storefrontHomeHTML,
		"/collections/coffee":   storefrontListHTML,
		"/products/kenya-aa":    kenyaProductHTML,
		"/products/house-blend": houseBlendHTML,
		"/about":                storefrontAboutHTML,
	})

	d := NewLocalDiscoverer(testFetcher(), NewPathMatcher(nil, nil), 0, 0)
	site := model.Site{RoasterID: "drift", Name: "Drift Coffee", URL: server.URL}
	result, err := d.Discover(context.Background(), site, 10)

	require.NoError(t, err)
	assert.Equal(t, "local", result.Source)
	assert.Equal(t, 5, result.Scanned)
	require.Len(t, result.Candidates, 2)

	kenya := result.Candidates[0]
	assert.Equal(t, server.URL+"/products/kenya-aa", kenya.URL)
	assert.Equal(t, "Kenya AA", kenya.Title)
	assert.Equal(t, "Bright washed lot from Nyeri.", kenya.Description)
	assert.NotEmpty(t, kenya.HTML)
	assert.NotEmpty(t, kenya.Text)
	assert.Equal(t, 200, kenya.StatusCode)

	blend := result.Candidates[1]
	assert.Equal(t, server.URL+"/products/house-blend", blend.URL)
	assert.Greater(t, kenya.Score, blend.Score)

	requested := rec.requested()
	assert.Contains(t, requested, "/about")
	assert.NotContains(t, requested, "/blog/news", "excluded paths are never fetched")
	assert.NotContains(t, requested, "/cart")
	assert.NotContains(t, requested, "/logo.png", "asset links are never fetched")
}

func TestLocalDiscoverer_StopsAtMaxPages(t *testing.T) {
	server, rec := storefront(t, map[string]string{
		"/":               `<a href="/products/one">One</a><a href="/products/two">Two</a><a href="/products/three">Three</a>`,
		"/products/one":   houseBlendHTML,
		"/products/two":   houseBlendHTML,
		"/products/three": houseBlendHTML,
	})

	d := NewLocalDiscoverer(testFetcher(), NewPathMatcher(nil, nil), 2, 0)
	site := model.Site{RoasterID: "drift", URL: server.URL}
	result, err := d.Discover(context.Background(), site, 10)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Len(t, result.Candidates, 1)
	assert.Len(t, rec.requested(), 2)
}

func TestLocalDiscoverer_StopsAtMaxCandidates(t *testing.T) {
	server, rec := storefront(t, map[string]string{
		"/":               `<a href="/products/one">One</a><a href="/products/two">Two</a><a href="/products/three">Three</a>`,
		"/products/one":   houseBlendHTML,
		"/products/two":   houseBlendHTML,
		"/products/three": houseBlendHTML,
	})

	d := NewLocalDiscoverer(testFetcher(), NewPathMatcher(nil, nil), 0, 0)
	site := model.Site{RoasterID: "drift", URL: server.URL}
	result, err := d.Discover(context.Background(), site, 2)

	require.NoError(t, err)
	assert.Len(t, result.Candidates, 2)
	assert.Len(t, rec.requested(), 3, "crawl stops once enough candidates are found")
}

func TestLocalDiscoverer_FetchFailuresSkip(t *testing.T) {
	rec := &siteRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r.URL.Path)
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<a href="/products/broken">Broken</a><a href="/products/kenya-aa">Kenya</a>`))
		case "/products/kenya-aa":
			_, _ = w.Write([]byte(kenyaProductHTML))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	d := NewLocalDiscoverer(testFetcher(), NewPathMatcher(nil, nil), 0, 0)
	site := model.Site{RoasterID: "drift", URL: server.URL}
	result, err := d.Discover(context.Background(), site, 10)

	require.NoError(t, err, "a failing page skips, it does not abort the crawl")
	assert.Equal(t, 2, result.Scanned, "failed fetches are not counted as scanned")
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, server.URL+"/products/kenya-aa", result.Candidates[0].URL)
}

func TestLocalDiscoverer_CanceledContext(t *testing.T) {
	server, rec := storefront(t, map[string]string{"/": storefrontHomeHTML})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewLocalDiscoverer(testFetcher(), NewPathMatcher(nil, nil), 0, 0)
	site := model.Site{RoasterID: "drift", URL: server.URL}
	_, err := d.Discover(ctx, site, 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "local crawl canceled")
	assert.Empty(t, rec.requested())
}

func TestLocalDiscoverer_NoURL(t *testing.T) {
	d := NewLocalDiscoverer(testFetcher(), NewPathMatcher(nil, nil), 0, 0)

	_, err := d.Discover(context.Background(), model.Site{RoasterID: "drift"}, 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no url")
}
