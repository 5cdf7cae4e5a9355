package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/resilience"
	"github.com/beanatlas/coffee-cli/internal/store"
	"github.com/beanatlas/coffee-cli/internal/validate"
)

// productPages serves the single-product fixtures used by the one-shot
// scrape and replay tests.
func productPages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/midnight-blend":
			w.Write([]byte(midnightBlendHTML))
		case "/products/ceramic-dripper":
			w.Write([]byte(dripperHTML))
		default:
			http.NotFound(w, r)
		}
	}
}

func TestScrapeProduct_AcceptsCoffeePage(t *testing.T) {
	srv := httptest.NewServer(productPages())
	defer srv.Close()

	st := newTestStore(t)
	p := newTestPipeline(t, st, newScriptedEnricher(nil), &stubDiscoverer{})
	ctx := context.Background()

	result, err := p.ScrapeProduct(ctx, driftSite(srv.URL), srv.URL+"/products/midnight-blend")
	require.NoError(t, err)
	require.NotNil(t, result.Product)
	assert.Nil(t, result.Rejected)

	prod := result.Product
	assert.Equal(t, "Midnight Blend", prod.Name)
	assert.Equal(t, model.RoastDark, prod.RoastLevel)
	assert.Equal(t, model.BeanArabica, prod.BeanType)
	require.Len(t, prod.Prices, 1)
	assert.Equal(t, model.PriceEntry{SizeGrams: 250, Price: 18.00}, prod.Prices[0])
	assert.NotEmpty(t, prod.ID, "one-shot scrapes persist their record")

	products, err := st.ListProducts(ctx, store.ProductFilter{RoasterID: "roaster-drift"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, prod.NormalizedURL, products[0].NormalizedURL)
}

func TestScrapeProduct_RejectsGearPage(t *testing.T) {
	srv := httptest.NewServer(productPages())
	defer srv.Close()

	st := newTestStore(t)
	p := newTestPipeline(t, st, newScriptedEnricher(nil), &stubDiscoverer{})
	ctx := context.Background()

	result, err := p.ScrapeProduct(ctx, driftSite(srv.URL), srv.URL+"/products/ceramic-dripper")
	require.NoError(t, err, "a definitive rejection is an answer, not an error")
	assert.Nil(t, result.Product)
	require.NotNil(t, result.Rejected)
	assert.Equal(t, validate.StagePhase1, result.Rejected.Stage)
	assert.Contains(t, result.Rejected.Reasons, validate.ReasonNegativeKeyword)

	products, err := st.ListProducts(ctx, store.ProductFilter{RoasterID: "roaster-drift"})
	require.NoError(t, err)
	assert.Empty(t, products, "rejected pages never reach the store")
}

func TestScrapeProduct_FetchFailureIsTransientError(t *testing.T) {
	srv := httptest.NewServer(productPages())
	url := srv.URL
	srv.Close()

	st := newTestStore(t)
	p := newTestPipeline(t, st, newScriptedEnricher(nil), &stubDiscoverer{})

	_, err := p.ScrapeProduct(context.Background(), driftSite(url), url+"/products/midnight-blend")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err), "a refused connection is worth retrying")
}

func TestScrapeProduct_RejectsInvalidURL(t *testing.T) {
	st := newTestStore(t)
	p := newTestPipeline(t, st, newScriptedEnricher(nil), &stubDiscoverer{})

	_, err := p.ScrapeProduct(context.Background(), driftSite("https://drift.example"), "")
	require.Error(t, err)
}

func TestReplayDLQ_MixedOutcomes(t *testing.T) {
	srv := httptest.NewServer(productPages())
	defer srv.Close()

	dead := httptest.NewServer(productPages())
	deadURL := dead.URL
	dead.Close()

	st := newTestStore(t)
	p := newTestPipeline(t, st, newScriptedEnricher(nil), &stubDiscoverer{})
	ctx := context.Background()

	now := time.Now().UTC()
	seed := func(id, url string) {
		t.Helper()
		require.NoError(t, st.EnqueueDLQ(ctx, resilience.DLQEntry{
			ID:           id,
			URL:          url,
			RoasterID:    "roaster-drift",
			Error:        "fetch: http 503",
			ErrorType:    "transient",
			FailedStage:  "enrich",
			MaxRetries:   3,
			NextRetryAt:  now.Add(-time.Minute),
			CreatedAt:    now.Add(-2 * time.Hour),
			LastFailedAt: now.Add(-2 * time.Hour),
		}))
	}
	seed("dlq-recovers", srv.URL+"/products/midnight-blend")
	seed("dlq-rejects", srv.URL+"/products/ceramic-dripper")
	seed("dlq-requeues", deadURL+"/products/lost")
	seed("dlq-drops", srv.URL+"/gone")

	outcome, err := p.ReplayDLQ(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, 4, outcome.Replayed)
	assert.Equal(t, 1, outcome.Recovered)
	assert.Equal(t, 1, outcome.Rejected)
	assert.Equal(t, 1, outcome.Requeued, "connection refused stays worth a retry")
	assert.Equal(t, 1, outcome.Dropped, "a 404 is a permanent answer")

	// Only the transient failure is still parked, pushed past its backoff.
	count, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	due, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	assert.Empty(t, due, "the requeued entry is not due yet")

	// The recovered page landed in the store.
	products, err := st.ListProducts(ctx, store.ProductFilter{RoasterID: "roaster-drift"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Midnight Blend", products[0].Name)
}

func TestReplayDLQ_ExhaustedEntryRetires(t *testing.T) {
	dead := httptest.NewServer(productPages())
	deadURL := dead.URL
	dead.Close()

	st := newTestStore(t)
	p := newTestPipeline(t, st, newScriptedEnricher(nil), &stubDiscoverer{})
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, st.EnqueueDLQ(ctx, resilience.DLQEntry{
		ID:           "dlq-last-chance",
		URL:          deadURL + "/products/lost",
		RoasterID:    "roaster-drift",
		Error:        "fetch: http 503",
		ErrorType:    "transient",
		FailedStage:  "fetch",
		RetryCount:   2,
		MaxRetries:   3,
		NextRetryAt:  now.Add(-time.Minute),
		CreatedAt:    now.Add(-24 * time.Hour),
		LastFailedAt: now.Add(-2 * time.Hour),
	}))

	outcome, err := p.ReplayDLQ(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Replayed)
	assert.Equal(t, 1, outcome.Dropped, "a third transient failure uses up the last attempt")
	assert.Zero(t, outcome.Requeued)

	count, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "exhausted entries leave the queue instead of lingering unselectable")
}

func TestReplayDLQ_EmptyQueueIsNoop(t *testing.T) {
	st := newTestStore(t)
	p := newTestPipeline(t, st, newScriptedEnricher(nil), &stubDiscoverer{})

	outcome, err := p.ReplayDLQ(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, &ReplayOutcome{}, outcome)
}

func TestReplayBackoff(t *testing.T) {
	assert.Equal(t, time.Hour, replayBackoff(1))
	assert.Equal(t, 2*time.Hour, replayBackoff(2))
	assert.Equal(t, 8*time.Hour, replayBackoff(4))
	assert.Equal(t, 16*time.Hour, replayBackoff(5))
	assert.Equal(t, 24*time.Hour, replayBackoff(8))
	assert.Equal(t, 24*time.Hour, replayBackoff(50), "the cap holds however long an entry lingers")
}

func TestSiteOf(t *testing.T) {
	assert.Equal(t, "https://drift.example", siteOf("https://drift.example/products/midnight-blend"))
	assert.Equal(t, "http://127.0.0.1:8080", siteOf("http://127.0.0.1:8080/products/x?variant=1"))
	assert.Equal(t, "not a url", siteOf("not a url"))
}

// Enricher failure on the one-shot path parks the URL for replay instead
// of losing it.
func TestScrapeProduct_EnrichFailureParksForReplay(t *testing.T) {
	srv := httptest.NewServer(productPages())
	defer srv.Close()

	st := newTestStore(t)
	enricher := newScriptedEnricher(nil)
	enricher.err = resilience.NewTransientError(assert.AnError, 503)
	p := newTestPipeline(t, st, enricher, &stubDiscoverer{})
	ctx := context.Background()

	result, err := p.ScrapeProduct(ctx, driftSite(srv.URL), srv.URL+"/products/midnight-blend")
	require.NoError(t, err, "enrichment trouble degrades, the record still lands")
	require.NotNil(t, result.Product)
	assert.Equal(t, model.RoastDark, result.Product.RoastLevel, "mined fields survive the failed call")

	count, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the url is parked for a later replay pass")
}
