package pipeline

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/discover"
	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
	"github.com/beanatlas/coffee-cli/internal/resilience"
	"github.com/beanatlas/coffee-cli/internal/validate"
)

// dlqMaxRetryDelay caps the replay backoff.
const dlqMaxRetryDelay = 24 * time.Hour

// ProductResult is the outcome of a single-page scrape: exactly one of
// Product and Rejected is set.
type ProductResult struct {
	Product  *model.Product           `json:"product,omitempty"`
	Rejected *model.RejectedCandidate `json:"rejected,omitempty"`
}

// ScrapeProduct runs one product URL through the candidate phases without
// crawling its site: fetch, phase 1, parse, enrich, phase 2. Accepted
// records are upserted into the local store. Fetch failures return an
// error so callers can classify them; validation outcomes never error.
func (p *Pipeline) ScrapeProduct(ctx context.Context, site model.Site, rawURL string) (*ProductResult, error) {
	pageURL := normalize.URL(rawURL)
	if pageURL == "" {
		return nil, eris.Errorf("pipeline: invalid product url %q", rawURL)
	}
	if site.RoasterID == "" {
		site.RoasterID = normalize.Domain(pageURL)
	}

	page, err := p.fetcher.Get(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: fetch product page %s", rawURL)
	}
	if page.Blocked {
		return nil, resilience.NewTransientError(
			eris.Errorf("pipeline: product page blocked (%s)", page.Block), page.Status)
	}

	html := string(page.Body)
	candidate := model.Candidate{
		URL:         page.URL,
		Title:       discover.PageTitle(html),
		Description: discover.MetaDescription(html),
		HTML:        html,
		StatusCode:  page.Status,
		Score:       discover.Score(page.URL, html),
	}

	verdict := p.processOne(ctx, site, workItem{
		candidate: candidate,
		input:     validate.Phase1FromCandidate(candidate),
	}, nil)

	result := &ProductResult{Product: verdict.product, Rejected: verdict.rejected}
	if verdict.note != "" {
		zap.L().Warn("pipeline: product scrape degraded",
			zap.String("url", rawURL),
			zap.String("note", verdict.note),
		)
	}
	if verdict.product != nil {
		if _, err := p.store.UpsertProducts(ctx, []*model.Product{verdict.product}); err != nil {
			return result, eris.Wrap(err, "pipeline: store product")
		}
	}
	return result, nil
}

// ReplayOutcome summarizes one dead-letter replay pass.
type ReplayOutcome struct {
	Replayed  int `json:"replayed"`
	Recovered int `json:"recovered"`
	Rejected  int `json:"rejected"`
	Requeued  int `json:"requeued"`
	Dropped   int `json:"dropped"`
}

// ReplayDLQ re-runs due dead-letter URLs through the single-product path.
// Success and definitive rejection both retire the entry; a transient
// failure re-queues it with backoff; a permanent failure drops it. One
// entry's trouble never stops the pass.
func (p *Pipeline) ReplayDLQ(ctx context.Context, limit int) (*ReplayOutcome, error) {
	entries, err := p.store.DequeueDLQ(ctx, resilience.DLQFilter{Limit: limit})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: dequeue dead letters")
	}

	outcome := &ReplayOutcome{}
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		outcome.Replayed++

		site := model.Site{RoasterID: entry.RoasterID, URL: siteOf(entry.URL)}
		result, err := p.ScrapeProduct(ctx, site, entry.URL)
		switch {
		case err == nil && result.Product != nil:
			outcome.Recovered++
			p.retireDLQ(ctx, entry.ID, "recovered", entry.URL)
		case err == nil:
			outcome.Rejected++
			p.retireDLQ(ctx, entry.ID, "rejected", entry.URL)
		case resilience.IsTransient(err):
			retried := entry
			retried.RetryCount++
			if !retried.CanRetry() {
				// Re-queueing past the cap would leave a row the dequeue
				// query never selects but the depth count still sees.
				outcome.Dropped++
				zap.L().Info("pipeline: dropping dead letter, retries exhausted",
					zap.String("url", entry.URL),
					zap.Int("retry_count", retried.RetryCount),
				)
				p.retireDLQ(ctx, entry.ID, "exhausted", entry.URL)
				continue
			}
			outcome.Requeued++
			next := time.Now().UTC().Add(replayBackoff(retried.RetryCount))
			if rErr := p.store.IncrementDLQRetry(ctx, entry.ID, next, err.Error()); rErr != nil {
				zap.L().Warn("pipeline: requeue dead letter",
					zap.String("url", entry.URL), zap.Error(rErr))
			}
		default:
			outcome.Dropped++
			zap.L().Info("pipeline: dropping dead letter, failure is permanent",
				zap.String("url", entry.URL),
				zap.Error(err),
			)
			p.retireDLQ(ctx, entry.ID, "dropped", entry.URL)
		}
	}

	zap.L().Info("pipeline: dead letter replay finished",
		zap.Int("replayed", outcome.Replayed),
		zap.Int("recovered", outcome.Recovered),
		zap.Int("rejected", outcome.Rejected),
		zap.Int("requeued", outcome.Requeued),
		zap.Int("dropped", outcome.Dropped),
	)
	return outcome, nil
}

func (p *Pipeline) retireDLQ(ctx context.Context, id, how, url string) {
	if err := p.store.RemoveDLQ(ctx, id); err != nil {
		zap.L().Warn("pipeline: remove dead letter",
			zap.String("url", url),
			zap.String("outcome", how),
			zap.Error(err),
		)
	}
}

// replayBackoff doubles per attempt from the base delay, capped at a day.
func replayBackoff(attempt int) time.Duration {
	d := dlqFirstRetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= dlqMaxRetryDelay {
			return dlqMaxRetryDelay
		}
	}
	return d
}

// siteOf reduces a product URL to its site root.
func siteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
