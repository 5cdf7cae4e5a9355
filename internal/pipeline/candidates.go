package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beanatlas/coffee-cli/internal/discover"
	"github.com/beanatlas/coffee-cli/internal/enrich"
	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
	"github.com/beanatlas/coffee-cli/internal/resilience"
	"github.com/beanatlas/coffee-cli/internal/validate"
)

// dlqMaxRetries is the replay budget a failed candidate gets before the
// dead letter queue stops offering it.
const dlqMaxRetries = 3

// dlqFirstRetryDelay spaces the first replay attempt away from the failure
// that parked the URL; replays back off further per attempt.
const dlqFirstRetryDelay = time.Hour

// workItem is one candidate on its way through the validation phases.
// Structured-feed items arrive with the record already built; discovered
// pages carry the raw candidate and are parsed only after phase 1 passes.
type workItem struct {
	candidate model.Candidate
	product   *model.Product
	input     validate.Phase1Input
}

func structuredItems(products []*model.Product) []workItem {
	items := make([]workItem, 0, len(products))
	for _, p := range products {
		items = append(items, workItem{
			candidate: model.Candidate{URL: p.SourceURL, Title: p.Name},
			product:   p,
			input:     validate.Phase1FromProduct(p),
		})
	}
	return items
}

// discoveryItems wraps candidates whose URL the structured leg has not
// already covered. The feed record wins outright when both legs saw the
// same page: its field confidence is higher across the board.
func discoveryItems(candidates []model.Candidate, covered map[string]bool) []workItem {
	items := make([]workItem, 0, len(candidates))
	for _, c := range candidates {
		if covered[normalize.URL(c.URL)] {
			continue
		}
		items = append(items, workItem{
			candidate: c,
			input:     validate.Phase1FromCandidate(c),
		})
	}
	return items
}

func coveredURLs(items []workItem) map[string]bool {
	covered := make(map[string]bool, len(items))
	for _, item := range items {
		covered[normalize.URL(item.candidate.URL)] = true
	}
	return covered
}

// itemVerdict is the outcome of one candidate's walk through the phases.
type itemVerdict struct {
	product  *model.Product
	rejected *model.RejectedCandidate
	note     string
	enriched bool
}

// processItems fans the candidates out over a bounded worker pool. One
// candidate's failure never touches its siblings; every worker reports
// back through the shared collector.
func (p *Pipeline) processItems(ctx context.Context, log *zap.Logger, site model.Site, items []workItem, cache *cacheState, result *model.ScrapeResult) []*model.Product {
	if len(items) == 0 {
		return nil
	}

	concurrency := p.cfg.Pipeline.CandidateConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu       sync.Mutex
		accepted []*model.Product
	)

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, item := range items {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			verdict := p.processOne(ctx, site, item, cache)

			mu.Lock()
			defer mu.Unlock()
			if verdict.enriched {
				result.Stats.EnrichmentCalls++
			}
			if verdict.note != "" {
				result.Errors = append(result.Errors, verdict.note)
			}
			switch {
			case verdict.product != nil:
				accepted = append(accepted, verdict.product)
			case verdict.rejected != nil:
				result.Rejected = append(result.Rejected, *verdict.rejected)
			}
			return nil
		})
	}
	_ = g.Wait() // workers report through the collector, never an error

	log.Debug("pipeline: candidates processed",
		zap.Int("items", len(items)),
		zap.Int("accepted", len(accepted)),
	)
	return accepted
}

// processOne walks a single candidate through phase 1, the page parse,
// cache restoration, enrichment, and phase 2. Enrichment trouble degrades
// to a note and a dead-letter entry; only a validation verdict rejects.
func (p *Pipeline) processOne(ctx context.Context, site model.Site, item workItem, cache *cacheState) itemVerdict {
	progress := validate.NewProgress()
	out := itemVerdict{}

	v1 := p.validator.Phase1(item.input)
	if err := progress.RecordPhase1(v1); err != nil {
		out.note = "validate: " + err.Error()
		return out
	}
	if progress.State() == validate.StateRejected {
		out.rejected = &model.RejectedCandidate{
			URL:     item.candidate.URL,
			Name:    item.input.Name,
			Stage:   validate.StagePhase1,
			Reasons: v1.Reasons,
		}
		return out
	}

	product := item.product
	if product == nil {
		product = discover.ParseCandidate(site, item.candidate)
	}

	// Fields still fresh in the cache keep their stored values, so an
	// unchanged page never pays for enrichment twice.
	cache.restoreFreshFields(product)

	if missing := p.enricher.Missing(product); len(missing) > 0 {
		fields, err := p.enricher.Enrich(ctx, item.candidate, missing)
		out.enriched = true
		switch {
		case errors.Is(err, enrich.ErrNoPageText):
			out.enriched = false
			zap.L().Debug("pipeline: no page text to enrich from",
				zap.String("url", item.candidate.URL))
		case err != nil:
			out.note = "enrich " + item.candidate.URL + ": " + err.Error()
			p.parkFailed(ctx, site, item.candidate.URL, "enrich", err)
		default:
			p.enricher.Apply(product, fields)
		}
	}
	if err := progress.RecordEnriched(); err != nil {
		out.note = "validate: " + err.Error()
		return out
	}

	v2 := p.validator.Phase2(product)
	if err := progress.RecordPhase2(v2); err != nil {
		out.note = "validate: " + err.Error()
		return out
	}

	final := progress.Verdict()
	if progress.State() == validate.StateRejected {
		out.rejected = &model.RejectedCandidate{
			URL:     product.SourceURL,
			Name:    product.Name,
			Stage:   validate.StagePhase2,
			Reasons: final.Reasons,
		}
		return out
	}

	// Warnings ride along on the accepted record instead of blocking it.
	product.Flags = final.Warnings
	product.Partial = len(product.MissingRequired()) > 0
	out.product = product
	return out
}

// parkFailed records a failed candidate URL in the dead letter queue so a
// later replay can pick it up without re-crawling the site.
func (p *Pipeline) parkFailed(ctx context.Context, site model.Site, url, stage string, failure error) {
	now := time.Now().UTC()
	entry := resilience.DLQEntry{
		ID:           uuid.New().String(),
		URL:          url,
		RoasterID:    site.RoasterID,
		Error:        failure.Error(),
		ErrorType:    resilience.ClassifyError(failure),
		FailedStage:  stage,
		MaxRetries:   dlqMaxRetries,
		NextRetryAt:  now.Add(dlqFirstRetryDelay),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := p.store.EnqueueDLQ(context.WithoutCancel(ctx), entry); err != nil {
		zap.L().Warn("pipeline: enqueue dead letter",
			zap.String("url", url),
			zap.Error(err),
		)
	}
}
