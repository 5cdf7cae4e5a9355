// Package enrich fills missing product fields by asking an LLM provider to
// read the product page. DeepSeek is the primary provider with Anthropic as
// the fallback; each provider sits behind its own circuit breaker so a dead
// service degrades to a skip instead of failing candidates.
package enrich

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
	"github.com/beanatlas/coffee-cli/internal/resilience"
	"github.com/beanatlas/coffee-cli/pkg/jina"
)

// DefaultMinConfidence is the provenance confidence at or above which a
// field counts as populated and is excluded from enrichment requests.
const DefaultMinConfidence = 50

// readerService keys the circuit breaker guarding page-text fetches.
const readerService = "jina"

// Product field keys enrichment can fill.
const (
	FieldRoastLevel       = "roast_level"
	FieldBeanType         = "bean_type"
	FieldProcessingMethod = "processing_method"
	FieldRegionName       = "region_name"
	FieldFlavorProfiles   = "flavor_profiles"
)

// EnrichableFields lists the fillable fields in prompt order.
var EnrichableFields = []string{
	FieldRoastLevel,
	FieldBeanType,
	FieldProcessingMethod,
	FieldRegionName,
	FieldFlavorProfiles,
}

// Fields is the partial field map one enrichment pass returns: values
// already standardized onto the closed vocabularies, keyed by the product
// field they fill.
type Fields map[string]any

// ErrNoPageText marks a candidate with nothing for a provider to read.
// Callers treat it as a skip, not a failure.
var ErrNoPageText = eris.New("enrich: no usable page text")

// Options configures an Enricher.
type Options struct {
	// Reader fetches page text when the candidate carries none.
	Reader jina.Client

	// Breakers guards provider and reader calls. A fresh registry is
	// created when nil.
	Breakers *resilience.ServiceBreakers

	// MinConfidence is the populated-field threshold. Defaults to
	// DefaultMinConfidence.
	MinConfidence int
}

// Enricher runs the provider chain for candidates with missing fields.
type Enricher struct {
	providers     []Provider
	reader        jina.Client
	breakers      *resilience.ServiceBreakers
	minConfidence int
}

// New builds an Enricher that tries providers in the given order.
func New(providers []Provider, opts Options) *Enricher {
	breakers := opts.Breakers
	if breakers == nil {
		breakers = resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	}
	minConfidence := opts.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Enricher{
		providers:     providers,
		reader:        opts.Reader,
		breakers:      breakers,
		minConfidence: minConfidence,
	}
}

// Missing returns the enrichable fields not yet populated at or above the
// confidence threshold, in prompt order.
func (e *Enricher) Missing(p *model.Product) []string {
	var missing []string
	for _, field := range EnrichableFields {
		if !e.populated(p, field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// populated reports whether a field holds a value the pipeline already
// trusts. Unknown vocabulary values and low-confidence stamps count as
// missing so enrichment gets a chance to do better.
func (e *Enricher) populated(p *model.Product, field string) bool {
	var has bool
	switch field {
	case FieldRoastLevel:
		has = p.RoastLevel != "" && p.RoastLevel != model.RoastUnknown
	case FieldBeanType:
		has = p.BeanType != "" && p.BeanType != model.BeanUnknown
	case FieldProcessingMethod:
		has = p.ProcessingMethod != "" && p.ProcessingMethod != model.ProcessUnknown
	case FieldRegionName:
		has = p.RegionName != ""
	case FieldFlavorProfiles:
		has = len(p.FlavorProfiles) > 0
	}
	return has && p.FieldConfidence(field) >= e.minConfidence
}

// Enrich asks the provider chain to fill the missing fields from the
// candidate's page text. Only enrichable fields are requested; an empty
// request is a no-op. Returns ErrNoPageText when there is nothing to read.
func (e *Enricher) Enrich(ctx context.Context, candidate model.Candidate, missing []string) (Fields, error) {
	requested := intersectEnrichable(missing)
	if len(requested) == 0 {
		return nil, nil
	}

	text := e.pageText(ctx, candidate)
	if text == "" {
		return nil, ErrNoPageText
	}

	prompt := buildPrompt(candidate, requested, text)

	var lastErr error
	for _, provider := range e.providers {
		breaker := e.breakers.Get(provider.Name())
		raw, err := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (string, error) {
			return provider.Complete(ctx, prompt)
		})
		if err != nil {
			msg := "enrich: provider failed, trying next"
			if errors.Is(err, resilience.ErrCircuitOpen) {
				msg = "enrich: provider circuit open, trying next"
			}
			zap.L().Debug(msg,
				zap.String("provider", provider.Name()),
				zap.String("url", candidate.URL),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		fields, err := parseFields(raw, requested)
		if err != nil {
			zap.L().Warn("enrich: unparseable provider reply, trying next",
				zap.String("provider", provider.Name()),
				zap.String("url", candidate.URL),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		return fields, nil
	}

	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "enrich: all providers failed")
	}
	return nil, eris.New("enrich: no providers configured")
}

// Apply merges returned fields into the product with enrichment provenance.
// Fields already populated at or above the confidence threshold stay as
// they are.
func (e *Enricher) Apply(p *model.Product, fields Fields) {
	for _, field := range EnrichableFields {
		value, ok := fields[field]
		if !ok || e.populated(p, field) {
			continue
		}
		if !setField(p, field, value) {
			continue
		}
		p.Stamp(field, model.SourceEnrichment)
	}
}

// setField writes one enrichment value onto the product, refusing values of
// the wrong type.
func setField(p *model.Product, field string, value any) bool {
	switch field {
	case FieldRoastLevel:
		if roast, ok := value.(model.RoastLevel); ok {
			p.RoastLevel = roast
			return true
		}
	case FieldBeanType:
		if bean, ok := value.(model.BeanType); ok {
			p.BeanType = bean
			return true
		}
	case FieldProcessingMethod:
		if process, ok := value.(model.ProcessingMethod); ok {
			p.ProcessingMethod = process
			return true
		}
	case FieldRegionName:
		if region, ok := value.(string); ok && region != "" {
			p.RegionName = region
			return true
		}
	case FieldFlavorProfiles:
		if flavors, ok := value.([]string); ok && len(flavors) > 0 {
			p.FlavorProfiles = flavors
			return true
		}
	}
	return false
}

// intersectEnrichable keeps only the fields enrichment knows how to fill,
// preserving prompt order.
func intersectEnrichable(missing []string) []string {
	want := make(map[string]bool, len(missing))
	for _, field := range missing {
		want[field] = true
	}
	var out []string
	for _, field := range EnrichableFields {
		if want[field] {
			out = append(out, field)
		}
	}
	return out
}

// pageText resolves readable text for the candidate: its own text first,
// its stored HTML next, then a reader fetch as the last resort.
func (e *Enricher) pageText(ctx context.Context, candidate model.Candidate) string {
	if text := strings.TrimSpace(candidate.Text); text != "" {
		return text
	}
	if text := strings.TrimSpace(normalize.PageText(candidate.HTML)); text != "" {
		return text
	}
	if e.reader == nil || candidate.URL == "" {
		return ""
	}

	breaker := e.breakers.Get(readerService)
	resp, err := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		return e.reader.Read(ctx, candidate.URL, jina.WithRemoveSelector("nav,header,footer"))
	})
	if err != nil {
		zap.L().Debug("enrich: reader fetch failed",
			zap.String("url", candidate.URL),
			zap.Error(err),
		)
		return ""
	}
	return strings.TrimSpace(resp.Data.Content)
}
