package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/discover"
	"github.com/beanatlas/coffee-cli/internal/enrich"
	"github.com/beanatlas/coffee-cli/internal/extract"
	"github.com/beanatlas/coffee-cli/internal/fetch"
	"github.com/beanatlas/coffee-cli/internal/pipeline"
	"github.com/beanatlas/coffee-cli/internal/resilience"
	"github.com/beanatlas/coffee-cli/internal/stability"
	"github.com/beanatlas/coffee-cli/internal/store"
	"github.com/beanatlas/coffee-cli/internal/validate"
	anthropicpkg "github.com/beanatlas/coffee-cli/pkg/anthropic"
	"github.com/beanatlas/coffee-cli/pkg/deepseek"
	"github.com/beanatlas/coffee-cli/pkg/firecrawl"
	"github.com/beanatlas/coffee-cli/pkg/jina"
	"github.com/beanatlas/coffee-cli/pkg/notion"
)

// pipelineEnv holds the store, the configured clients, and the pipeline
// needed by the scrape/product/batch/serve/replay commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Notion   notion.Client // nil unless a Notion token is configured
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline opens the store, builds the fetcher and API clients, and
// wires the Pipeline. Callers should defer env.Close(). mode selects which
// config sections Validate checks beyond the shared ones.
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	fetcher := fetch.New(fetch.Options{
		UserAgent:         cfg.Fetch.UserAgent,
		Timeout:           time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxAttempts:       cfg.Fetch.MaxAttempts,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
		MaxBodyBytes:      int64(cfg.Fetch.MaxBodyMB) << 20,
	})

	extractors := extract.NewRegistry(fetcher, cfg.Extract.MaxFeedPages)

	// Discovery chain: Firecrawl crawl when a key is set, local BFS crawl
	// as the always-available fallback.
	matcher := discover.NewPathMatcher(cfg.Crawl.IncludePaths, cfg.Crawl.ExcludePaths)
	var discoverers []discover.Discoverer
	if cfg.Firecrawl.Key != "" {
		firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		discoverers = append(discoverers, discover.NewFirecrawlDiscoverer(firecrawlClient, matcher, cfg.Crawl.MaxPages, cfg.Crawl.MaxDepth))
		zap.L().Info("firecrawl discovery enabled")
	}
	discoverers = append(discoverers, discover.NewLocalDiscoverer(fetcher, matcher, cfg.Crawl.MaxPages, cfg.Crawl.MaxDepth))
	discoverer := discover.NewChain(discoverers...)

	// Enrichment providers: DeepSeek primary, Anthropic fallback. Either
	// may be absent; with none configured, missing fields stay empty.
	var providers []enrich.Provider
	if cfg.DeepSeek.Key != "" {
		dsClient := deepseek.NewClient(cfg.DeepSeek.Key, deepseek.WithBaseURL(cfg.DeepSeek.BaseURL), deepseek.WithModel(cfg.DeepSeek.Model))
		providers = append(providers, enrich.NewDeepSeekProvider(dsClient))
	}
	if cfg.Anthropic.Key != "" {
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
		providers = append(providers, enrich.NewAnthropicProvider(anthropicClient, cfg.Anthropic.Model, int64(cfg.Anthropic.MaxTokens)))
	}
	if len(providers) == 0 {
		zap.L().Warn("no enrichment provider configured, skipping enrichment")
	}

	var reader jina.Client
	if cfg.Jina.Key != "" {
		reader = jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
	}

	enricher := enrich.New(providers, enrich.Options{
		Reader: reader,
		Breakers: resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Enrich.BreakerFailures,
			ResetTimeout:     time.Duration(cfg.Enrich.BreakerResetSecs) * time.Second,
		}),
		MinConfidence: cfg.Enrich.MinConfidence,
	})

	validator := validate.New(validate.Options{MaxPriceSpread: cfg.Validation.MaxPriceSpread})

	stabilityCfg := stability.DefaultConfig()
	if cfg.Stability.Path != "" {
		stabilityCfg, err = stability.LoadConfig(cfg.Stability.Path)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load stability config")
		}
	}

	var notionClient notion.Client
	if cfg.Notion.Token != "" {
		notionClient = notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
	}

	p := pipeline.New(cfg, st, fetcher, extractors, discoverer, enricher, validator, stabilityCfg)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
		Notion:   notionClient,
	}, nil
}

// initStore opens the local SQLite store without the rest of the pipeline,
// for commands that only read or export.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
