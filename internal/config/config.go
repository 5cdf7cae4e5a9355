package config

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Publish    PublishConfig    `yaml:"publish" mapstructure:"publish"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	DeepSeek   DeepSeekConfig   `yaml:"deepseek" mapstructure:"deepseek"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Detector   DetectorConfig   `yaml:"detector" mapstructure:"detector"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Stability  StabilityConfig  `yaml:"stability" mapstructure:"stability"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local SQLite working store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PublishConfig configures the Postgres directory that accepted products
// are published to.
type PublishConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NotionConfig holds the roaster queue credentials for batch mode.
// RateLimit caps Notion API calls per second; zero disables throttling.
type NotionConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	RoasterDB string  `yaml:"roaster_db" mapstructure:"roaster_db"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// JinaConfig holds Jina AI Reader settings (page text for enrichment).
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (discovery backend).
type FirecrawlConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// DeepSeekConfig holds the primary enrichment provider settings.
type DeepSeekConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds the fallback enrichment provider settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DetectorConfig configures platform detection.
type DetectorConfig struct {
	// APIThreshold is the minimum detection confidence for taking the
	// structured-feed path; below it the discovery path is forced.
	APIThreshold float64 `yaml:"api_threshold" mapstructure:"api_threshold"`
}

// FetchConfig configures the polite HTTP fetcher.
type FetchConfig struct {
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	MaxBodyMB         int     `yaml:"max_body_mb" mapstructure:"max_body_mb"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// CrawlConfig configures discovery crawling.
type CrawlConfig struct {
	MaxPages     int      `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth     int      `yaml:"max_depth" mapstructure:"max_depth"`
	IncludePaths []string `yaml:"include_paths" mapstructure:"include_paths"`
	ExcludePaths []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
}

// ExtractConfig configures structured-feed extraction.
type ExtractConfig struct {
	// MaxFeedPages caps feed pagination per site.
	MaxFeedPages int `yaml:"max_feed_pages" mapstructure:"max_feed_pages"`
}

// EnrichConfig configures LLM enrichment of missing fields.
type EnrichConfig struct {
	// MinConfidence is the provenance confidence at or above which a field
	// counts as populated and is excluded from enrichment requests.
	MinConfidence int `yaml:"min_confidence" mapstructure:"min_confidence"`

	// BreakerFailures and BreakerResetSecs tune the circuit breakers that
	// guard provider and reader calls.
	BreakerFailures  int `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ValidationConfig configures the phase-2 plausibility rules.
type ValidationConfig struct {
	// MaxPriceSpread is the largest allowed price ratio between the
	// cheapest and most expensive size of one product.
	MaxPriceSpread float64 `yaml:"max_price_spread" mapstructure:"max_price_spread"`
}

// StabilityConfig points at the optional field-stability override file.
type StabilityConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PipelineConfig configures the per-site orchestrator.
type PipelineConfig struct {
	MaxCandidates        int `yaml:"max_candidates" mapstructure:"max_candidates"`
	CandidateConcurrency int `yaml:"candidate_concurrency" mapstructure:"candidate_concurrency"`
	SiteTimeoutSecs      int `yaml:"site_timeout_secs" mapstructure:"site_timeout_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentSites int `yaml:"max_concurrent_sites" mapstructure:"max_concurrent_sites"`
}

// ServerConfig configures the REST API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures the background health checks that serve mode
// runs alongside the API. Thresholds of zero disable the matching alert.
type MonitoringConfig struct {
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold    float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	DLQDepthThreshold       int     `yaml:"dlq_depth_threshold" mapstructure:"dlq_depth_threshold"`
	EnrichmentCallThreshold int     `yaml:"enrichment_call_threshold" mapstructure:"enrichment_call_threshold"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. file, when set, names
// an explicit config file and must exist; otherwise the working directory and
// $HOME/.coffee-cli are searched for an optional config.yaml.
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.coffee-cli")
	}

	// Environment
	v.SetEnvPrefix("COFFEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "coffee-cli.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_sites", 5)
	v.SetDefault("detector.api_threshold", 0.70)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.user_agent", "coffee-cli/1.0 (+https://github.com/beanatlas/coffee-cli)")
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("fetch.burst", 4)
	v.SetDefault("fetch.max_body_mb", 10)
	v.SetDefault("fetch.max_attempts", 4)
	v.SetDefault("crawl.max_pages", 150)
	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.include_paths", []string{"/products/*", "/product/*", "/coffee/*", "/collections/*", "/shop/*"})
	v.SetDefault("crawl.exclude_paths", []string{"/cart*", "/checkout*", "/account*", "/blog/*", "/pages/*", "/policies/*"})
	v.SetDefault("extract.max_feed_pages", 20)
	v.SetDefault("enrich.min_confidence", 50)
	v.SetDefault("enrich.breaker_failures", 5)
	v.SetDefault("enrich.breaker_reset_secs", 30)
	v.SetDefault("validation.max_price_spread", 10.0)
	v.SetDefault("pipeline.max_candidates", 50)
	v.SetDefault("pipeline.candidate_concurrency", 8)
	v.SetDefault("pipeline.site_timeout_secs", 300)
	v.SetDefault("notion.rate_limit", 3.0)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("firecrawl.max_pages", 150)
	v.SetDefault("deepseek.base_url", "https://api.deepseek.com")
	v.SetDefault("deepseek.model", "deepseek-chat")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.dlq_depth_threshold", 50)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)

	if err := v.ReadInConfig(); err != nil {
		if file != "" {
			return nil, eris.Wrapf(err, "config: read %s", file)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode.
// Every mode checks the shared bounds; modes add their own requirements:
// "scrape" (none beyond shared), "serve" (listen port), "notion" (queue
// credentials), "publish" (directory DSN), "enrich" (a provider key).
func (c *Config) Validate(mode string) error {
	var result *multierror.Error

	appendErr := func(msg string) {
		result = multierror.Append(result, eris.New(msg))
	}

	if c.Store.Path == "" {
		appendErr("store.path is required")
	}
	if c.Batch.MaxConcurrentSites < 1 || c.Batch.MaxConcurrentSites > 50 {
		appendErr("batch.max_concurrent_sites must be between 1 and 50")
	}
	if c.Detector.APIThreshold < 0 || c.Detector.APIThreshold > 1 {
		appendErr("detector.api_threshold must be between 0 and 1")
	}
	if c.Validation.MaxPriceSpread < 1 {
		appendErr("validation.max_price_spread must be >= 1")
	}
	if c.Enrich.MinConfidence < 0 || c.Enrich.MinConfidence > 100 {
		appendErr("enrich.min_confidence must be between 0 and 100")
	}
	if c.Pipeline.CandidateConcurrency < 1 || c.Pipeline.CandidateConcurrency > 32 {
		appendErr("pipeline.candidate_concurrency must be between 1 and 32")
	}

	switch mode {
	case "scrape":
		// Shared bounds only; adapters degrade to fallbacks when unset.
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			appendErr("server.port must be > 0")
		}
	case "notion":
		if c.Notion.Token == "" {
			appendErr("notion.token is required")
		}
		if c.Notion.RoasterDB == "" {
			appendErr("notion.roaster_db is required")
		}
	case "publish":
		if c.Publish.DatabaseURL == "" {
			appendErr("publish.database_url is required")
		}
	case "enrich":
		if c.DeepSeek.Key == "" && c.Anthropic.Key == "" {
			appendErr("an enrichment provider key is required (deepseek.key or anthropic.key)")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	return result.ErrorOrNil()
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
