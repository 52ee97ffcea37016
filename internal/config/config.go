// Package config contains the configuration of the dxa middle tier.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultContentServiceTimeout      = 10 * time.Second
	DefaultContentServiceRetryMax     = 3
	DefaultContentServiceReadyTimeout = 5 * time.Second
	DefaultContentServiceMaxBodyBytes = 10 << 20

	DefaultCacheEnabled    = true
	DefaultCacheMaxEntries = 10000
	DefaultCacheTTL        = 0

	DefaultSitemapDescendantDepth = 10

	DefaultIndexPageName = "index"
	DefaultExtension     = ".json"

	DefaultMaxEntityFetches = 10
)

// ContentServiceConfig defines how the content service is reached. When URL is
// empty content is served from the Fixtures file instead.
type ContentServiceConfig struct {
	URL      string
	Timeout  time.Duration
	RetryMax int

	// ReadyTimeout bounds how long the CLI waits for the content service to
	// answer before resolving anything.
	ReadyTimeout time.Duration

	// MaxResponseBytes bounds the size of a content service response body.
	MaxResponseBytes int64
}

// CacheConfig defines the model cache. Enabled corresponds to view model
// caching being switched on.
type CacheConfig struct {
	Enabled    bool
	MaxEntries int64

	// TTL expires cached models. Zero keeps them until invalidated or evicted.
	TTL time.Duration
}

type SitemapConfig struct {
	// DescendantDepth is how many levels whole navigation trees are fetched with.
	DescendantDepth int
}

type PagesConfig struct {
	IndexPageName string
	Extension     string
}

// LocalizationConfig is the localization requests are resolved in.
type LocalizationConfig struct {
	ID        string
	Namespace string
	Path      string
	Culture   string
	Staging   bool
}

// ConditionsConfig holds the CEL rules deciding which entities are suppressed
// from resolved pages.
type ConditionsConfig struct {
	Rules []string
}

type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
}

type OTLPTraceConfig struct {
	Endpoint string
	TLS      OTLPTraceTLSConfig
}

type OTLPTraceTLSConfig struct {
	Enabled bool
}

type ConcurrencyConfig struct {
	// MaxEntityFetches bounds the entities fetched at once by a multi-entity request.
	MaxEntityFetches int
}

type Config struct {
	ContentService ContentServiceConfig
	Cache          CacheConfig
	Sitemap        SitemapConfig
	Pages          PagesConfig
	Localization   LocalizationConfig
	Conditions     ConditionsConfig
	Log            LogConfig
	Trace          TraceConfig
	Concurrency    ConcurrencyConfig

	// Fixtures is the path of a YAML file the in-memory content service is
	// loaded from when no content service URL is configured.
	Fixtures string
}

func (cfg *Config) Verify() error {
	if cfg.ContentService.URL == "" && cfg.Fixtures == "" {
		return errors.New("one of 'contentService.url' or 'fixtures' must be set")
	}
	if cfg.ContentService.URL != "" && cfg.Fixtures != "" {
		return errors.New("'contentService.url' and 'fixtures' cannot both be set")
	}

	if cfg.ContentService.Timeout <= 0 {
		return fmt.Errorf("config 'contentService.timeout' must be greater than zero, got %s", cfg.ContentService.Timeout)
	}
	if cfg.ContentService.RetryMax < 0 {
		return errors.New("config 'contentService.retryMax' cannot be negative")
	}
	if cfg.ContentService.MaxResponseBytes <= 0 {
		return errors.New("config 'contentService.maxResponseBytes' must be greater than zero")
	}

	if cfg.Cache.Enabled && cfg.Cache.MaxEntries <= 0 {
		return errors.New("config 'cache.maxEntries' must be greater than zero when the cache is enabled")
	}
	if cfg.Cache.TTL < 0 {
		return errors.New("config 'cache.ttl' cannot be negative")
	}

	if cfg.Sitemap.DescendantDepth <= 0 {
		return errors.New("config 'sitemap.descendantDepth' must be greater than zero")
	}

	if cfg.Pages.IndexPageName == "" || strings.Contains(cfg.Pages.IndexPageName, "/") {
		return errors.New("config 'pages.indexPageName' must be a non-empty file name")
	}
	if !strings.HasPrefix(cfg.Pages.Extension, ".") || strings.Contains(cfg.Pages.Extension, "/") {
		return errors.New("config 'pages.extension' must start with '.'")
	}

	if cfg.Localization.ID == "" {
		return errors.New("config 'localization.id' must be set")
	}
	if cfg.Localization.Namespace != "tcm" && cfg.Localization.Namespace != "ish" {
		return errors.New("config 'localization.namespace' must be one of ['tcm', 'ish']")
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return errors.New("config 'log.format' must be one of ['text', 'json']")
	}

	if cfg.Log.Level != "none" &&
		cfg.Log.Level != "debug" &&
		cfg.Log.Level != "info" &&
		cfg.Log.Level != "warn" &&
		cfg.Log.Level != "error" &&
		cfg.Log.Level != "panic" &&
		cfg.Log.Level != "fatal" {
		return errors.New(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		)
	}

	if cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1 {
		return errors.New("config 'trace.sampleRatio' must be between 0 and 1")
	}

	if cfg.Concurrency.MaxEntityFetches < 1 {
		return errors.New("config 'concurrency.maxEntityFetches' must be at least 1")
	}

	return nil
}

// DefaultConfig returns the defaults of every setting. Either a content service
// URL or a fixtures file still has to be set.
func DefaultConfig() *Config {
	return &Config{
		ContentService: ContentServiceConfig{
			Timeout:      DefaultContentServiceTimeout,
			RetryMax:     DefaultContentServiceRetryMax,
			ReadyTimeout: DefaultContentServiceReadyTimeout,

			MaxResponseBytes: DefaultContentServiceMaxBodyBytes,
		},
		Cache: CacheConfig{
			Enabled:    DefaultCacheEnabled,
			MaxEntries: DefaultCacheMaxEntries,
			TTL:        DefaultCacheTTL,
		},
		Sitemap: SitemapConfig{
			DescendantDepth: DefaultSitemapDescendantDepth,
		},
		Pages: PagesConfig{
			IndexPageName: DefaultIndexPageName,
			Extension:     DefaultExtension,
		},
		Localization: LocalizationConfig{
			Namespace: "tcm",
			Path:      "/",
		},
		Conditions: ConditionsConfig{
			Rules: []string{},
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
				TLS: OTLPTraceTLSConfig{
					Enabled: false,
				},
			},
			SampleRatio: 0.2,
			ServiceName: "dxa",
		},
		Concurrency: ConcurrencyConfig{
			MaxEntityFetches: DefaultMaxEntityFetches,
		},
	}
}

// MustDefaultConfig returns the default config serving content from the given
// fixtures file in localization locID.
func MustDefaultConfig(fixtures, locID string) *Config {
	cfg := DefaultConfig()
	cfg.Fixtures = fixtures
	cfg.Localization.ID = locID

	if err := cfg.Verify(); err != nil {
		panic(err)
	}
	return cfg
}
