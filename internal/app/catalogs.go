// Package app assembles the components shared by the service binaries.
package app

import (
	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/catalog/openalex"
	"github.com/helixir/catalog-sync-service/internal/catalog/scopus"
	"github.com/helixir/catalog-sync-service/internal/config"
	"github.com/helixir/catalog-sync-service/internal/observability"
)

// NewCatalogRegistry builds a registry holding one adapter per configured
// catalog. Disabled catalogs are registered too so that IsEnabled can be
// reported, but Registry.Enabled skips them.
func NewCatalogRegistry(cfg config.CatalogsConfig, metrics *observability.Metrics, logger zerolog.Logger) *catalog.Registry {
	registry := catalog.NewRegistry()

	registry.Register(scopus.New(scopus.Config{
		BaseURL:    cfg.Scopus.BaseURL,
		APIKey:     cfg.Scopus.APIKey,
		InstToken:  cfg.Scopus.InstToken,
		Timeout:    cfg.Scopus.Timeout,
		RateLimit:  cfg.Scopus.RateLimit,
		BurstSize:  cfg.Scopus.BurstSize,
		MaxRetries: cfg.Scopus.MaxRetries,
		MaxResults: cfg.Scopus.MaxResults,
		CacheSize:  cfg.Scopus.CacheSize,
		CacheTTL:   cfg.Scopus.CacheTTL,
		Enabled:    cfg.Scopus.Enabled,
		Metrics:    metrics,
	}))

	registry.Register(openalex.New(openalex.Config{
		BaseURL:    cfg.OpenAlex.BaseURL,
		Email:      cfg.OpenAlex.Email,
		APIKey:     cfg.OpenAlex.APIKey,
		Timeout:    cfg.OpenAlex.Timeout,
		RateLimit:  cfg.OpenAlex.RateLimit,
		BurstSize:  cfg.OpenAlex.BurstSize,
		MaxRetries: cfg.OpenAlex.MaxRetries,
		MaxResults: cfg.OpenAlex.MaxResults,
		CacheSize:  cfg.OpenAlex.CacheSize,
		CacheTTL:   cfg.OpenAlex.CacheTTL,
		Enabled:    cfg.OpenAlex.Enabled,
		Metrics:    metrics,
	}))

	for _, adapter := range registry.Enabled() {
		logger.Info().Str("catalog", adapter.Catalog()).Msg("catalog adapter enabled")
	}
	if cfg.Scopus.Enabled && cfg.Scopus.APIKey == "" {
		logger.Warn().Msg("scopus is enabled but CATSYNC_CATALOGS_SCOPUS_API_KEY is not set; adapter disabled")
	}

	return registry
}
