package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	// Environment variable support, e.g. PRICELOUPE_SOURCES_SERPAPI_KEY.
	v.SetEnvPrefix("PRICELOUPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("priceloupe")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".priceloupe"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// SERPAPI_KEY without the prefix matches the original deployment env.
	if cfg.Sources.SerpAPIKey == "" {
		cfg.Sources.SerpAPIKey = os.Getenv("SERPAPI_KEY")
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)

	v.SetDefault("engine.request_timeout", cfg.Engine.RequestTimeout)
	v.SetDefault("engine.max_total_requests", cfg.Engine.MaxTotalRequests)
	v.SetDefault("engine.max_detail_pages", cfg.Engine.MaxDetailPages)
	v.SetDefault("engine.sample_target", cfg.Engine.SampleTarget)
	v.SetDefault("engine.max_trace_samples", cfg.Engine.MaxTraceSamples)
	v.SetDefault("engine.min_name_length", cfg.Engine.MinNameLength)
	v.SetDefault("engine.generic_terms", cfg.Engine.GenericTerms)

	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.accept_language", cfg.Fetcher.AcceptLanguage)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)

	v.SetDefault("sources.serpapi_endpoint", cfg.Sources.SerpAPIEndpoint)
	v.SetDefault("sources.result_limit", cfg.Sources.ResultLimit)
	v.SetDefault("sources.amazon_domain", cfg.Sources.AmazonDomain)
	v.SetDefault("sources.locale", cfg.Sources.Locale)
	v.SetDefault("sources.ebay_hosts", cfg.Sources.EbayHosts)

	v.SetDefault("scoring.listing_threshold", cfg.Scoring.ListingThreshold)
	v.SetDefault("scoring.api_threshold", cfg.Scoring.APIThreshold)
	v.SetDefault("scoring.filter_multipacks", cfg.Scoring.FilterMultipacks)

	v.SetDefault("pricing.reference_currency", cfg.Pricing.ReferenceCurrency)
	v.SetDefault("pricing.rates", cfg.Pricing.Rates)
	v.SetDefault("pricing.min_price", cfg.Pricing.MinPrice)
	v.SetDefault("pricing.max_price", cfg.Pricing.MaxPrice)
	v.SetDefault("pricing.listing_price_cap", cfg.Pricing.ListingPriceCap)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
