package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", cfg.Server.Port)
	}

	if cfg.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be > 0")
	}
	if cfg.Engine.MaxTotalRequests < 1 {
		return fmt.Errorf("engine.max_total_requests must be >= 1, got %d", cfg.Engine.MaxTotalRequests)
	}
	if cfg.Engine.MaxDetailPages < 0 {
		return fmt.Errorf("engine.max_detail_pages must be >= 0, got %d", cfg.Engine.MaxDetailPages)
	}
	if cfg.Engine.SampleTarget < 1 {
		return fmt.Errorf("engine.sample_target must be >= 1, got %d", cfg.Engine.SampleTarget)
	}
	if cfg.Engine.MinNameLength < 1 {
		return fmt.Errorf("engine.min_name_length must be >= 1, got %d", cfg.Engine.MinNameLength)
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if cfg.Sources.ResultLimit < 1 {
		return fmt.Errorf("sources.result_limit must be >= 1, got %d", cfg.Sources.ResultLimit)
	}
	if len(cfg.Sources.EbayHosts) == 0 {
		return fmt.Errorf("sources.ebay_hosts must not be empty")
	}

	if cfg.Scoring.ListingThreshold < 0 || cfg.Scoring.ListingThreshold > 1 {
		return fmt.Errorf("scoring.listing_threshold must be in [0,1], got %v", cfg.Scoring.ListingThreshold)
	}
	if cfg.Scoring.APIThreshold < 0 || cfg.Scoring.APIThreshold > 1 {
		return fmt.Errorf("scoring.api_threshold must be in [0,1], got %v", cfg.Scoring.APIThreshold)
	}

	if cfg.Pricing.MinPrice < 0 {
		return fmt.Errorf("pricing.min_price must be >= 0, got %v", cfg.Pricing.MinPrice)
	}
	if cfg.Pricing.MaxPrice <= cfg.Pricing.MinPrice {
		return fmt.Errorf("pricing.max_price must be > min_price, got %v <= %v", cfg.Pricing.MaxPrice, cfg.Pricing.MinPrice)
	}
	if _, ok := cfg.Pricing.Rates[cfg.Pricing.ReferenceCurrency]; !ok {
		return fmt.Errorf("pricing.rates must contain the reference currency %q", cfg.Pricing.ReferenceCurrency)
	}

	validStorageTypes := map[string]bool{
		"none": true, "jsonl": true, "mongodb": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: none, jsonl, mongodb)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "mongodb" && cfg.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required when storage.type is mongodb")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}
