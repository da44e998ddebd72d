package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for priceloupe.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"  yaml:"server"`
	Engine  EngineConfig  `mapstructure:"engine"  yaml:"engine"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Proxy   ProxyConfig   `mapstructure:"proxy"   yaml:"proxy"`
	Sources SourcesConfig `mapstructure:"sources" yaml:"sources"`
	Scoring ScoringConfig `mapstructure:"scoring" yaml:"scoring"`
	Pricing PricingConfig `mapstructure:"pricing" yaml:"pricing"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Host           string   `mapstructure:"host"            yaml:"host"`
	Port           int      `mapstructure:"port"            yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// EngineConfig controls the estimation pipeline.
type EngineConfig struct {
	// RequestTimeout bounds every individual network call.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// MaxTotalRequests is the hard fetch ceiling shared by all adapters
	// and all query variants within one estimation.
	MaxTotalRequests int `mapstructure:"max_total_requests" yaml:"max_total_requests"`

	// MaxDetailPages caps item detail-page follows per listing fetch.
	MaxDetailPages int `mapstructure:"max_detail_pages" yaml:"max_detail_pages"`

	// SampleTarget stops the variant/adapter loop early once the pooled
	// sample count reaches it.
	SampleTarget int `mapstructure:"sample_target" yaml:"sample_target"`

	// MaxTraceSamples caps the traceability snippets kept in the result.
	MaxTraceSamples int `mapstructure:"max_trace_samples" yaml:"max_trace_samples"`

	// MinNameLength rejects shorter product names as too generic.
	MinNameLength int `mapstructure:"min_name_length" yaml:"min_name_length"`

	// GenericTerms is the stop-list of single-word product names that
	// short-circuit with a coaching message instead of an estimate.
	GenericTerms []string `mapstructure:"generic_terms" yaml:"generic_terms"`
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	AcceptLanguage  string        `mapstructure:"accept_language"   yaml:"accept_language"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// ProxyConfig controls optional proxy rotation for marketplace fetches.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// SourcesConfig controls the marketplace adapters.
type SourcesConfig struct {
	// SerpAPIKey authenticates the structured search API adapters.
	// An empty key is a valid state: those adapters return zero offers.
	SerpAPIKey string `mapstructure:"serpapi_key" yaml:"serpapi_key"`

	// SerpAPIEndpoint is overridable for tests.
	SerpAPIEndpoint string `mapstructure:"serpapi_endpoint" yaml:"serpapi_endpoint"`

	// ResultLimit is the fixed per-call result cap for the API adapters.
	ResultLimit int `mapstructure:"result_limit" yaml:"result_limit"`

	// AmazonDomain selects the Amazon marketplace to search.
	AmazonDomain string `mapstructure:"amazon_domain" yaml:"amazon_domain"`

	// Locale is the hl/gl hint passed to the shopping search API.
	Locale string `mapstructure:"locale" yaml:"locale"`

	// EbayHosts are the regional listing hosts queried in order.
	EbayHosts []string `mapstructure:"ebay_hosts" yaml:"ebay_hosts"`
}

// ScoringConfig controls relevance filtering.
type ScoringConfig struct {
	// ListingThreshold is the acceptance threshold for scraped listings.
	// Stricter than APIThreshold: scraped titles are noisier.
	ListingThreshold float64 `mapstructure:"listing_threshold" yaml:"listing_threshold"`

	// APIThreshold is the acceptance threshold for structured API sources.
	APIThreshold float64 `mapstructure:"api_threshold" yaml:"api_threshold"`

	// FilterMultipacks drops offers whose title looks like a multipack
	// (x2, lot de 3, pack 4, 10 pcs) before scoring.
	FilterMultipacks bool `mapstructure:"filter_multipacks" yaml:"filter_multipacks"`
}

// PricingConfig controls currency conversion and sample plausibility.
type PricingConfig struct {
	// ReferenceCurrency is the currency all samples are converted to.
	ReferenceCurrency string `mapstructure:"reference_currency" yaml:"reference_currency"`

	// Rates converts one unit of each currency into the reference currency.
	Rates map[string]float64 `mapstructure:"rates" yaml:"rates"`

	// MinPrice/MaxPrice bound the plausibility window; amounts outside
	// are discarded as noise (SKU numbers, quantities, weights).
	MinPrice float64 `mapstructure:"min_price" yaml:"min_price"`
	MaxPrice float64 `mapstructure:"max_price" yaml:"max_price"`

	// ListingPriceCap bounds how many coarse listing-page prices from a
	// single search page are pooled.
	ListingPriceCap int `mapstructure:"listing_price_cap" yaml:"listing_price_cap"`
}

// StorageConfig controls the optional estimation-history backends.
type StorageConfig struct {
	Type            string `mapstructure:"type"             yaml:"type"` // none, jsonl, mongodb
	OutputPath      string `mapstructure:"output_path"      yaml:"output_path"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           5005,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Engine: EngineConfig{
			RequestTimeout:   10 * time.Second,
			MaxTotalRequests: 18,
			MaxDetailPages:   4,
			SampleTarget:     120,
			MaxTraceSamples:  5,
			MinNameLength:    4,
			GenericTerms: []string{
				"savon", "soap", "bougie", "candle", "assiette", "plate",
				"tasse", "mug", "lampe", "lamp", "bol", "bowl", "plat", "dish",
			},
		},
		Fetcher: FetcherConfig{
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
			AcceptLanguage:  "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
		},
		Sources: SourcesConfig{
			SerpAPIEndpoint: "https://serpapi.com/search.json",
			ResultLimit:     12,
			AmazonDomain:    "amazon.fr",
			Locale:          "fr",
			EbayHosts:       []string{"www.ebay.com", "www.ebay.fr"},
		},
		Scoring: ScoringConfig{
			ListingThreshold: 0.2,
			APIThreshold:     0.1,
			FilterMultipacks: false,
		},
		Pricing: PricingConfig{
			ReferenceCurrency: "USD",
			Rates: map[string]float64{
				"USD": 1.0,
				"EUR": 1.10,
				"GBP": 1.30,
			},
			MinPrice:        0.5,
			MaxPrice:        5000.0,
			ListingPriceCap: 20,
		},
		Storage: StorageConfig{
			Type:            "none",
			OutputPath:      "./history/estimates.jsonl",
			MongoDatabase:   "priceloupe",
			MongoCollection: "estimates",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/api/metrics",
		},
	}
}
