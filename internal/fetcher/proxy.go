package fetcher

import (
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync/atomic"

	"priceloupe/internal/config"
)

// ProxyRotation rotates outbound marketplace fetches over a proxy pool.
// Listing hosts throttle repeated scraping from a single address; a small
// pool keeps the scraper adapter usable under that throttling.
type ProxyRotation struct {
	proxies  []*url.URL
	rotation string
	index    atomic.Int64
	logger   *slog.Logger
}

// NewProxyRotation creates a ProxyRotation from configuration. Invalid
// proxy URLs are skipped with a warning.
func NewProxyRotation(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyRotation {
	pr := &ProxyRotation{
		proxies:  make([]*url.URL, 0, len(cfg.URLs)),
		rotation: cfg.Rotation,
		logger:   logger.With("component", "proxy_rotation"),
	}

	for _, rawURL := range cfg.URLs {
		u, err := url.Parse(rawURL)
		if err != nil {
			pr.logger.Warn("invalid proxy URL", "url", rawURL, "error", err)
			continue
		}
		pr.proxies = append(pr.proxies, u)
	}

	pr.logger.Info("proxy rotation initialized", "count", len(pr.proxies), "rotation", cfg.Rotation)
	return pr
}

// ProxyFunc returns an http.Transport-compatible proxy function.
func (pr *ProxyRotation) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		return pr.Next(), nil // nil proxy = direct connection
	}
}

// Next returns the next proxy URL based on the rotation strategy.
func (pr *ProxyRotation) Next() *url.URL {
	if len(pr.proxies) == 0 {
		return nil
	}
	switch pr.rotation {
	case "random":
		return pr.proxies[rand.Intn(len(pr.proxies))]
	default: // round_robin
		idx := pr.index.Add(1) % int64(len(pr.proxies))
		return pr.proxies[idx]
	}
}
