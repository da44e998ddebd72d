package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"priceloupe/internal/config"
	"priceloupe/internal/fetcher"
	"priceloupe/internal/pricing"
	"priceloupe/internal/types"
)

// SerpClient is the shared client for the structured search API backing
// the Amazon and Google Shopping adapters.
type SerpClient struct {
	endpoint string
	key      string
	httpc    *http.Client
	logger   *slog.Logger
}

// NewSerpClient creates a SerpClient. An empty API key is a valid state:
// Search reports ErrMissingAPIKey and the adapters degrade to zero offers.
func NewSerpClient(cfg *config.Config, logger *slog.Logger) *SerpClient {
	return &SerpClient{
		endpoint: cfg.Sources.SerpAPIEndpoint,
		key:      cfg.Sources.SerpAPIKey,
		httpc:    &http.Client{Timeout: cfg.Engine.RequestTimeout},
		logger:   logger.With("component", "serpapi_client"),
	}
}

// Configured reports whether an API key is present.
func (c *SerpClient) Configured() bool { return c.key != "" }

// Search issues one budget-counted API call and decodes the JSON response
// into out.
func (c *SerpClient) Search(ctx context.Context, budget *fetcher.Budget, params url.Values, out any) error {
	if c.key == "" {
		return types.ErrMissingAPIKey
	}
	if !budget.TryAcquire() {
		return types.ErrBudgetExhausted
	}

	params.Set("api_key", c.key)
	reqURL := c.endpoint + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &types.FetchError{URL: c.endpoint, Err: err}
	}

	start := time.Now()
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return &types.FetchError{URL: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &types.FetchError{
			URL:        c.endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("search API: %s", strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &types.ParseError{URL: c.endpoint, Err: err}
	}

	c.logger.Debug("search API call complete",
		"engine", params.Get("engine"),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return nil
}

// serpPrice is a price field that the search API returns in several
// shapes: a bare number, a displayed string ("24,99 €"), or an object
// with a numeric value.
type serpPrice struct {
	value *float64
}

func (p *serpPrice) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		p.value = &num
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, ok := pricing.ParseDisplayed(s); ok {
			p.value = &v
		}
		return nil
	}

	var obj struct {
		Value *float64 `json:"value"`
		Raw   string   `json:"raw"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Value != nil {
			p.value = obj.Value
		} else if v, ok := pricing.ParseDisplayed(obj.Raw); ok {
			p.value = &v
		}
	}
	// Unrecognized shapes are a parse miss, not an error.
	return nil
}
