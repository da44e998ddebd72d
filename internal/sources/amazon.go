package sources

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"priceloupe/internal/config"
	"priceloupe/internal/fetcher"
	"priceloupe/internal/types"
)

// AmazonSource queries the structured search API's Amazon engine.
type AmazonSource struct {
	client    *SerpClient
	domain    string
	limit     int
	threshold float64
	logger    *slog.Logger
}

// NewAmazonSource creates the Amazon adapter.
func NewAmazonSource(client *SerpClient, cfg *config.Config, logger *slog.Logger) *AmazonSource {
	return &AmazonSource{
		client:    client,
		domain:    cfg.Sources.AmazonDomain,
		limit:     cfg.Sources.ResultLimit,
		threshold: cfg.Scoring.APIThreshold,
		logger:    logger.With("component", "amazon_source"),
	}
}

func (s *AmazonSource) Name() string { return "amazon" }

func (s *AmazonSource) Threshold() float64 { return s.threshold }

type amazonItem struct {
	Title string     `json:"title"`
	Link  string     `json:"link"`
	Price *serpPrice `json:"price"`
}

type amazonResponse struct {
	Error          string       `json:"error"`
	OrganicResults []amazonItem `json:"organic_results"`
	SearchResults  []amazonItem `json:"search_results"`
}

// Fetch searches the Amazon marketplace for the query. Every failure mode
// (missing key, exhausted budget, transport error, API-level error field)
// degrades to zero offers.
func (s *AmazonSource) Fetch(ctx context.Context, query string, budget *fetcher.Budget) *Result {
	params := url.Values{}
	params.Set("engine", "amazon")
	params.Set("amazon_domain", s.domain)
	params.Set("type", "search")
	params.Set("k", query) // the Amazon engine takes 'k', not 'q'
	params.Set("page", "1")
	params.Set("num", strconv.Itoa(s.limit))

	var resp amazonResponse
	if err := s.client.Search(ctx, budget, params, &resp); err != nil {
		if !errors.Is(err, types.ErrMissingAPIKey) && !errors.Is(err, types.ErrBudgetExhausted) {
			s.logger.Warn("amazon search failed", "error", err)
		}
		return &Result{}
	}
	if resp.Error != "" {
		s.logger.Warn("amazon search API error", "error", resp.Error)
		return &Result{}
	}

	records := resp.OrganicResults
	if len(records) == 0 {
		records = resp.SearchResults
	}
	if len(records) > s.limit {
		records = records[:s.limit]
	}

	result := &Result{}
	for _, rec := range records {
		title := strings.TrimSpace(rec.Title)
		link := strings.TrimSpace(rec.Link)
		if title == "" || link == "" {
			continue
		}
		var price *float64
		if rec.Price != nil {
			price = rec.Price.value
		}
		result.Offers = append(result.Offers, types.Offer{
			Title:    title,
			URL:      link,
			Price:    price,
			Currency: "EUR",
			Source:   s.Name(),
			Domain:   types.Domain(link),
		})
	}

	s.logger.Debug("amazon offers built", "query", query, "offers", len(result.Offers))
	return result
}
