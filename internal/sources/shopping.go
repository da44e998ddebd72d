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

// ShoppingSource queries the structured search API's Google Shopping
// engine.
type ShoppingSource struct {
	client    *SerpClient
	locale    string
	limit     int
	threshold float64
	logger    *slog.Logger
}

// NewShoppingSource creates the Google Shopping adapter.
func NewShoppingSource(client *SerpClient, cfg *config.Config, logger *slog.Logger) *ShoppingSource {
	return &ShoppingSource{
		client:    client,
		locale:    cfg.Sources.Locale,
		limit:     cfg.Sources.ResultLimit,
		threshold: cfg.Scoring.APIThreshold,
		logger:    logger.With("component", "shopping_source"),
	}
}

func (s *ShoppingSource) Name() string { return "gshopping" }

func (s *ShoppingSource) Threshold() float64 { return s.threshold }

type shoppingItem struct {
	Title          string     `json:"title"`
	Name           string     `json:"name"`
	Link           string     `json:"link"`
	ProductLink    string     `json:"product_link"`
	ExtractedPrice *float64   `json:"extracted_price"`
	Price          *serpPrice `json:"price"`
}

type shoppingResponse struct {
	Error           string         `json:"error"`
	ShoppingResults []shoppingItem `json:"shopping_results"`
}

// Fetch searches Google Shopping for the query, degrading to zero offers
// on any failure.
func (s *ShoppingSource) Fetch(ctx context.Context, query string, budget *fetcher.Budget) *Result {
	params := url.Values{}
	params.Set("engine", "google_shopping")
	params.Set("q", query)
	params.Set("hl", s.locale)
	params.Set("gl", s.locale)
	params.Set("num", strconv.Itoa(s.limit))

	var resp shoppingResponse
	if err := s.client.Search(ctx, budget, params, &resp); err != nil {
		if !errors.Is(err, types.ErrMissingAPIKey) && !errors.Is(err, types.ErrBudgetExhausted) {
			s.logger.Warn("shopping search failed", "error", err)
		}
		return &Result{}
	}
	if resp.Error != "" {
		s.logger.Warn("shopping search API error", "error", resp.Error)
		return &Result{}
	}

	records := resp.ShoppingResults
	if len(records) > s.limit {
		records = records[:s.limit]
	}

	result := &Result{}
	for _, rec := range records {
		title := strings.TrimSpace(rec.Title)
		if title == "" {
			title = strings.TrimSpace(rec.Name)
		}
		link := strings.TrimSpace(rec.Link)
		if link == "" {
			link = strings.TrimSpace(rec.ProductLink)
		}
		if title == "" || link == "" {
			continue
		}
		price := rec.ExtractedPrice
		if price == nil && rec.Price != nil {
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

	s.logger.Debug("shopping offers built", "query", query, "offers", len(result.Offers))
	return result
}
