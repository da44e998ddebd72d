// Package sources implements the marketplace adapters the estimator fans
// out to: a listing+detail page scraper and two structured search API
// adapters. Adapters return whatever they could parse; relevance
// filtering is the orchestrator's job.
package sources

import (
	"context"

	"priceloupe/internal/fetcher"
	"priceloupe/internal/types"
)

// Result is everything one adapter call could extract for a query.
type Result struct {
	// Offers are the candidate listings, relevance not yet scored.
	Offers []types.Offer

	// ListingPrices are coarse reference-currency prices scanned from the
	// raw search-results page (scraper source only).
	ListingPrices []float64

	// ListingURL is the search page the listing prices came from, kept
	// for traceability snippets.
	ListingURL string
}

// Source is the capability "fetch candidate offers for a query string,
// bounded by the fetch budget". Degraded sources (missing credential,
// transport failure, non-2xx, exhausted budget) return an empty Result
// and no error: a flaky upstream contributes fewer samples, never a
// request-level fault.
type Source interface {
	// Name tags offers produced by this adapter.
	Name() string

	// Threshold is the minimum relevance score an offer from this
	// adapter must reach to be accepted.
	Threshold() float64

	// Fetch collects candidate offers for the query.
	Fetch(ctx context.Context, query string, budget *fetcher.Budget) *Result
}
