// Package engine drives the estimation pipeline: query variants fanned
// out over the marketplace adapters under a shared fetch budget, offers
// scored and filtered, price samples pooled and reduced to a robust
// estimate.
package engine

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"priceloupe/internal/config"
	"priceloupe/internal/fetcher"
	"priceloupe/internal/observability"
	"priceloupe/internal/pricing"
	"priceloupe/internal/query"
	"priceloupe/internal/relevance"
	"priceloupe/internal/sources"
	"priceloupe/internal/types"
)

// Messages for degraded outcomes. These are part of the response payload,
// not errors: an empty estimate is a successful response.
const (
	msgEmptyName  = "Product name is empty."
	msgTooGeneric = "Name is too generic — add one or two qualifying words (e.g. 'savon olive marseille 125g', 'bol en bois artisanal')."
	msgNoData     = "No relevant price found."
)

// multipackRE flags titles that look like multipacks (x2, lot de 3,
// pack 4, 10 pcs), whose unit economics would skew the estimate.
var multipackRE = regexp.MustCompile(`(?i)\b(x\s?\d+|lot\s+de\s+\d+|pack\s?\d+|\d+\s?(?:pcs|pieces?))\b`)

// Estimator runs the full multi-source estimation pipeline. It holds only
// read-only configuration and stateless collaborators; every call to
// Estimate owns its own budget counter and sample pool.
type Estimator struct {
	cfg     *config.Config
	builder *query.Builder
	sources []sources.Source
	conv    *pricing.Converter
	fetcher fetcher.Fetcher
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New assembles an Estimator from pre-built collaborators.
func New(cfg *config.Config, srcs []sources.Source, conv *pricing.Converter, metrics *observability.Metrics, logger *slog.Logger) *Estimator {
	return &Estimator{
		cfg:     cfg,
		builder: query.NewBuilder(),
		sources: srcs,
		conv:    conv,
		metrics: metrics,
		logger:  logger.With("component", "estimator"),
	}
}

// NewFromConfig wires the default adapter stack: the two regional listing
// scrapers in host order, then the Amazon and Google Shopping API
// adapters.
func NewFromConfig(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Estimator {
	conv := pricing.NewConverter(&cfg.Pricing)
	httpFetcher := fetcher.NewHTTPFetcher(cfg, logger)
	serp := sources.NewSerpClient(cfg, logger)

	var srcs []sources.Source
	for _, host := range cfg.Sources.EbayHosts {
		srcs = append(srcs, sources.NewEbaySource(host, httpFetcher, conv, cfg, logger))
	}
	srcs = append(srcs,
		sources.NewAmazonSource(serp, cfg, logger),
		sources.NewShoppingSource(serp, cfg, logger),
	)

	est := New(cfg, srcs, conv, metrics, logger)
	est.fetcher = httpFetcher
	return est
}

// Close releases the underlying fetcher, when the estimator owns one.
func (e *Estimator) Close() error {
	if e.fetcher != nil {
		return e.fetcher.Close()
	}
	return nil
}

// Estimate runs the pipeline for one product name and always returns a
// result: degraded outcomes carry a message instead of failing.
func (e *Estimator) Estimate(ctx context.Context, name string) *types.EstimationResult {
	e.metrics.EstimatesTotal.Add(1)

	name = strings.TrimSpace(name)
	if name == "" {
		e.metrics.EstimatesEmpty.Add(1)
		return types.EmptyResult(msgEmptyName)
	}
	if e.tooGeneric(name) {
		e.metrics.EstimatesRejected.Add(1)
		e.logger.Info("name rejected as too generic", "name", name)
		return types.EmptyResult(msgTooGeneric)
	}

	variants := e.builder.Build(name)
	if len(variants) == 0 {
		e.metrics.EstimatesEmpty.Add(1)
		return types.EmptyResult(msgEmptyName)
	}

	budget := fetcher.NewBudget(e.cfg.Engine.MaxTotalRequests)
	q := relevance.NewQuery(name)

	var (
		pooled  []float64
		offers  []types.Offer
		samples = []types.Sample{}
	)

collect:
	for _, variant := range variants {
		for _, src := range e.sources {
			if ctx.Err() != nil {
				// Client went away: stop issuing network calls and
				// aggregate whatever was collected.
				e.logger.Debug("estimation cancelled", "name", name)
				break collect
			}

			res := src.Fetch(ctx, variant, budget)

			if len(res.ListingPrices) > 0 {
				listing := res.ListingPrices
				if len(listing) > e.cfg.Pricing.ListingPriceCap {
					listing = listing[:e.cfg.Pricing.ListingPriceCap]
				}
				pooled = append(pooled, listing...)
				if len(samples) < e.cfg.Engine.MaxTraceSamples {
					samples = append(samples, types.Sample{
						Link:             res.ListingURL,
						SnippetPricesUSD: head(res.ListingPrices, 3),
					})
				}
			}

			for _, offer := range res.Offers {
				e.metrics.OffersSeen.Add(1)
				if e.cfg.Scoring.FilterMultipacks && multipackRE.MatchString(offer.Title) {
					continue
				}
				offer.Relevance = round3(q.Score(offer.Title))
				if offer.Relevance < src.Threshold() {
					continue
				}
				if offer.Price != nil {
					pooled = append(pooled, e.conv.Convert(*offer.Price, offer.Currency))
				}
				offers = append(offers, offer)
				e.metrics.OffersAccepted.Add(1)
			}

			if len(pooled) >= e.cfg.Engine.SampleTarget || budget.Exhausted() {
				break collect
			}
		}
	}

	e.metrics.FetchesUsed.Add(int64(budget.Used()))
	e.metrics.SamplesPooled.Add(int64(len(pooled)))

	stats, estimate, low, high := e.conv.Aggregate(pooled)
	if stats.Count == 0 && len(offers) == 0 {
		e.metrics.EstimatesEmpty.Add(1)
		result := types.EmptyResult(msgNoData)
		result.Samples = samples
		return result
	}

	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Relevance > offers[j].Relevance
	})
	if offers == nil {
		offers = []types.Offer{}
	}

	e.logger.Info("estimation complete",
		"name", name,
		"variants", len(variants),
		"fetches", budget.Used(),
		"samples", stats.Count,
		"offers", len(offers),
	)

	return &types.EstimationResult{
		EstimatedPrice: estimate,
		SuggestedLow:   low,
		SuggestedHigh:  high,
		Stats:          stats,
		Offers:         offers,
		Samples:        samples,
	}
}

// tooGeneric rejects names the pipeline cannot usefully estimate: too
// short, or exactly one of the bundled overly generic product terms.
func (e *Estimator) tooGeneric(name string) bool {
	if utf8.RuneCountInString(name) < e.cfg.Engine.MinNameLength {
		return true
	}
	low := strings.ToLower(name)
	for _, term := range e.cfg.Engine.GenericTerms {
		if low == term {
			return true
		}
	}
	return false
}

func head(v []float64, n int) []float64 {
	if len(v) > n {
		v = v[:n]
	}
	return append([]float64(nil), v...)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
