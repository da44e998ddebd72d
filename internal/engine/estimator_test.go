package engine

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"priceloupe/internal/config"
	"priceloupe/internal/fetcher"
	"priceloupe/internal/observability"
	"priceloupe/internal/pricing"
	"priceloupe/internal/sources"
	"priceloupe/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// stubSource returns a fixed Result and records the queries and budget
// draws it saw.
type stubSource struct {
	name      string
	threshold float64
	result    *sources.Result
	cost      int // budget units consumed per Fetch
	queries   []string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Threshold() float64 { return s.threshold }

func (s *stubSource) Fetch(ctx context.Context, q string, budget *fetcher.Budget) *sources.Result {
	s.queries = append(s.queries, q)
	for i := 0; i < s.cost; i++ {
		if !budget.TryAcquire() {
			return &sources.Result{}
		}
	}
	if s.result == nil {
		return &sources.Result{}
	}
	return s.result
}

func newTestEstimator(cfg *config.Config, srcs ...sources.Source) *Estimator {
	conv := pricing.NewConverter(&cfg.Pricing)
	metrics := observability.NewMetrics(testLogger)
	return New(cfg, srcs, conv, metrics, testLogger)
}

func offersResult(prices ...float64) *sources.Result {
	res := &sources.Result{}
	for _, p := range prices {
		res.Offers = append(res.Offers, types.Offer{
			Title:    "handmade wooden bowl",
			URL:      "https://www.example.com/item",
			Price:    types.Float(p),
			Currency: "USD",
			Source:   "stub",
			Domain:   "example.com",
		})
	}
	return res
}

func TestEstimateEmptyName(t *testing.T) {
	est := newTestEstimator(config.DefaultConfig())

	for _, name := range []string{"", "   "} {
		res := est.Estimate(context.Background(), name)
		if res.EstimatedPrice != nil || res.SuggestedLow != nil || res.SuggestedHigh != nil {
			t.Error("empty name should yield null estimate and band")
		}
		if res.Message == nil || *res.Message != "Product name is empty." {
			t.Errorf("message = %v", res.Message)
		}
		if res.Offers == nil || res.Samples == nil {
			t.Error("offers and samples must be empty slices, not nil")
		}
	}
}

func TestEstimateTooGenericName(t *testing.T) {
	src := &stubSource{name: "stub", result: offersResult(20)}
	est := newTestEstimator(config.DefaultConfig(), src)

	for _, name := range []string{"savon", "Soap", "bol", "xy"} {
		res := est.Estimate(context.Background(), name)
		if res.EstimatedPrice != nil {
			t.Errorf("%q: expected null estimate", name)
		}
		if res.Message == nil || !strings.Contains(*res.Message, "too generic") {
			t.Errorf("%q: message = %v", name, res.Message)
		}
	}
	if len(src.queries) != 0 {
		t.Errorf("rejected names must not reach the sources, got %v", src.queries)
	}
}

func TestEstimateShortAccentedNameRejected(t *testing.T) {
	src := &stubSource{name: "stub", result: offersResult(20)}
	est := newTestEstimator(config.DefaultConfig(), src)

	// "thé" is 3 characters but 4 bytes; the length gate counts
	// characters, so it must be rejected like any other short name.
	res := est.Estimate(context.Background(), "thé")

	if res.EstimatedPrice != nil {
		t.Error("expected null estimate")
	}
	if res.Message == nil || !strings.Contains(*res.Message, "too generic") {
		t.Errorf("message = %v", res.Message)
	}
	if len(src.queries) != 0 {
		t.Errorf("short name must not reach the sources, got %v", src.queries)
	}
}

func TestEstimateQualifiedGenericTermAccepted(t *testing.T) {
	src := &stubSource{name: "stub", result: offersResult(20, 21, 22)}
	est := newTestEstimator(config.DefaultConfig(), src)

	// "savon" alone is rejected; a qualified name is not.
	res := est.Estimate(context.Background(), "savon olive marseille")
	if res.Message != nil {
		t.Fatalf("unexpected message: %v", *res.Message)
	}
	if res.EstimatedPrice == nil {
		t.Fatal("expected an estimate")
	}
}

func TestEstimateHappyPath(t *testing.T) {
	src := &stubSource{name: "stub", result: offersResult(18, 20, 22, 24)}
	est := newTestEstimator(config.DefaultConfig(), src)

	res := est.Estimate(context.Background(), "handmade wooden bowl")

	if res.Message != nil {
		t.Fatalf("unexpected message: %v", *res.Message)
	}
	if res.EstimatedPrice == nil || *res.EstimatedPrice != 21 {
		t.Errorf("estimate = %v, want 21", res.EstimatedPrice)
	}
	if res.SuggestedLow == nil || res.SuggestedHigh == nil {
		t.Fatal("expected a suggested band")
	}
	if *res.SuggestedLow > *res.SuggestedHigh {
		t.Error("band inverted")
	}
	if res.Stats.Count == 0 {
		t.Error("stats should reflect the pooled samples")
	}
	if len(res.Offers) == 0 {
		t.Fatal("expected accepted offers")
	}
	for i := 1; i < len(res.Offers); i++ {
		if res.Offers[i].Relevance > res.Offers[i-1].Relevance {
			t.Error("offers not sorted by relevance descending")
		}
	}
}

func TestEstimateThresholdFiltersIrrelevantOffers(t *testing.T) {
	// "handcrafted walnut tray" has no dictionary word, so there is a
	// single query variant and the source runs exactly once.
	res := &sources.Result{Offers: []types.Offer{
		{Title: "handcrafted walnut tray", URL: "https://a.example.com/1", Price: types.Float(20), Currency: "USD"},
		{Title: "vintage silk scarf collection", URL: "https://a.example.com/2", Price: types.Float(90), Currency: "USD"},
	}}
	src := &stubSource{name: "stub", threshold: 0.2, result: res}
	est := newTestEstimator(config.DefaultConfig(), src)

	out := est.Estimate(context.Background(), "handcrafted walnut tray")

	for _, o := range out.Offers {
		if strings.Contains(o.Title, "scarf") {
			t.Error("irrelevant offer passed the threshold")
		}
	}
	// The scarf's price must not pollute the sample pool either.
	if out.Stats.Count != 1 {
		t.Errorf("pooled samples = %d, want 1", out.Stats.Count)
	}
}

func TestEstimateNoRelevantData(t *testing.T) {
	src := &stubSource{name: "stub", result: &sources.Result{}}
	est := newTestEstimator(config.DefaultConfig(), src)

	res := est.Estimate(context.Background(), "handmade wooden bowl")
	if res.Message == nil || *res.Message != "No relevant price found." {
		t.Errorf("message = %v", res.Message)
	}
	if res.EstimatedPrice != nil {
		t.Error("expected null estimate")
	}
}

func TestEstimateListingPricesPooledWithTrace(t *testing.T) {
	res := &sources.Result{
		ListingPrices: []float64{10, 11, 12, 13},
		ListingURL:    "https://www.ebay.com/sch/i.html?_nkw=bowl",
	}
	src := &stubSource{name: "ebay", result: res}
	est := newTestEstimator(config.DefaultConfig(), src)

	out := est.Estimate(context.Background(), "handcrafted walnut tray")

	if out.Stats.Count != 4 {
		t.Errorf("pooled = %d, want 4 listing prices", out.Stats.Count)
	}
	if len(out.Samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(out.Samples))
	}
	s := out.Samples[0]
	if s.Link != res.ListingURL {
		t.Errorf("sample link = %q", s.Link)
	}
	if len(s.SnippetPricesUSD) != 3 {
		t.Errorf("snippet prices = %v, want first 3", s.SnippetPricesUSD)
	}
}

func TestEstimateListingPriceCap(t *testing.T) {
	prices := make([]float64, 50)
	for i := range prices {
		prices[i] = 10 + float64(i%5)
	}
	src := &stubSource{name: "ebay", result: &sources.Result{
		ListingPrices: prices,
		ListingURL:    "https://www.ebay.com/sch/i.html?_nkw=x",
	}}
	cfg := config.DefaultConfig()
	est := newTestEstimator(cfg, src)

	out := est.Estimate(context.Background(), "handcrafted walnut tray")
	if out.Stats.Count != cfg.Pricing.ListingPriceCap {
		t.Errorf("pooled = %d, want capped at %d", out.Stats.Count, cfg.Pricing.ListingPriceCap)
	}
}

func TestEstimateBudgetSharedAcrossSources(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.MaxTotalRequests = 3

	a := &stubSource{name: "a", cost: 2, result: offersResult(20)}
	b := &stubSource{name: "b", cost: 2, result: offersResult(30)}
	c := &stubSource{name: "c", cost: 2, result: offersResult(40)}
	est := newTestEstimator(cfg, a, b, c)

	est.Estimate(context.Background(), "handmade wooden bowl")

	// a takes 2, b is denied its second unit and the loop stops on
	// exhaustion; c is never reached.
	if len(a.queries) != 1 || len(b.queries) != 1 {
		t.Errorf("a=%d b=%d calls, want 1 each", len(a.queries), len(b.queries))
	}
	if len(c.queries) != 0 {
		t.Errorf("c should never run after exhaustion, got %d calls", len(c.queries))
	}
}

func TestEstimateBudgetOfOneAllowsSingleCall(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.MaxTotalRequests = 1

	a := &stubSource{name: "a", cost: 1, result: &sources.Result{}}
	b := &stubSource{name: "b", cost: 1, result: &sources.Result{}}
	est := newTestEstimator(cfg, a, b)

	est.Estimate(context.Background(), "bol en bois artisanal")

	if len(a.queries) != 1 {
		t.Errorf("a calls = %d, want exactly 1", len(a.queries))
	}
	if len(b.queries) != 0 {
		t.Errorf("b should never run on an exhausted budget, got %d calls", len(b.queries))
	}
}

func TestEstimateAllSourcesEmpty(t *testing.T) {
	a := &stubSource{name: "ebay", result: &sources.Result{}}
	b := &stubSource{name: "amazon", result: &sources.Result{}}
	c := &stubSource{name: "gshopping", result: &sources.Result{}}
	est := newTestEstimator(config.DefaultConfig(), a, b, c)

	res := est.Estimate(context.Background(), "bol en bois artisanal")

	if res.EstimatedPrice != nil || res.SuggestedLow != nil || res.SuggestedHigh != nil {
		t.Error("no data from any source, estimate and band must be null")
	}
	if res.Stats.Median != nil || res.Stats.Count != 0 {
		t.Error("stats must be empty")
	}
	if len(res.Offers) != 0 || res.Offers == nil {
		t.Errorf("offers = %v, want empty non-nil slice", res.Offers)
	}
	if len(res.Samples) != 0 || res.Samples == nil {
		t.Errorf("samples = %v, want empty non-nil slice", res.Samples)
	}
	if res.Message == nil || *res.Message != "No relevant price found." {
		t.Errorf("message = %v", res.Message)
	}
}

func TestEstimateSampleTargetStopsEarly(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.SampleTarget = 3

	a := &stubSource{name: "a", result: offersResult(20, 21, 22)}
	b := &stubSource{name: "b", result: offersResult(30)}
	est := newTestEstimator(cfg, a, b)

	est.Estimate(context.Background(), "handmade wooden bowl")

	if len(a.queries) != 1 {
		t.Errorf("a calls = %d", len(a.queries))
	}
	if len(b.queries) != 0 {
		t.Errorf("b should not run once the sample target is met, got %d calls", len(b.queries))
	}
}

func TestEstimateVariantsFanOut(t *testing.T) {
	src := &stubSource{name: "stub", result: &sources.Result{}}
	est := newTestEstimator(config.DefaultConfig(), src)

	est.Estimate(context.Background(), "handmade ceramic bowl")

	if len(src.queries) != 2 {
		t.Fatalf("expected 2 variant queries, got %v", src.queries)
	}
	if src.queries[0] != "handmade ceramic bowl" {
		t.Errorf("first query = %q", src.queries[0])
	}
	if src.queries[1] != "handmade céramique bol" {
		t.Errorf("second query = %q", src.queries[1])
	}
}

func TestEstimateContextCancelled(t *testing.T) {
	src := &stubSource{name: "stub", result: offersResult(20)}
	est := newTestEstimator(config.DefaultConfig(), src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := est.Estimate(ctx, "handmade wooden bowl")
	if len(src.queries) != 0 {
		t.Errorf("cancelled context must stop the fan-out, got %v", src.queries)
	}
	if res.Message == nil {
		t.Error("nothing collected, expected the no-data message")
	}
}

func TestEstimateMultipackFilter(t *testing.T) {
	res := &sources.Result{Offers: []types.Offer{
		{Title: "handcrafted walnut tray", URL: "https://a.example.com/1", Price: types.Float(20), Currency: "USD"},
		{Title: "handcrafted walnut tray lot de 3", URL: "https://a.example.com/2", Price: types.Float(50), Currency: "USD"},
		{Title: "handcrafted walnut tray x2", URL: "https://a.example.com/3", Price: types.Float(35), Currency: "USD"},
	}}

	t.Run("disabled by default", func(t *testing.T) {
		src := &stubSource{name: "stub", result: res}
		est := newTestEstimator(config.DefaultConfig(), src)
		out := est.Estimate(context.Background(), "handcrafted walnut tray")
		if len(out.Offers) != 3 {
			t.Errorf("offers = %d, want all 3", len(out.Offers))
		}
	})

	t.Run("enabled drops multipacks", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Scoring.FilterMultipacks = true
		src := &stubSource{name: "stub", result: res}
		est := newTestEstimator(cfg, src)
		out := est.Estimate(context.Background(), "handcrafted walnut tray")
		if len(out.Offers) != 1 {
			t.Fatalf("offers = %d, want 1", len(out.Offers))
		}
		if out.Offers[0].Title != "handcrafted walnut tray" {
			t.Errorf("kept %q", out.Offers[0].Title)
		}
	})
}

func TestEstimateOfferCurrencyConverted(t *testing.T) {
	res := &sources.Result{Offers: []types.Offer{
		{Title: "handmade wooden bowl", URL: "https://a.example.com/1", Price: types.Float(10), Currency: "EUR"},
	}}
	src := &stubSource{name: "stub", result: res}
	est := newTestEstimator(config.DefaultConfig(), src)

	out := est.Estimate(context.Background(), "handmade wooden bowl")

	// The pooled sample is 10 EUR -> 11 USD; the displayed offer price
	// stays in its own currency.
	if out.EstimatedPrice == nil || *out.EstimatedPrice != 11 {
		t.Errorf("estimate = %v, want 11", out.EstimatedPrice)
	}
	if *out.Offers[0].Price != 10 || out.Offers[0].Currency != "EUR" {
		t.Errorf("offer price mutated: %v %s", *out.Offers[0].Price, out.Offers[0].Currency)
	}
}

func TestEstimateOfferWithoutPriceStillListed(t *testing.T) {
	res := &sources.Result{Offers: []types.Offer{
		{Title: "handcrafted walnut tray", URL: "https://a.example.com/1"},
	}}
	src := &stubSource{name: "stub", result: res}
	est := newTestEstimator(config.DefaultConfig(), src)

	out := est.Estimate(context.Background(), "handcrafted walnut tray")

	if len(out.Offers) != 1 {
		t.Fatalf("offers = %d, want 1", len(out.Offers))
	}
	if out.EstimatedPrice != nil {
		t.Error("no priced samples, estimate must stay null")
	}
	if out.Message != nil {
		t.Errorf("offers exist, no message expected; got %v", *out.Message)
	}
	if out.Stats.Count != 0 {
		t.Errorf("count = %d, want 0", out.Stats.Count)
	}
}
