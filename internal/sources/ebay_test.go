package sources

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"priceloupe/internal/config"
	"priceloupe/internal/fetcher"
	"priceloupe/internal/pricing"
	"priceloupe/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// stubFetcher serves canned bodies keyed by URL substring and records
// every URL it was asked for.
type stubFetcher struct {
	pages map[string]string // URL substring -> body
	calls []string
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*types.Response, error) {
	f.calls = append(f.calls, url)
	for key, body := range f.pages {
		if strings.Contains(url, key) {
			return &types.Response{StatusCode: 200, Body: []byte(body), URL: url}, nil
		}
	}
	return nil, &types.FetchError{URL: url, StatusCode: 404}
}

func (f *stubFetcher) Close() error { return nil }

const listingHTML = `<!DOCTYPE html>
<html><body>
<ul class="srp-results">
  <li class="s-item">
    <a class="s-item__link" href="https://www.ebay.com/itm/111">
      <span class="s-item__title">Handmade ceramic bowl blue</span>
    </a>
    <span class="s-item__price">$24.99</span>
  </li>
  <li class="s-item">
    <a class="s-item__link" href="https://www.ebay.com/itm/222">
      <span class="s-item__title">Ceramic bowl set of 2</span>
    </a>
    <span class="s-item__price">$39.00</span>
  </li>
  <li class="s-item">
    <a class="s-item__link" href="https://www.ebay.com/itm/111">
      <span class="s-item__title">Handmade ceramic bowl blue (duplicate row)</span>
    </a>
    <span class="s-item__price">$24.99</span>
  </li>
</ul>
</body></html>`

const detailHTML = `<!DOCTYPE html>
<html><head>
<title>Handmade ceramic bowl blue | eBay</title>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"Handmade ceramic bowl, cobalt blue",
 "offers":{"@type":"Offer","price":"24.99","priceCurrency":"USD"}}
</script>
</head><body>detail page</body></html>`

const bareLinksHTML = `<!DOCTYPE html>
<html><body>
<a href="https://www.ebay.com/itm/333">some listing</a>
<a href="https://www.ebay.com/itm/444?hash=abc">another</a>
<a href="https://www.example.com/itm/555">offsite</a>
<a href="https://www.ebay.com/help/policies">not an item</a>
</body></html>`

func newEbaySource(f fetcher.Fetcher) *EbaySource {
	cfg := config.DefaultConfig()
	conv := pricing.NewConverter(&cfg.Pricing)
	return NewEbaySource("www.ebay.com", f, conv, cfg, testLogger)
}

func TestEbayFetchListingAndDetails(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"/sch/i.html": listingHTML,
		"/itm/111":    detailHTML,
		"/itm/222":    detailHTML,
	}}
	src := newEbaySource(f)

	res := src.Fetch(context.Background(), "ceramic bowl", fetcher.NewBudget(18))

	if len(res.Offers) != 2 {
		t.Fatalf("expected 2 offers (duplicate link deduped), got %d", len(res.Offers))
	}

	first := res.Offers[0]
	if first.Title != "Handmade ceramic bowl, cobalt blue" {
		t.Errorf("detail title should win over listing title, got %q", first.Title)
	}
	if first.Price == nil || *first.Price != 24.99 {
		t.Errorf("price = %v, want 24.99", first.Price)
	}
	if first.Currency != "USD" {
		t.Errorf("currency = %s, want reference USD", first.Currency)
	}
	if first.Source != "ebay" {
		t.Errorf("source = %s", first.Source)
	}
	if first.Domain != "ebay.com" {
		t.Errorf("domain = %s, want ebay.com", first.Domain)
	}

	if len(res.ListingPrices) == 0 {
		t.Error("expected coarse listing prices from the search page")
	}
	if res.ListingURL == "" || !strings.Contains(res.ListingURL, "_nkw=ceramic+bowl") {
		t.Errorf("listing URL = %q", res.ListingURL)
	}
}

func TestEbayFetchBudgetStopsDetailFollows(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"/sch/i.html": listingHTML,
		"/itm/":       detailHTML,
	}}
	src := newEbaySource(f)

	budget := fetcher.NewBudget(1)
	res := src.Fetch(context.Background(), "ceramic bowl", budget)

	if len(f.calls) != 1 {
		t.Fatalf("expected exactly 1 network call, got %d: %v", len(f.calls), f.calls)
	}
	if len(res.Offers) != 0 {
		t.Errorf("no detail pages fetched, so no offers; got %d", len(res.Offers))
	}
	if len(res.ListingPrices) == 0 {
		t.Error("listing prices should still come from the single search fetch")
	}
}

func TestEbayFetchZeroBudget(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{"/sch/i.html": listingHTML}}
	src := newEbaySource(f)

	res := src.Fetch(context.Background(), "ceramic bowl", fetcher.NewBudget(0))

	if len(f.calls) != 0 {
		t.Fatalf("exhausted budget must not reach the network, got %v", f.calls)
	}
	if len(res.Offers) != 0 || len(res.ListingPrices) != 0 {
		t.Error("expected empty result")
	}
}

func TestEbayFetchFailureDegrades(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{}} // every fetch 404s
	src := newEbaySource(f)

	res := src.Fetch(context.Background(), "ceramic bowl", fetcher.NewBudget(18))
	if res == nil {
		t.Fatal("degraded source must still return a result")
	}
	if len(res.Offers) != 0 {
		t.Errorf("expected zero offers, got %d", len(res.Offers))
	}
}

func TestEbayExtractItemsFallbackTier(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{"/sch/i.html": bareLinksHTML}}
	src := newEbaySource(f)

	resp, _ := f.Fetch(context.Background(), "https://www.ebay.com/sch/i.html?_nkw=x")
	items := src.extractItems(resp)

	if len(items) != 2 {
		t.Fatalf("expected 2 bare item links, got %d: %v", len(items), items)
	}
	for _, it := range items {
		if !strings.Contains(it.url, "www.ebay.com/itm/") {
			t.Errorf("unexpected fallback link %q", it.url)
		}
		if it.title != "" {
			t.Errorf("fallback tier has no titles, got %q", it.title)
		}
	}
}

func TestEbayFetchRespectsMaxDetailPages(t *testing.T) {
	var rows strings.Builder
	rows.WriteString("<html><body>")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&rows, `<a class="s-item__link" href="https://www.ebay.com/itm/%d"><span class="s-item__title">item %d</span></a>`, i, i)
	}
	rows.WriteString("</body></html>")

	f := &stubFetcher{pages: map[string]string{
		"/sch/i.html": rows.String(),
		"/itm/":       detailHTML,
	}}
	src := newEbaySource(f)

	res := src.Fetch(context.Background(), "anything", fetcher.NewBudget(18))

	// 1 listing fetch + at most MaxDetailPages detail fetches.
	if len(f.calls) != 1+src.maxDetail {
		t.Errorf("calls = %d, want %d", len(f.calls), 1+src.maxDetail)
	}
	if len(res.Offers) != src.maxDetail {
		t.Errorf("offers = %d, want %d", len(res.Offers), src.maxDetail)
	}
}

func TestEbayParseItemDetailRawPairFallback(t *testing.T) {
	// JSON-LD block is malformed; the raw currency/amount pair still parses.
	body := `<html><head><title>Wooden spoon | eBay</title>
	<script type="application/ld+json">{not json</script>
	</head><body>
	"priceCurrency":"EUR","price":"12,50"
	</body></html>`

	src := newEbaySource(&stubFetcher{})
	resp := &types.Response{StatusCode: 200, Body: []byte(body)}

	prices, title := src.parseItemDetail(resp)
	if len(prices) != 1 {
		t.Fatalf("expected 1 price, got %v", prices)
	}
	// 12.50 EUR converted at 1.10.
	if prices[0] != 13.75 {
		t.Errorf("price = %v, want 13.75", prices[0])
	}
	if title != "Wooden spoon | eBay" {
		t.Errorf("title fell back wrong: %q", title)
	}
}

func TestEbayParseItemDetailFreeTextFallback(t *testing.T) {
	body := `<html><head><title>Lamp | eBay</title></head>
	<body>Buy it now: $45.00 plus shipping</body></html>`

	src := newEbaySource(&stubFetcher{})
	resp := &types.Response{StatusCode: 200, Body: []byte(body)}

	prices, _ := src.parseItemDetail(resp)
	if len(prices) != 1 || prices[0] != 45 {
		t.Errorf("prices = %v, want [45]", prices)
	}
}
