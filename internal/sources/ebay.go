package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"priceloupe/internal/config"
	"priceloupe/internal/fetcher"
	"priceloupe/internal/pricing"
	"priceloupe/internal/types"
)

// listingItem is one title/link pair extracted from a search-results page.
type listingItem struct {
	title string
	url   string
}

// EbaySource scrapes one regional eBay listing host: a search-results
// page for coarse prices and item links, then up to maxDetail item pages
// for a precise structured price and canonical title.
type EbaySource struct {
	host      string
	fetcher   fetcher.Fetcher
	conv      *pricing.Converter
	maxDetail int
	threshold float64
	logger    *slog.Logger
}

// NewEbaySource creates a scraper adapter for the given regional host
// (e.g. www.ebay.com, www.ebay.fr).
func NewEbaySource(host string, f fetcher.Fetcher, conv *pricing.Converter, cfg *config.Config, logger *slog.Logger) *EbaySource {
	return &EbaySource{
		host:      host,
		fetcher:   f,
		conv:      conv,
		maxDetail: cfg.Engine.MaxDetailPages,
		threshold: cfg.Scoring.ListingThreshold,
		logger:    logger.With("component", "ebay_source", "host", host),
	}
}

func (s *EbaySource) Name() string { return "ebay" }

func (s *EbaySource) Threshold() float64 { return s.threshold }

// Fetch scrapes the search-results page and follows item detail pages,
// budget permitting. Any fetch or parse failure degrades to whatever was
// collected so far.
func (s *EbaySource) Fetch(ctx context.Context, query string, budget *fetcher.Budget) *Result {
	searchURL := fmt.Sprintf("https://%s/sch/i.html?_nkw=%s&_sop=12&LH_BIN=1&_ipg=60",
		s.host, url.QueryEscape(query))

	listing := s.fetchPage(ctx, searchURL, budget)
	if listing == nil {
		return &Result{}
	}

	result := &Result{
		ListingURL:    searchURL,
		ListingPrices: s.parseListingPrices(listing),
	}

	items := s.extractItems(listing)
	for i, item := range items {
		if i >= s.maxDetail {
			break
		}
		detail := s.fetchPage(ctx, item.url, budget)
		if detail == nil {
			continue
		}
		prices, detailTitle := s.parseItemDetail(detail)

		title := strings.TrimSpace(detailTitle)
		if title == "" {
			title = strings.TrimSpace(item.title)
		}
		var price *float64
		if len(prices) > 0 {
			price = types.Float(prices[0])
		}
		result.Offers = append(result.Offers, types.Offer{
			Title:    title,
			URL:      item.url,
			Price:    price,
			Currency: s.conv.Reference(),
			Source:   s.Name(),
			Domain:   types.Domain(item.url),
		})
	}

	s.logger.Debug("ebay scrape complete",
		"query", query,
		"listing_prices", len(result.ListingPrices),
		"offers", len(result.Offers),
	)
	return result
}

// fetchPage performs one budget-counted GET, returning nil on denial or
// any failure.
func (s *EbaySource) fetchPage(ctx context.Context, pageURL string, budget *fetcher.Budget) *types.Response {
	if !budget.TryAcquire() {
		return nil
	}
	resp, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		s.logger.Debug("page fetch failed", "url", pageURL, "error", err)
		return nil
	}
	if !resp.IsSuccess() || len(resp.Body) == 0 {
		return nil
	}
	return resp
}

var (
	// listingPriceHintRE picks up prices embedded in the page's inline JSON.
	listingPriceHintRE = regexp.MustCompile(`"price"\s*:\s*"(\d{1,4}(?:[.,]\d{1,2})?)"`)

	// detailPricePairRE matches the structured currency/amount pair as raw
	// text, for pages whose JSON-LD blocks fail to parse whole.
	detailPricePairRE = regexp.MustCompile(`(?i)"priceCurrency"\s*:\s*"([A-Z]{3})"\s*,\s*"price"\s*:\s*"(\d{1,4}(?:[.,]\d{1,2})?)"`)

	// detailNameRE matches the structured-data product name as raw text.
	detailNameRE = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
)

// parseListingPrices scans the search-results page for coarse prices: the
// generic free-text scan, the price cells of result rows, and inline JSON
// price hints.
func (s *EbaySource) parseListingPrices(resp *types.Response) []float64 {
	text := resp.Text()
	cur := s.conv.DetectCurrency(text)
	prices := s.conv.ExtractPrices(text)

	if doc, err := resp.Document(); err == nil {
		doc.Find(".s-item__price").Each(func(_ int, sel *goquery.Selection) {
			prices = append(prices, s.conv.ExtractPrices(sel.Text())...)
		})
	}
	for _, m := range listingPriceHintRE.FindAllStringSubmatch(text, -1) {
		val, err := pricing.ParseAmount(m[1])
		if err != nil || !s.conv.Plausible(val) {
			continue
		}
		prices = append(prices, s.conv.Convert(val, cur))
	}
	return prices
}

// extractItems pulls title/link pairs from the search-results page using
// a two-tier strategy: the structural result-row markup first, then bare
// item-URL anchors when the markup pattern matched nothing. A markup
// change degrades to the fallback rather than to zero results.
func (s *EbaySource) extractItems(resp *types.Response) []listingItem {
	var items []listingItem

	if doc, err := resp.Document(); err == nil {
		doc.Find("a.s-item__link").Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok || href == "" {
				return
			}
			title := strings.TrimSpace(sel.Find(".s-item__title").Text())
			items = append(items, listingItem{title: title, url: href})
		})
	}

	if len(items) == 0 {
		items = s.extractBareItemLinks(resp)
	}

	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if seen[it.url] {
			continue
		}
		seen[it.url] = true
		out = append(out, it)
	}
	return out
}

// extractBareItemLinks is the fallback tier: every anchor pointing at an
// item page, title unknown.
func (s *EbaySource) extractBareItemLinks(resp *types.Response) []listingItem {
	doc, err := htmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil
	}

	var items []listingItem
	for _, node := range htmlquery.Find(doc, "//a[@href]") {
		href := anchorHref(node)
		if href == "" || !strings.Contains(href, "/itm/") {
			continue
		}
		if u, err := url.Parse(href); err != nil || !strings.HasPrefix(u.Hostname(), "www.ebay.") {
			continue
		}
		items = append(items, listingItem{url: href})
	}
	return items
}

func anchorHref(node *html.Node) string {
	return strings.TrimSpace(htmlquery.SelectAttr(node, "href"))
}

// parseItemDetail extracts prices and a canonical title from an item
// detail page. Prices prefer the embedded structured-data
// currency/amount pair (JSON-LD, then the inline JSON pair pattern) and
// fall back to the generic free-text scan. The title prefers the
// structured-data name and falls back to the page <title>.
func (s *EbaySource) parseItemDetail(resp *types.Response) ([]float64, string) {
	prices, title := s.parseStructuredData(resp)

	if len(prices) == 0 {
		for _, m := range detailPricePairRE.FindAllStringSubmatch(resp.Text(), -1) {
			val, err := pricing.ParseAmount(m[2])
			if err != nil || !s.conv.Plausible(val) {
				continue
			}
			prices = append(prices, s.conv.Convert(val, m[1]))
		}
	}
	if len(prices) == 0 {
		prices = s.conv.ExtractPrices(resp.Text())
	}

	if title == "" {
		if m := detailNameRE.FindStringSubmatch(resp.Text()); m != nil {
			title = m[1]
		}
	}
	if title == "" {
		title = s.pageTitle(resp)
	}
	return prices, strings.TrimSpace(title)
}

// parseStructuredData walks the page's JSON-LD blocks for an offer
// price/currency pair and a product name.
func (s *EbaySource) parseStructuredData(resp *types.Response) ([]float64, string) {
	doc, err := resp.Document()
	if err != nil {
		return nil, ""
	}

	var prices []float64
	var name string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return
		}
		if n, ok := data["name"].(string); ok && name == "" {
			name = n
		}
		if amount, currency, ok := structuredOfferPrice(data); ok && s.conv.Plausible(amount) {
			prices = append(prices, s.conv.Convert(amount, currency))
		}
	})
	return prices, name
}

// structuredOfferPrice digs a price/priceCurrency pair out of a JSON-LD
// object, looking at the object itself and its "offers" member.
func structuredOfferPrice(data map[string]any) (float64, string, bool) {
	candidates := []map[string]any{data}
	switch offers := data["offers"].(type) {
	case map[string]any:
		candidates = append(candidates, offers)
	case []any:
		for _, o := range offers {
			if m, ok := o.(map[string]any); ok {
				candidates = append(candidates, m)
			}
		}
	}

	for _, m := range candidates {
		currency, _ := m["priceCurrency"].(string)
		if currency == "" {
			continue
		}
		switch price := m["price"].(type) {
		case string:
			if v, err := pricing.ParseAmount(price); err == nil {
				return v, currency, true
			}
		case float64:
			return price, currency, true
		}
	}
	return 0, "", false
}

// pageTitle extracts the <title> text.
func (s *EbaySource) pageTitle(resp *types.Response) string {
	doc, err := htmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return ""
	}
	node := htmlquery.FindOne(doc, "//title")
	if node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(node))
}
