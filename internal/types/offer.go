package types

import (
	"net/url"
	"strings"
)

// Offer is a candidate marketplace listing collected by a source adapter.
// Relevance is populated by the scorer after creation; the offer is
// immutable afterwards.
type Offer struct {
	// Title is the listing title, as close to canonical as the source allows.
	Title string `json:"title" bson:"title"`

	// URL is the listing page URL.
	URL string `json:"url" bson:"url"`

	// Price is the offer price expressed in Currency, nil when the
	// source exposed no usable price for this listing.
	Price *float64 `json:"price" bson:"price"`

	// Currency is the currency Price is expressed in.
	Currency string `json:"currency" bson:"currency"`

	// Source tags which adapter produced the offer (ebay, amazon, gshopping).
	Source string `json:"source" bson:"source"`

	// Domain is the listing hostname without the www prefix.
	Domain string `json:"domain" bson:"domain"`

	// Relevance is the cosine similarity between the query and Title.
	Relevance float64 `json:"sim" bson:"sim"`
}

// Stats are the descriptive statistics of the pooled, plausibility-filtered
// price samples. All pointers are nil together when Count is zero.
type Stats struct {
	Median *float64 `json:"median" bson:"median"`
	Q1     *float64 `json:"q1" bson:"q1"`
	Q3     *float64 `json:"q3" bson:"q3"`
	Low    *float64 `json:"low" bson:"low"`
	High   *float64 `json:"high" bson:"high"`
	Min    *float64 `json:"min" bson:"min"`
	Max    *float64 `json:"max" bson:"max"`
	Count  int      `json:"count" bson:"count"`
}

// Sample is a short traceability snippet: a page that contributed samples
// and the first few prices seen on it.
type Sample struct {
	Link             string    `json:"link" bson:"link"`
	SnippetPricesUSD []float64 `json:"snippet_price_usd" bson:"snippet_price_usd"`
}

// EstimationResult is the full outcome of one estimation request.
// Message is non-nil only in degraded or empty outcomes; all numeric
// fields are nil together when no usable data exists.
type EstimationResult struct {
	EstimatedPrice *float64 `json:"estimated_price" bson:"estimated_price"`
	SuggestedLow   *float64 `json:"suggested_low" bson:"suggested_low"`
	SuggestedHigh  *float64 `json:"suggested_high" bson:"suggested_high"`
	Stats          Stats    `json:"stats" bson:"stats"`
	Offers         []Offer  `json:"offers" bson:"offers"`
	Samples        []Sample `json:"samples" bson:"samples"`
	Message        *string  `json:"message" bson:"message"`
}

// EmptyResult builds an all-null result carrying an explanatory message.
func EmptyResult(message string) *EstimationResult {
	return &EstimationResult{
		Offers:  []Offer{},
		Samples: []Sample{},
		Message: &message,
	}
}

// Float returns a pointer to v. Result fields are pointer-typed so that
// "no data" serializes as JSON null rather than zero.
func Float(v float64) *float64 { return &v }

// Domain extracts the hostname of a URL without the leading www prefix.
// Unparseable URLs yield an empty string.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
