// Package pricing normalizes raw marketplace price text into
// reference-currency samples and reduces sample pools into robust
// estimates.
package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"priceloupe/internal/config"
)

// priceRE captures amounts following a currency symbol ($ 12.34 / € 9,99 /
// £ 25) or preceding a 3-letter code (12.34 usd / 15 eur). Amounts are
// bounded to 1-4 integer digits and at most 2 decimals; longer digit runs
// are SKU numbers, quantities, or weights, not prices.
var priceRE = regexp.MustCompile(`(?i)[\$£€]\s?(\d{1,4}(?:[.,]\d{1,2})?)\b|\b(\d{1,4}(?:[.,]\d{1,2})?)\s?(?:usd|eur|gbp)\b`)

// nonNumericRE strips everything but digits and separators from a
// displayed price string.
var nonNumericRE = regexp.MustCompile(`[^\d.,]`)

// Converter converts detected amounts into the reference currency and
// enforces the plausibility window.
type Converter struct {
	rates    map[string]float64
	ref      string
	min, max float64
}

// NewConverter builds a Converter from the pricing configuration.
func NewConverter(cfg *config.PricingConfig) *Converter {
	rates := make(map[string]float64, len(cfg.Rates))
	for cur, rate := range cfg.Rates {
		rates[strings.ToUpper(cur)] = rate
	}
	return &Converter{
		rates: rates,
		ref:   strings.ToUpper(cfg.ReferenceCurrency),
		min:   cfg.MinPrice,
		max:   cfg.MaxPrice,
	}
}

// Reference returns the reference currency code.
func (c *Converter) Reference() string { return c.ref }

// Plausible reports whether a reference-currency amount falls inside the
// plausibility window.
func (c *Converter) Plausible(v float64) bool {
	return v >= c.min && v <= c.max
}

// Convert turns an amount in the given currency into the reference
// currency. Unknown currencies convert at par.
func (c *Converter) Convert(amount float64, currency string) float64 {
	rate, ok := c.rates[strings.ToUpper(currency)]
	if !ok {
		rate = 1.0
	}
	return round2(amount * rate)
}

// DetectCurrency scans text for a currency symbol or 3-letter code and
// defaults to the reference currency when none is found.
func (c *Converter) DetectCurrency(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "€") || strings.Contains(t, " eur"):
		return "EUR"
	case strings.Contains(t, "£") || strings.Contains(t, " gbp"):
		return "GBP"
	default:
		return c.ref
	}
}

// ExtractPrices finds every plausible price amount in the text, converts
// it to the reference currency using the currency detected for the text
// as a whole, and discards amounts outside the plausibility window.
func (c *Converter) ExtractPrices(text string) []float64 {
	t := strings.ToLower(text)
	cur := c.DetectCurrency(t)

	var out []float64
	for _, m := range priceRE.FindAllStringSubmatch(t, -1) {
		amt := m[1]
		if amt == "" {
			amt = m[2]
		}
		if amt == "" {
			continue
		}
		val, err := ParseAmount(amt)
		if err != nil {
			continue
		}
		// The window applies to the raw amount before conversion, so a
		// borderline EUR price is not rescued or rejected by the FX rate.
		if val < c.min || val > c.max {
			continue
		}
		out = append(out, c.Convert(val, cur))
	}
	return out
}

// ParseAmount parses a numeric amount with a comma or dot decimal
// separator.
func ParseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

// ParseDisplayed extracts a price from a displayed string such as
// "24,99 €" or "$9.50" by stripping non-numeric characters. Returns
// false when nothing numeric remains.
func ParseDisplayed(s string) (float64, bool) {
	clean := nonNumericRE.ReplaceAllString(s, "")
	if clean == "" {
		return 0, false
	}
	v, err := ParseAmount(clean)
	if err != nil {
		return 0, false
	}
	return v, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
