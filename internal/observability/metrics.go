package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for the estimation engine.
type Metrics struct {
	// Estimation outcomes
	EstimatesTotal    atomic.Int64
	EstimatesEmpty    atomic.Int64
	EstimatesRejected atomic.Int64

	// Pipeline volume
	FetchesUsed    atomic.Int64
	OffersSeen     atomic.Int64
	OffersAccepted atomic.Int64
	SamplesPooled  atomic.Int64

	// History backend
	ResultsStored atomic.Int64
	StoreErrors   atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"priceloupe_estimates_total", "Total estimation requests processed", m.EstimatesTotal.Load()},
		{"priceloupe_estimates_empty_total", "Estimations that produced no usable data", m.EstimatesEmpty.Load()},
		{"priceloupe_estimates_rejected_total", "Names rejected as too generic", m.EstimatesRejected.Load()},
		{"priceloupe_fetches_used_total", "Budgeted network calls issued", m.FetchesUsed.Load()},
		{"priceloupe_offers_seen_total", "Candidate offers returned by adapters", m.OffersSeen.Load()},
		{"priceloupe_offers_accepted_total", "Offers passing relevance thresholds", m.OffersAccepted.Load()},
		{"priceloupe_samples_pooled_total", "Price samples pooled for aggregation", m.SamplesPooled.Load()},
		{"priceloupe_results_stored_total", "Estimation results written to history", m.ResultsStored.Load()},
		{"priceloupe_store_errors_total", "History write failures", m.StoreErrors.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Snapshot returns the counters as a map for the status endpoint.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"estimates_total":    m.EstimatesTotal.Load(),
		"estimates_empty":    m.EstimatesEmpty.Load(),
		"estimates_rejected": m.EstimatesRejected.Load(),
		"fetches_used":       m.FetchesUsed.Load(),
		"offers_seen":        m.OffersSeen.Load(),
		"offers_accepted":    m.OffersAccepted.Load(),
		"samples_pooled":     m.SamplesPooled.Load(),
		"results_stored":     m.ResultsStored.Load(),
		"store_errors":       m.StoreErrors.Load(),
	}
}
