package pricing

import (
	"sort"

	"priceloupe/internal/types"
)

// fenceK is the IQR multiplier for the outlier fences.
const fenceK = 1.5

// bandSpread is the naive ± spread around the point estimate before the
// band is tightened to the empirical quartiles.
const bandSpread = 0.15

// Aggregate reduces a pool of reference-currency samples to descriptive
// statistics, a point estimate, and a suggested low/high band.
//
// The point estimate is the median of the "core" set: samples inside the
// IQR fences [q1-1.5·IQR, q3+1.5·IQR], falling back to the full filtered
// set when the fences exclude everything. The suggested band starts at
// estimate×[0.85, 1.15], is clamped to [q1, q3], and the endpoints are
// swapped if clamping inverted them.
func (c *Converter) Aggregate(samples []float64) (types.Stats, *float64, *float64, *float64) {
	prices := make([]float64, 0, len(samples))
	for _, p := range samples {
		if c.Plausible(p) {
			prices = append(prices, p)
		}
	}

	stats := types.Stats{Count: len(prices)}
	if len(prices) == 0 {
		return stats, nil, nil, nil
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	med := Quantile(sorted, 0.5)
	q1 := Quantile(sorted, 0.25)
	q3 := Quantile(sorted, 0.75)
	iqr := q3 - q1
	low := q1 - fenceK*iqr
	high := q3 + fenceK*iqr

	stats.Median = types.Float(med)
	stats.Q1 = types.Float(q1)
	stats.Q3 = types.Float(q3)
	stats.Low = types.Float(low)
	stats.High = types.Float(high)
	stats.Min = types.Float(sorted[0])
	stats.Max = types.Float(sorted[len(sorted)-1])

	core := make([]float64, 0, len(sorted))
	for _, p := range sorted {
		if p >= low && p <= high {
			core = append(core, p)
		}
	}
	if len(core) == 0 {
		core = sorted
	}

	estimate := round2(Quantile(core, 0.5))

	bandLow := estimate * (1 - bandSpread)
	bandHigh := estimate * (1 + bandSpread)
	if q1 > bandLow {
		bandLow = q1
	}
	if q3 < bandHigh {
		bandHigh = q3
	}
	if bandLow > bandHigh {
		bandLow, bandHigh = bandHigh, bandLow
	}

	return stats, types.Float(estimate), types.Float(round2(bandLow)), types.Float(round2(bandHigh))
}

// Quantile computes the q-th quantile of sorted samples by linear
// interpolation between order statistics: for position p = (n-1)·q, the
// value interpolates between the floor and ceiling ranked samples.
// The slice must be sorted and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	pos := float64(len(sorted)-1) * q
	base := int(pos)
	rest := pos - float64(base)
	if base+1 < len(sorted) {
		return sorted[base] + rest*(sorted[base+1]-sorted[base])
	}
	return sorted[base]
}
