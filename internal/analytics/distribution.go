package analytics

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Percentile returns the p-th percentile (0-100) of sorted, interpolating
// linearly between the two nearest order statistics. p is clamped to
// [0, 100]. It returns NaN for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	p = math.Max(0, math.Min(100, p))

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// Histogram buckets sorted into bins equal-width bins spanning its range.
// A range of zero width is widened to one unit centred on the value.
func Histogram(sorted []float64, bins int) []Bin {
	if len(sorted) == 0 || bins < 1 {
		return nil
	}
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	edges := floats.Span(make([]float64, bins+1), lo, hi)
	dividers := slices.Clone(edges)
	// Close the last bin so the maximum is counted.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := make([]float64, bins)
	stat.Histogram(counts, dividers, sorted, nil)

	out := make([]Bin, bins)
	for i := range out {
		out[i] = Bin{Lower: edges[i], Upper: edges[i+1], Count: int(counts[i])}
	}
	return out
}

// Cumulative pairs every sorted duration with the fraction of runs that
// finished at or before it.
func Cumulative(sorted []float64) []CumulativePoint {
	out := make([]CumulativePoint, len(sorted))
	n := float64(len(sorted))
	for i, d := range sorted {
		out[i] = CumulativePoint{Duration: d, Probability: float64(i+1) / n}
	}
	return out
}

// fractionAbove returns the share of xs strictly greater than limit.
func fractionAbove(xs []float64, limit float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	n := 0
	for _, x := range xs {
		if x > limit {
			n++
		}
	}
	return float64(n) / float64(len(xs))
}

// popStats returns the mean and population standard deviation of xs.
func popStats(xs []float64) (mean, std float64) {
	mean, variance := popMeanVariance(xs)
	return mean, math.Sqrt(variance)
}

// popMeanVariance is stat.PopMeanVariance with an exact zero for constant
// input.
func popMeanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	if constant(xs) {
		return xs[0], 0
	}
	return stat.PopMeanVariance(xs, nil)
}

// constant reports whether every value in xs is identical.
func constant(xs []float64) bool {
	return len(xs) == 0 || floats.Min(xs) == floats.Max(xs)
}
