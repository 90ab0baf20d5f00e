package telemetry

import (
	"log/slog"
	"math"
	"sort"
)

// ForceStats summarizes the distribution of per-particle force magnitudes
// after a force pass.
type ForceStats struct {
	Mean float64 `csv:"force_mean"`
	Std  float64 `csv:"force_std"`
	P10  float64 `csv:"force_p10"`
	P50  float64 `csv:"force_p50"`
	P90  float64 `csv:"force_p90"`
	Max  float64 `csv:"force_max"`
}

// Percentile returns the p-th percentile of a sorted slice using linear
// interpolation. p is clamped to [0, 1]; an empty slice yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeForceStats summarizes magnitudes. The input is not modified.
func ComputeForceStats(magnitudes []float64) ForceStats {
	n := len(magnitudes)
	if n == 0 {
		return ForceStats{}
	}

	var sum float64
	for _, v := range magnitudes {
		sum += v
	}
	mean := sum / float64(n)

	var sqDiffSum float64
	for _, v := range magnitudes {
		d := v - mean
		sqDiffSum += d * d
	}

	sorted := make([]float64, n)
	copy(sorted, magnitudes)
	sort.Float64s(sorted)

	return ForceStats{
		Mean: mean,
		Std:  math.Sqrt(sqDiffSum / float64(n)),
		P10:  Percentile(sorted, 0.10),
		P50:  Percentile(sorted, 0.50),
		P90:  Percentile(sorted, 0.90),
		Max:  sorted[n-1],
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s ForceStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("mean", s.Mean),
		slog.Float64("std", s.Std),
		slog.Float64("p10", s.P10),
		slog.Float64("p50", s.P50),
		slog.Float64("p90", s.P90),
		slog.Float64("max", s.Max),
	)
}
