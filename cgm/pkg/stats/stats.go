// Package stats computes the clinical glucose aggregates: summary
// statistics, time-in-range bucketing, GMI, and variability.
package stats

import (
	"math"
	"strings"

	"github.com/amu255/nightscout-cgm-skill/cgm/defs"

	"github.com/montanaflynn/stats"
)

const (
	// CVStableLimit is the coefficient-of-variation percentage at and
	// above which glucose is considered highly variable.
	CVStableLimit = 36.0

	mgdlPerMmol = 18.0
)

// Convert maps a stored mg/dL magnitude to the display unit. In mmol/L
// mode the result is rounded to one decimal place.
func Convert(mgdl float64, useMmol bool) float64 {
	if !useMmol {
		return mgdl
	}
	return math.Round(mgdl/mgdlPerMmol*10) / 10
}

func UnitLabel(useMmol bool) string {
	if useMmol {
		return "mmol/L"
	}
	return "mg/dL"
}

// UseMmol reports whether a remote units string selects mmol/L display.
func UseMmol(units string) bool {
	return strings.Contains(strings.ToLower(units), "mmol")
}

// Glucose summarizes a value set in the display unit. Returns nil when
// there is nothing to summarize.
func Glucose(values []int, useMmol bool) *defs.Summary {
	if len(values) == 0 {
		return nil
	}

	fs := make([]float64, len(values))
	for i, v := range values {
		fs[i] = float64(v)
	}

	mean, _ := stats.Mean(fs)
	median, _ := stats.Median(fs)
	min, _ := stats.Min(fs)
	max, _ := stats.Max(fs)
	std, _ := stats.StdDevP(fs)

	return &defs.Summary{
		Count:  len(values),
		Mean:   Convert(mean, useMmol),
		Median: Convert(median, useMmol),
		Min:    Convert(min, useMmol),
		Max:    Convert(max, useMmol),
		Std:    Convert(std, useMmol),
		Unit:   UnitLabel(useMmol),
	}
}

// Classify places a mg/dL value in its band. The target and high bands
// are closed on their upper ends; a value right on the urgent high
// boundary is still high, not very high.
func Classify(value int, th defs.Thresholds) defs.Band {
	switch {
	case value < th.UrgentLow:
		return defs.BandVeryLow
	case value < th.TargetLow:
		return defs.BandLow
	case value <= th.TargetHigh:
		return defs.BandInRange
	case value <= th.UrgentHigh:
		return defs.BandHigh
	default:
		return defs.BandVeryHigh
	}
}

// TimeInRange reports each band's share of the value set in percent.
// Returns nil when there is nothing to classify.
func TimeInRange(values []int, th defs.Thresholds) *defs.RangeBreakdown {
	if len(values) == 0 {
		return nil
	}

	counts := make(map[defs.Band]int, 5)
	for _, v := range values {
		counts[Classify(v, th)]++
	}

	total := float64(len(values))
	pct := func(b defs.Band) float64 {
		return 100 * float64(counts[b]) / total
	}

	return &defs.RangeBreakdown{
		VeryLowPct:  pct(defs.BandVeryLow),
		LowPct:      pct(defs.BandLow),
		InRangePct:  pct(defs.BandInRange),
		HighPct:     pct(defs.BandHigh),
		VeryHighPct: pct(defs.BandVeryHigh),
	}
}

// EstimateA1C is the glucose management indicator over a mg/dL mean.
// The formula is unbounded and intentionally not clamped.
func EstimateA1C(meanMgdl float64) float64 {
	return 3.31 + 0.02392*meanMgdl
}

// CoefficientOfVariation is 100*std/mean over the mg/dL values,
// 0 for empty input or a zero mean.
func CoefficientOfVariation(values []int) float64 {
	if len(values) == 0 {
		return 0
	}

	fs := make([]float64, len(values))
	for i, v := range values {
		fs[i] = float64(v)
	}

	mean, _ := stats.Mean(fs)
	if mean == 0 {
		return 0
	}
	std, _ := stats.StdDevP(fs)
	return 100 * std / mean
}

func CVStatus(cv float64) string {
	if cv < CVStableLimit {
		return "stable"
	}
	return "high variability"
}
