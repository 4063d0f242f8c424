// Package stats reduces decoded bus activity to timing and voltage figures
// for reporting.
package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a set of measurements. The mode is taken over values
// rounded to whole units, measurements being continuous.
type Summary struct {
	Len    int     `json:"len"`
	Min    float64 `json:"min"`
	Avg    float64 `json:"avg"`
	Mode   float64 `json:"mode"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Summarize returns a zero Summary for empty data.
func Summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	rounded := make([]float64, len(sorted))
	for idx, v := range sorted {
		rounded[idx] = math.Round(v)
	}
	mode, _ := stat.Mode(rounded, nil)

	return Summary{
		Len:    len(data),
		Min:    floats.Min(sorted),
		Avg:    stat.Mean(sorted, nil),
		Mode:   mode,
		Median: median(sorted),
		Max:    floats.Max(sorted),
	}
}

// median of sorted data, averaging the middle pair for even lengths.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func (s Summary) String() string {
	return fmt.Sprintf("min=%.0f avg=%.0f mode=%.0f median=%.0f max=%.0f", s.Min, s.Avg, s.Mode, s.Median, s.Max)
}
