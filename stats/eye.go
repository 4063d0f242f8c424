package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bemasher/i2ctrace/digital"
	"github.com/bemasher/i2ctrace/i2c"
)

const microsecond = 1e6

// Point is a sample placed relative to a reference instant, T in
// microseconds and V in volts.
type Point struct {
	T, V float64
}

// Window is an overlay of sample runs aligned on their reference instants.
type Window struct {
	Traces int
	Points []Point
}

func (w *Window) Voltages() []float64 {
	v := make([]float64, len(w.Points))
	for idx, p := range w.Points {
		v[idx] = p.V
	}
	return v
}

// extend appends the samples of a from floor(start) through ceil(end) with
// times relative to ref in seconds.
func (w *Window) extend(a *digital.Waveform, start, end, ref float64) {
	lo := math.Max(0, math.Floor(start))
	samples, err := a.Analog.Range(lo, math.Ceil(end))
	if err != nil {
		return
	}

	for idx, v := range samples {
		t := a.TimeAt(lo+float64(idx)) - ref
		w.Points = append(w.Points, Point{T: t * microsecond, V: v})
	}
	w.Traces++
}

// EyeWindow overlays SDA around each bit's sampling instant. The window
// spans the SCL high phase that follows on either side.
func EyeWindow(bits []i2c.Bit, sda *digital.Waveform) *Window {
	w := &Window{}

	for _, b := range bits {
		fall := b.Clock.Next()
		if fall == nil {
			continue
		}

		i := b.Index()
		di := fall.End - i
		w.extend(sda, i-di, i+di, sda.TimeAt(i))
	}

	return w
}

// Crosstalk overlays the victim line around each aggressor transition of
// polarity p. Runs are centred on the middle of the transition and span five
// median transition times either side.
func Crosstalk(aggressor, victim *digital.Waveform, p digital.Polarity) *Window {
	var edges []*digital.Edge
	var times []float64
	for e := aggressor.First(); e != nil; e = e.Next() {
		if e.Polarity == p {
			edges = append(edges, e)
			times = append(times, e.TransitionTime())
		}
	}

	w := &Window{}
	if len(edges) == 0 {
		return w
	}

	sort.Float64s(times)
	span := 5 * median(times)

	for _, e := range edges {
		ref := (e.StartTime() + e.EndTime()) / 2
		w.extend(victim,
			victim.Analog.IndexAt(ref-span, false),
			victim.Analog.IndexAt(ref+span, false),
			ref,
		)
	}

	return w
}

// Level is a cluster of samples around one logic level.
type Level struct {
	Value  float64 `json:"value"`
	StdDev float64 `json:"stddev"`
	Count  int     `json:"count"`
}

// EyeInfo characterises the voltages seen in a window against the nominal bus
// voltage.
type EyeInfo struct {
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	Low      *Level   `json:"low"`
	High     *Level   `json:"high"`
	Warnings []string `json:"warnings"`
}

// Levels splits the voltages at the midpoint of their range and takes each
// half's median as its level. The level's value and spread come from the
// samples within 5% of the bus voltage of that median.
func Levels(v []float64, vbus float64) EyeInfo {
	info := EyeInfo{Warnings: []string{}}
	if len(v) == 0 {
		return info
	}

	info.Min, info.Max = floats.Min(v), floats.Max(v)
	mid := (info.Min + info.Max) / 2

	var lo, hi []float64
	for _, x := range v {
		if x < mid {
			lo = append(lo, x)
		} else {
			hi = append(hi, x)
		}
	}

	info.Low = level(lo, 0.05*vbus)
	info.High = level(hi, 0.05*vbus)

	if info.Min < -0.5 {
		info.warn("voltage on bus is < -0.5 V")
	}
	if info.Max > vbus+0.5 {
		info.warn("voltage on bus is > v_bus + 0.5 V")
	} else if info.Max > 5.5 {
		info.warn("voltage on bus is > 5.5 V")
	}

	if info.Low != nil {
		if vbus > 2 && info.Low.Value > 0.4 {
			info.warn("low level voltage is > 0.4 V for v_bus > 2 V")
		} else if vbus <= 2 && info.Low.Value > 0.2*vbus {
			info.warn("low level voltage is > 0.2 V * v_bus for v_bus <= 2 V")
		}
	}

	return info
}

func (info *EyeInfo) warn(format string, args ...interface{}) {
	info.Warnings = append(info.Warnings, fmt.Sprintf(format, args...))
}

func level(v []float64, band float64) *Level {
	if len(v) == 0 {
		return nil
	}

	sorted := make([]float64, len(v))
	copy(sorted, v)
	sort.Float64s(sorted)
	center := median(sorted)

	var near []float64
	for _, x := range sorted {
		if math.Abs(x-center) < band {
			near = append(near, x)
		}
	}
	if len(near) == 0 {
		near = []float64{center}
	}

	mean, std := stat.PopMeanStdDev(near, nil)
	if math.IsNaN(std) {
		std = 0
	}

	return &Level{Value: mean, StdDev: std, Count: len(near)}
}
