// I2CTRACE - Recovers I2C bus transactions from analog captures.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package digital reconstructs logic levels and transitions from analog
// captures using a pair of hysteresis thresholds.
package digital

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/bemasher/i2ctrace/waveform"
)

// ErrConfig is returned for invalid thresholds or mismatched line pairs.
var ErrConfig = errors.New("invalid configuration")

// Waveform is the digital view of a single analog line. A sample must reach
// ThresholdHi to read high and fall below ThresholdLo to read low, voltages
// in between never change the recognized level on their own.
type Waveform struct {
	Name   string
	Analog *waveform.Analog

	ThresholdLo float64
	ThresholdHi float64

	edges []Edge
}

// New reconstructs all transitions of a in a single pass.
func New(name string, a *waveform.Analog, thresholdLo, thresholdHi float64) (*Waveform, error) {
	if a == nil {
		return nil, errors.Wrapf(ErrConfig, "%s: no analog data", name)
	}
	if !(thresholdLo < thresholdHi) {
		return nil, errors.Wrapf(ErrConfig, "%s: threshold_lo (%g) must be below threshold_hi (%g)", name, thresholdLo, thresholdHi)
	}

	w := &Waveform{
		Name:        name,
		Analog:      a,
		ThresholdLo: thresholdLo,
		ThresholdHi: thresholdHi,
	}
	w.compute()

	return w, nil
}

// compute walks the samples once. Entering the band from a low level marks a
// rising candidate, reaching ThresholdHi from a low level emits the edge.
// Falling edges mirror this. Samples that wander inside the band and return
// never complete a crossing and emit nothing.
func (w *Waveform) compute() {
	prev := Unknown
	marker := -1

	n := w.Analog.Len()
	for i := 0; i < n; i++ {
		state := w.next(w.Analog.Sample(i), prev)

		if state == Unknown || prev == Unknown || state == prev {
			prev = state
			continue
		}

		switch state {
		case LowRising, HighFalling:
			marker = i
		case HighRising:
			// Without a pending candidate the signal jumped across the band
			// between two samples.
			start := i
			if prev == LowRising {
				start = marker
			}
			w.emit(Rising, w.crossing(w.ThresholdLo, start), w.crossing(w.ThresholdHi, i))
		case LowFalling:
			start := i
			if prev == HighFalling {
				start = marker
			}
			w.emit(Falling, w.crossing(w.ThresholdHi, start), w.crossing(w.ThresholdLo, i))
		}

		prev = state
	}
}

// crossing interpolates the fractional index at which the signal passes level
// between samples idx-1 and idx.
func (w *Waveform) crossing(level float64, idx int) float64 {
	if idx == 0 {
		return 0
	}

	v1, v2 := w.Analog.Sample(idx-1), w.Analog.Sample(idx)
	return float64(idx-1) + (level-v1)/(v2-v1)
}

func (w *Waveform) emit(p Polarity, start, end float64) {
	idx := len(w.edges)
	e := Edge{
		Polarity: p,
		Start:    start,
		End:      end,
		w:        w,
		idx:      idx,
		prev:     idx - 1,
		next:     -1,
	}

	if idx > 0 {
		w.edges[idx-1].next = idx
	}
	w.edges = append(w.edges, e)
}

// Len is the number of transitions on the line.
func (w *Waveform) Len() int {
	return len(w.edges)
}

// Edge returns the idx'th transition.
func (w *Waveform) Edge(idx int) *Edge {
	return &w.edges[idx]
}

// First returns the earliest transition or nil.
func (w *Waveform) First() *Edge {
	if len(w.edges) == 0 {
		return nil
	}
	return &w.edges[0]
}

func (w *Waveform) TimeAt(index float64) float64 {
	return w.Analog.TimeAt(index)
}

// LevelAt returns the logic level at index. ok is false while the voltage
// lies inside the hysteresis band.
func (w *Waveform) LevelAt(index float64, interpolate bool) (high, ok bool) {
	v := w.Analog.ValueAt(index, interpolate)
	switch {
	case v >= w.ThresholdHi:
		return true, true
	case v < w.ThresholdLo:
		return false, true
	}
	return false, false
}

// firstAfter returns the position of the first edge with End > index.
func (w *Waveform) firstAfter(index float64) int {
	return sort.Search(len(w.edges), func(i int) bool {
		return w.edges[i].End > index
	})
}

// Next returns the earliest transition of polarity p ending after index.
func (w *Waveform) Next(index float64, p Polarity) *Edge {
	return w.NextBefore(index, p, math.Inf(1))
}

// NextBefore returns the earliest transition of polarity p whose end lies
// strictly between index and end, or nil. Ends increase along the chain so the
// walk stops at the first edge past end.
func (w *Waveform) NextBefore(index float64, p Polarity, end float64) *Edge {
	idx := w.firstAfter(index)
	if idx == len(w.edges) {
		return nil
	}

	for e := &w.edges[idx]; e != nil; e = e.Next() {
		if e.End >= end {
			return nil
		}
		if p.matches(e.Polarity) {
			return e
		}
	}

	return nil
}

func (w *Waveform) String() string {
	return fmt.Sprintf("{Name:%s Lo:%gV Hi:%gV Transitions:%d}", w.Name, w.ThresholdLo, w.ThresholdHi, len(w.edges))
}
