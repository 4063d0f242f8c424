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

// Package waveform holds uniformly sampled analog voltage captures.
package waveform

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrFormat is returned when a capture or its timing metadata is malformed.
	ErrFormat = errors.New("malformed capture")
	// ErrEmptyData is returned for captures without any samples.
	ErrEmptyData = errors.New("capture contains no samples")
	// ErrRange is returned when a requested start index lies after the end index.
	ErrRange = errors.New("start index after end index")
)

// Analog is an immutable sequence of voltage samples spaced TimeInterval
// seconds apart, the first taken at TimeOffset. Indexes are real valued, only
// integer indexes address stored samples.
type Analog struct {
	samples []float64

	TimeOffset   float64
	TimeInterval float64
}

// New copies samples into a new Analog.
func New(samples []float64, timeOffset, timeInterval float64) (*Analog, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyData
	}
	if !(timeInterval > 0) || math.IsInf(timeInterval, 0) {
		return nil, errors.Wrapf(ErrFormat, "invalid time interval %g", timeInterval)
	}

	a := &Analog{
		samples:      make([]float64, len(samples)),
		TimeOffset:   timeOffset,
		TimeInterval: timeInterval,
	}
	copy(a.samples, samples)

	return a, nil
}

func (a *Analog) Len() int {
	return len(a.samples)
}

// Sample returns the stored sample at idx.
func (a *Analog) Sample(idx int) float64 {
	return a.samples[idx]
}

// ValueAt returns the voltage at a fractional index. Indexes outside the
// capture clamp to the first or last sample. With interpolate set the value
// lies on the line between the two samples straddling index, otherwise the
// sample at ceil(index) is returned.
func (a *Analog) ValueAt(index float64, interpolate bool) float64 {
	i2 := math.Ceil(index)
	if i2 >= float64(len(a.samples)) {
		return a.samples[len(a.samples)-1]
	}
	if i2 <= 0 {
		return a.samples[0]
	}

	idx := int(i2)
	if !interpolate {
		return a.samples[idx]
	}

	v1, v2 := a.samples[idx-1], a.samples[idx]
	return v1 + (v2-v1)*(index-i2+1)
}

func (a *Analog) TimeAt(index float64) float64 {
	return a.TimeOffset + a.TimeInterval*index
}

// IndexAt converts a time to a fractional index. With clamp set the result is
// limited to [0, Len()-1].
func (a *Analog) IndexAt(t float64, clamp bool) float64 {
	index := (t - a.TimeOffset) / a.TimeInterval
	if !clamp {
		return index
	}

	return math.Max(0, math.Min(index, float64(len(a.samples)-1)))
}

// Range returns the samples from floor(start) through ceil(end) inclusive,
// clipped to the capture. Pass math.Inf(-1) or math.Inf(1) for an open bound.
// The returned slice aliases the capture and must not be modified.
func (a *Analog) Range(start, end float64) ([]float64, error) {
	last := float64(len(a.samples) - 1)

	lo := math.Max(0, math.Floor(start))
	hi := math.Min(last, math.Ceil(end))
	if lo > hi {
		return nil, errors.Wrapf(ErrRange, "range [%g, %g]", start, end)
	}

	return a.samples[int(lo) : int(hi)+1], nil
}

// RangeTime is Range with bounds given in seconds.
func (a *Analog) RangeTime(start, end float64) ([]float64, error) {
	return a.Range(
		math.Floor((start-a.TimeOffset)/a.TimeInterval),
		math.Ceil((end-a.TimeOffset)/a.TimeInterval),
	)
}

// SampleRate is the reciprocal of the sample interval in Hz.
func (a *Analog) SampleRate() float64 {
	return 1 / a.TimeInterval
}

func (a *Analog) String() string {
	return fmt.Sprintf("{Samples:%d Offset:%gs Interval:%gs}", len(a.samples), a.TimeOffset, a.TimeInterval)
}
