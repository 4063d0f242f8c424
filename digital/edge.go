package digital

import "fmt"

// Polarity selects the direction of a transition. Either only appears in
// queries, every Edge is Rising or Falling.
type Polarity uint8

const (
	Either Polarity = iota
	Rising
	Falling
)

func (p Polarity) String() string {
	switch p {
	case Rising:
		return "Rising"
	case Falling:
		return "Falling"
	}
	return "Either"
}

func (p Polarity) matches(q Polarity) bool {
	return p == Either || p == q
}

// Edge is a single transition on one line. Start is the interpolated index at
// which the signal left its previous level band and End the index at which it
// entered the new one, so End > Start always holds.
type Edge struct {
	Polarity Polarity
	Start    float64
	End      float64

	w    *Waveform
	idx  int
	prev int
	next int
}

// Line returns the waveform the edge belongs to.
func (e *Edge) Line() *Waveform {
	return e.w
}

// Index is the position of the edge within its line.
func (e *Edge) Index() int {
	return e.idx
}

func (e *Edge) Rising() bool {
	return e.Polarity == Rising
}

// Prev returns the preceding transition on the same line or nil.
func (e *Edge) Prev() *Edge {
	if e.prev < 0 {
		return nil
	}
	return &e.w.edges[e.prev]
}

// Next returns the following transition on the same line or nil.
func (e *Edge) Next() *Edge {
	if e.next < 0 {
		return nil
	}
	return &e.w.edges[e.next]
}

func (e *Edge) StartTime() float64 {
	return e.w.Analog.TimeAt(e.Start)
}

func (e *Edge) EndTime() float64 {
	return e.w.Analog.TimeAt(e.End)
}

// TransitionTime is the duration between both threshold crossings in seconds.
func (e *Edge) TransitionTime() float64 {
	return e.EndTime() - e.StartTime()
}

// V1 is the voltage at the start of the transition.
func (e *Edge) V1() float64 {
	return e.w.Analog.ValueAt(e.Start, true)
}

// V2 is the voltage at the end of the transition.
func (e *Edge) V2() float64 {
	return e.w.Analog.ValueAt(e.End, true)
}

// SlewRate in volts per second. ok is false for zero-length transitions.
func (e *Edge) SlewRate() (rate float64, ok bool) {
	dt := (e.End - e.Start) * e.w.Analog.TimeInterval
	if dt == 0 {
		return 0, false
	}
	return (e.V2() - e.V1()) / dt, true
}

func (e *Edge) String() string {
	return fmt.Sprintf("{%s %s %0.3f->%0.3f}", e.w.Name, e.Polarity, e.Start, e.End)
}
