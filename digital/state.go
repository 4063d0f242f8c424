package digital

// State is the per-sample hysteresis state tracked while reconstructing a
// digital signal.
type State uint8

const (
	Unknown State = iota
	Low
	LowRising
	HighRising
	High
	HighFalling
	LowFalling
)

var stateNames = [...]string{
	Unknown:     "Unknown",
	Low:         "Low",
	LowRising:   "LowRising",
	HighRising:  "HighRising",
	High:        "High",
	HighFalling: "HighFalling",
	LowFalling:  "LowFalling",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(?)"
}

// IsLow reports whether the last recognized level was low.
func (s State) IsLow() bool {
	return s == Low || s == LowRising || s == LowFalling
}

// IsHigh reports whether the last recognized level was high.
func (s State) IsHigh() bool {
	return s == High || s == HighRising || s == HighFalling
}

// next returns the state following prev for a sample of voltage v.
func (w *Waveform) next(v float64, prev State) State {
	switch {
	case v >= w.ThresholdHi:
		if prev.IsLow() {
			return HighRising
		}
		if prev == HighFalling || prev == Unknown {
			return High
		}
	case v < w.ThresholdLo:
		if prev.IsHigh() {
			return LowFalling
		}
		if prev == LowRising || prev == Unknown {
			return Low
		}
	default:
		if prev == Low || prev == LowFalling {
			return LowRising
		}
		if prev == High || prev == HighRising {
			return HighFalling
		}
	}

	return prev
}
