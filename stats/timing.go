package stats

import (
	"github.com/bemasher/i2ctrace/digital"
	"github.com/bemasher/i2ctrace/i2c"
)

const nanosecond = 1e9

// Timing summarises clock phases of a set of bits in nanoseconds.
type Timing struct {
	High   Summary `json:"high"`
	Low    Summary `json:"low"`
	Period Summary `json:"period"`
}

// BitTiming measures the SCL high, low and period of each bit. Bits at the
// end of the capture without a following clock edge are skipped.
func BitTiming(bits []i2c.Bit) Timing {
	var high, low, period []float64

	for _, b := range bits {
		if v, ok := b.HighTime(); ok {
			high = append(high, v*nanosecond)
		}
		if v, ok := b.LowTime(); ok {
			low = append(low, v*nanosecond)
		}
		if v, ok := b.Period(); ok {
			period = append(period, v*nanosecond)
		}
	}

	return Timing{
		High:   Summarize(high),
		Low:    Summarize(low),
		Period: Summarize(period),
	}
}

// Group collects transition times in nanoseconds.
type Group struct {
	Address uint8
	Rise    []float64
	Fall    []float64
}

func (g *Group) add(e *digital.Edge) {
	t := e.TransitionTime() * nanosecond
	if e.Rising() {
		g.Rise = append(g.Rise, t)
	} else {
		g.Fall = append(g.Fall, t)
	}
}

// Transitions holds the transition times of one line grouped by the device
// addressed during each transaction.
type Transitions struct {
	Line    string
	All     Group
	Devices []Group
}

// TransitionTimes collects the rise and fall times of SCL, or SDA when scl is
// false, for every addressed device in order of first appearance.
func TransitionTimes(ts *i2c.Transactions, scl bool) *Transitions {
	tt := &Transitions{Line: "SDA"}
	if scl {
		tt.Line = "SCL"
	}

	for _, dev := range ts.Addresses() {
		g := Group{Address: dev.Address}

		var fc i2c.FilterChain
		fc.Add(i2c.AddressFilter(dev.Address))

		for _, tr := range ts.Filter(fc).All() {
			edges := tr.SDAEdges()
			if scl {
				edges = tr.SCLEdges()
			}

			for _, e := range edges {
				g.add(e)
				tt.All.add(e)
			}
		}

		tt.Devices = append(tt.Devices, g)
	}

	return tt
}

// GroupSummary is the reported form of a Group.
type GroupSummary struct {
	Address uint8   `json:"address"`
	Rise    Summary `json:"rise"`
	Fall    Summary `json:"fall"`
}

func (g Group) Summary() GroupSummary {
	return GroupSummary{
		Address: g.Address,
		Rise:    Summarize(g.Rise),
		Fall:    Summarize(g.Fall),
	}
}
