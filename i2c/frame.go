package i2c

import (
	"fmt"

	"github.com/bemasher/i2ctrace/digital"
)

// ConditionKind discriminates bus conditions.
type ConditionKind uint8

const (
	Start ConditionKind = iota
	Stop
)

func (k ConditionKind) String() string {
	if k == Stop {
		return "Stop"
	}
	return "Start"
}

// Condition marks a START, RESTART or STOP at the SDA transition that caused
// it. A Start closing a transaction has Restart set.
type Condition struct {
	Kind    ConditionKind
	Restart bool
	Edge    *digital.Edge
}

// Index is the end of the triggering SDA transition.
func (c *Condition) Index() float64 {
	return c.Edge.End
}

func (c *Condition) Time() float64 {
	return c.Edge.Line().TimeAt(c.Index())
}

func (c *Condition) String() string {
	return fmt.Sprintf("{%s Restart:%v Time:%0.7fs}", c.Kind, c.Restart, c.Time())
}

// Bit is one SDA level sampled on a rising SCL edge. Valid is false when SDA
// sat inside the hysteresis band at the sampling instant, Value then reads low.
type Bit struct {
	Clock *digital.Edge
	Value bool
	Valid bool
}

// Index is the end of the sampling SCL edge.
func (b Bit) Index() float64 {
	return b.Clock.End
}

// HighTime is the time SCL stayed high after sampling this bit.
func (b Bit) HighTime() (float64, bool) {
	fall := b.Clock.Next()
	if fall == nil {
		return 0, false
	}
	return fall.EndTime() - b.Clock.EndTime(), true
}

// LowTime is the time SCL stayed low after this bit's high phase.
func (b Bit) LowTime() (float64, bool) {
	fall := b.Clock.Next()
	if fall == nil {
		return 0, false
	}
	rise := fall.Next()
	if rise == nil {
		return 0, false
	}
	return rise.EndTime() - fall.EndTime(), true
}

// Period is the time from this bit's sampling edge to the next rising SCL
// edge.
func (b Bit) Period() (float64, bool) {
	fall := b.Clock.Next()
	if fall == nil {
		return 0, false
	}
	rise := fall.Next()
	if rise == nil {
		return 0, false
	}
	return rise.EndTime() - b.Clock.EndTime(), true
}

func (b Bit) String() string {
	return fmt.Sprintf("{SDA:%v Valid:%v SCL:%0.3f}", b.Value, b.Valid, b.Index())
}

// ByteKind discriminates address and data bytes.
type ByteKind uint8

const (
	AddressByte ByteKind = iota
	DataByte
)

func (k ByteKind) String() string {
	if k == AddressByte {
		return "Address"
	}
	return "Data"
}

// BitsPerByte is eight data bits and the acknowledge bit.
const BitsPerByte = 9

// Byte accumulates bits until the ninth arrives. Value, Read and Ack are only
// meaningful once Complete is set. Address bytes carry a 7-bit Value and the
// direction in Read.
type Byte struct {
	Kind ByteKind
	Bits []Bit

	Value    uint8
	Read     bool
	Ack      bool
	Complete bool
}

// add appends a bit and reports whether the byte is now complete.
func (b *Byte) add(bit Bit) bool {
	if b.Complete {
		return true
	}

	b.Bits = append(b.Bits, bit)
	if len(b.Bits) < BitsPerByte {
		return false
	}

	var v uint8
	for _, bit := range b.Bits[:8] {
		v <<= 1
		if bit.Value {
			v |= 1
		}
	}

	if b.Kind == AddressByte {
		b.Value = v >> 1
		b.Read = b.Bits[7].Value
	} else {
		b.Value = v
	}

	b.Ack = !b.Bits[8].Value
	b.Complete = true

	return true
}

// Raw is the eight bits as transmitted, the address and direction bit for an
// address byte.
func (b *Byte) Raw() uint8 {
	if b.Kind == AddressByte {
		v := b.Value << 1
		if b.Read {
			v |= 1
		}
		return v
	}
	return b.Value
}

func (b *Byte) String() string {
	if !b.Complete {
		return fmt.Sprintf("{%s Bits:%d Complete:false}", b.Kind, len(b.Bits))
	}
	if b.Kind == AddressByte {
		return fmt.Sprintf("{Address:0x%02X Read:%v Ack:%v}", b.Value, b.Read, b.Ack)
	}
	return fmt.Sprintf("{Data:0x%02X Ack:%v}", b.Value, b.Ack)
}
