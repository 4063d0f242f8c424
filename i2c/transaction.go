package i2c

import (
	"fmt"
	"strings"

	"github.com/bemasher/i2ctrace/crc"
	"github.com/bemasher/i2ctrace/digital"
)

// Transaction is everything between a START and the STOP or RESTART that
// ends it. Stop is nil when the capture ended first. Stop holds a Start
// condition with Restart set when a new transaction began without releasing
// the bus.
type Transaction struct {
	Start   *Condition
	Address *Byte
	Data    []*Byte
	Stop    *Condition

	IndexStart float64

	scl, sda *digital.Waveform
}

// IndexEnd is the index of the closing condition.
func (t *Transaction) IndexEnd() (float64, bool) {
	if t.Stop == nil {
		return 0, false
	}
	return t.Stop.Index(), true
}

// IsComplete holds when the transaction has a start, a fully received address
// and a closing condition.
func (t *Transaction) IsComplete() bool {
	return t.Start != nil && t.Address != nil && t.Address.Complete && t.Stop != nil
}

// Restarted reports whether a RESTART closed the transaction.
func (t *Transaction) Restarted() bool {
	return t.Stop != nil && t.Stop.Kind == Start
}

// DeviceAddress is the 7-bit address once the address byte is complete.
func (t *Transaction) DeviceAddress() (uint8, bool) {
	if t.Address == nil || !t.Address.Complete {
		return 0, false
	}
	return t.Address.Value, true
}

// Read is the transfer direction once the address byte is complete.
func (t *Transaction) Read() (bool, bool) {
	if t.Address == nil || !t.Address.Complete {
		return false, false
	}
	return t.Address.Read, true
}

// AddressAcked reports whether the addressed device acknowledged.
func (t *Transaction) AddressAcked() (bool, bool) {
	if t.Address == nil || !t.Address.Complete {
		return false, false
	}
	return t.Address.Ack, true
}

// Payload returns the values of all complete data bytes.
func (t *Transaction) Payload() []byte {
	payload := make([]byte, 0, len(t.Data))
	for _, d := range t.Data {
		if d.Complete {
			payload = append(payload, d.Value)
		}
	}
	return payload
}

// BitSelection chooses which bit categories Bits returns. Address covers the
// seven address bits and the direction bit.
type BitSelection struct {
	Address    bool
	AddressAck bool
	Data       bool
	DataAck    bool
}

// Bits flattens the selected bits in byte order.
func (t *Transaction) Bits(sel BitSelection) (bits []Bit) {
	if t.Address != nil {
		if sel.Address {
			bits = append(bits, head(t.Address.Bits)...)
		}
		if sel.AddressAck {
			bits = append(bits, ack(t.Address.Bits)...)
		}
	}

	if sel.Data || sel.DataAck {
		for _, d := range t.Data {
			if sel.Data {
				bits = append(bits, head(d.Bits)...)
			}
			if sel.DataAck {
				bits = append(bits, ack(d.Bits)...)
			}
		}
	}

	return bits
}

func head(bits []Bit) []Bit {
	if len(bits) > 8 {
		return bits[:8]
	}
	return bits
}

func ack(bits []Bit) []Bit {
	if len(bits) > 8 {
		return bits[8:9]
	}
	return nil
}

// lastIndex is the end of the transaction's span: its closing condition or
// the last sampled bit.
func (t *Transaction) lastIndex() float64 {
	if end, ok := t.IndexEnd(); ok {
		return end
	}

	last := t.IndexStart
	if t.Address != nil && len(t.Address.Bits) > 0 {
		last = t.Address.Bits[len(t.Address.Bits)-1].Index()
	}
	if n := len(t.Data); n > 0 && len(t.Data[n-1].Bits) > 0 {
		bits := t.Data[n-1].Bits
		last = bits[len(bits)-1].Index()
	}
	return last
}

func (t *Transaction) edges(w *digital.Waveform) (edges []*digital.Edge) {
	if w == nil || t.Start == nil {
		return nil
	}

	last := t.lastIndex()
	for e := w.Next(t.IndexStart, digital.Either); e != nil && e.End <= last; e = e.Next() {
		edges = append(edges, e)
	}
	return edges
}

// SCLEdges returns the clock transitions ending after the START and no later
// than the end of the transaction.
func (t *Transaction) SCLEdges() []*digital.Edge {
	return t.edges(t.scl)
}

// SDAEdges returns the data transitions ending after the START and no later
// than the end of the transaction.
func (t *Transaction) SDAEdges() []*digital.Edge {
	return t.edges(t.sda)
}

var smbus = crc.NewSMBus()

// CheckPEC treats the last complete data byte as an SMBus packet error code
// over the address byte and preceding data. ok is false when the transaction
// has no complete address or fewer than two data bytes.
func (t *Transaction) CheckPEC() (valid, ok bool) {
	if t.Address == nil || !t.Address.Complete {
		return false, false
	}

	payload := t.Payload()
	if len(payload) < 2 {
		return false, false
	}

	msg := append([]byte{t.Address.Raw()}, payload...)
	return smbus.Valid(msg), true
}

func (t *Transaction) String() string {
	var b strings.Builder
	b.WriteString("{")

	if t.Start != nil {
		fmt.Fprintf(&b, "Start:%0.7fs ", t.Start.Time())
	} else {
		b.WriteString("Start:? ")
	}

	if addr, ok := t.DeviceAddress(); ok {
		read, _ := t.Read()
		acked, _ := t.AddressAcked()
		fmt.Fprintf(&b, "Addr:0x%02X%s%s ", addr, direction(read), ackFlag(acked))
	} else {
		b.WriteString("Addr:? ")
	}

	b.WriteString("Data:[")
	for idx, d := range t.Data {
		if idx > 0 {
			b.WriteString(" ")
		}
		if d.Complete {
			fmt.Fprintf(&b, "%02X%s", d.Value, ackFlag(d.Ack))
		} else {
			b.WriteString("!!")
		}
	}
	b.WriteString("] ")

	switch {
	case t.Stop == nil:
		b.WriteString("Stop:?")
	case t.Restarted():
		fmt.Fprintf(&b, "Restart:%0.7fs", t.Stop.Time())
	default:
		fmt.Fprintf(&b, "Stop:%0.7fs", t.Stop.Time())
	}

	b.WriteString("}")
	return b.String()
}

func direction(read bool) string {
	if read {
		return "R"
	}
	return "W"
}

func ackFlag(ack bool) string {
	if ack {
		return "a"
	}
	return "n"
}
