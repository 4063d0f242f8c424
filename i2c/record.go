package i2c

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ConditionRecord is the serialized form of a Condition. Restart is only
// emitted for a Start that closed the preceding transaction.
type ConditionRecord struct {
	Type    string  `json:"type"`
	Time    float64 `json:"time"`
	Restart bool    `json:"restart,omitempty"`
}

// DataRecord is the serialized form of a data byte. Value and Ack are null
// until the byte is complete.
type DataRecord struct {
	Value    *uint8 `json:"value"`
	Ack      *bool  `json:"ack"`
	Complete bool   `json:"complete"`
}

// AddressRecord is the serialized form of an address byte.
type AddressRecord struct {
	Value    *uint8 `json:"value"`
	Read     *bool  `json:"read"`
	Ack      *bool  `json:"ack"`
	Complete bool   `json:"complete"`
}

type TransactionRecord struct {
	Start   *ConditionRecord `json:"start"`
	Address *AddressRecord   `json:"address"`
	Data    []DataRecord     `json:"data"`
	Stop    *ConditionRecord `json:"stop"`
}

func (c *Condition) Serialize() *ConditionRecord {
	if c == nil {
		return nil
	}
	return &ConditionRecord{
		Type:    c.Kind.String(),
		Time:    c.Time(),
		Restart: c.Restart,
	}
}

func (b *Byte) SerializeData() DataRecord {
	r := DataRecord{Complete: b.Complete}
	if b.Complete {
		value, ack := b.Value, b.Ack
		r.Value, r.Ack = &value, &ack
	}
	return r
}

func (b *Byte) SerializeAddress() *AddressRecord {
	if b == nil {
		return nil
	}

	r := &AddressRecord{Complete: b.Complete}
	if b.Complete {
		value, read, ack := b.Value, b.Read, b.Ack
		r.Value, r.Read, r.Ack = &value, &read, &ack
	}
	return r
}

func (t *Transaction) Serialize() TransactionRecord {
	r := TransactionRecord{
		Start:   t.Start.Serialize(),
		Address: t.Address.SerializeAddress(),
		Data:    make([]DataRecord, 0, len(t.Data)),
		Stop:    t.Stop.Serialize(),
	}
	for _, d := range t.Data {
		r.Data = append(r.Data, d.SerializeData())
	}
	return r
}

func (ts *Transactions) Serialize() []TransactionRecord {
	records := make([]TransactionRecord, 0, len(ts.items))
	for _, tr := range ts.items {
		records = append(records, tr.Serialize())
	}
	return records
}

// MarshalJSON encodes the transaction as its record so encoders can be handed
// transactions directly.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Serialize())
}

// Header names the fields produced by Record.
func Header() []string {
	return []string{"start", "stop", "end", "address", "direction", "address_ack", "data", "complete"}
}

// Record produces a CSV row: start and stop times in seconds, how the
// transaction ended, the address, direction, address acknowledge, data bytes
// as hex with an a/n acknowledge suffix and completeness.
func (t *Transaction) Record() (r []string) {
	r = append(r, formatTime(t.Start))
	r = append(r, formatTime(t.Stop))

	switch {
	case t.Stop == nil:
		r = append(r, "")
	case t.Restarted():
		r = append(r, "restart")
	default:
		r = append(r, "stop")
	}

	if addr, ok := t.DeviceAddress(); ok {
		read, _ := t.Read()
		acked, _ := t.AddressAcked()
		r = append(r, fmt.Sprintf("0x%02X", addr))
		r = append(r, direction(read))
		r = append(r, strconv.FormatBool(acked))
	} else {
		r = append(r, "", "", "")
	}

	data := make([]string, 0, len(t.Data))
	for _, d := range t.Data {
		if !d.Complete {
			data = append(data, "!!")
			continue
		}
		data = append(data, fmt.Sprintf("%02X%s", d.Value, ackFlag(d.Ack)))
	}
	r = append(r, strings.Join(data, " "))
	r = append(r, strconv.FormatBool(t.IsComplete()))

	return r
}

func formatTime(c *Condition) string {
	if c == nil {
		return ""
	}
	return strconv.FormatFloat(c.Time(), 'f', 9, 64)
}
