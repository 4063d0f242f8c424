package i2c

import "sort"

// Transactions is an ordered, read-only collection of decoded transactions.
// Views share the underlying transactions.
type Transactions struct {
	items []*Transaction
}

func NewTransactions(items []*Transaction) *Transactions {
	return &Transactions{items: items}
}

func (ts *Transactions) Len() int {
	return len(ts.items)
}

func (ts *Transactions) At(idx int) *Transaction {
	return ts.items[idx]
}

// All returns the transactions in decode order.
func (ts *Transactions) All() []*Transaction {
	all := make([]*Transaction, len(ts.items))
	copy(all, ts.items)
	return all
}

// Device summarises traffic to a single 7-bit address.
type Device struct {
	Address    uint8 `json:"address"`
	Read       bool  `json:"read"`
	Write      bool  `json:"write"`
	ReadCount  int   `json:"reads"`
	WriteCount int   `json:"writes"`
}

// Addresses aggregates traffic per resolved address in order of first
// appearance. Transactions without a complete address byte are skipped.
func (ts *Transactions) Addresses() []Device {
	var devices []Device
	position := make(map[uint8]int)

	for _, tr := range ts.items {
		addr, ok := tr.DeviceAddress()
		if !ok {
			continue
		}

		idx, seen := position[addr]
		if !seen {
			idx = len(devices)
			position[addr] = idx
			devices = append(devices, Device{Address: addr})
		}

		if read, _ := tr.Read(); read {
			devices[idx].Read = true
			devices[idx].ReadCount++
		} else {
			devices[idx].Write = true
			devices[idx].WriteCount++
		}
	}

	return devices
}

// SortedAddresses is Addresses ordered by address.
func (ts *Transactions) SortedAddresses() []Device {
	devices := ts.Addresses()
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Address < devices[j].Address
	})
	return devices
}

// Filter returns the transactions every filter in the chain accepts. An empty
// chain accepts everything.
func (ts *Transactions) Filter(fc FilterChain) *Transactions {
	var items []*Transaction
	for _, tr := range ts.items {
		if fc.Match(tr) {
			items = append(items, tr)
		}
	}
	return NewTransactions(items)
}

// Select filters by optional address and direction. Nil predicates match
// anything, a set predicate never matches an unresolved address.
func (ts *Transactions) Select(address *uint8, read *bool) *Transactions {
	var fc FilterChain
	if address != nil {
		fc.Add(AddressFilter(*address))
	}
	if read != nil {
		fc.Add(DirectionFilter(*read))
	}
	return ts.Filter(fc)
}

// Bits flattens the selected bits of every transaction in order.
func (ts *Transactions) Bits(sel BitSelection) (bits []Bit) {
	for _, tr := range ts.items {
		bits = append(bits, tr.Bits(sel)...)
	}
	return bits
}

// TargetBits returns the bits the device at address drove onto SDA: its
// address acknowledges, the data it returned on reads and its acknowledges of
// written data.
func (ts *Transactions) TargetBits(address uint8) []Bit {
	read, write := true, false
	bits := ts.Select(&address, &read).Bits(BitSelection{AddressAck: true, Data: true})
	return append(bits, ts.Select(&address, &write).Bits(BitSelection{AddressAck: true, DataAck: true})...)
}

// ControllerBits returns the bits the controller drove onto SDA while
// talking to address: address bytes, written data and acknowledges of read
// data.
func (ts *Transactions) ControllerBits(address uint8) []Bit {
	read, write := true, false
	bits := ts.Select(&address, &write).Bits(BitSelection{Address: true, Data: true})
	return append(bits, ts.Select(&address, &read).Bits(BitSelection{Address: true, DataAck: true})...)
}

// A FilterChain applies its filters in turn to each transaction.
type FilterChain []TransactionFilter

func (fc *FilterChain) Add(filter TransactionFilter) {
	*fc = append(*fc, filter)
}

func (fc FilterChain) Match(tr *Transaction) bool {
	if len(fc) == 0 {
		return true
	}

	for _, filter := range fc {
		if !filter.Filter(tr) {
			return false
		}
	}

	return true
}

type TransactionFilter interface {
	Filter(*Transaction) bool
}

// AddressFilter accepts transactions addressed to a single device.
type AddressFilter uint8

func (f AddressFilter) Filter(tr *Transaction) bool {
	addr, ok := tr.DeviceAddress()
	return ok && addr == uint8(f)
}

// DirectionFilter accepts reads when true, writes when false.
type DirectionFilter bool

func (f DirectionFilter) Filter(tr *Transaction) bool {
	read, ok := tr.Read()
	return ok && read == bool(f)
}

// AddressSet accepts transactions addressed to any device in the set.
type AddressSet map[uint8]bool

func (f AddressSet) Filter(tr *Transaction) bool {
	addr, ok := tr.DeviceAddress()
	return ok && f[addr]
}

// CompleteFilter accepts only complete transactions.
type CompleteFilter struct{}

func (CompleteFilter) Filter(tr *Transaction) bool {
	return tr.IsComplete()
}
