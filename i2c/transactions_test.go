package i2c

import (
	"encoding/json"
	"testing"

	"github.com/bemasher/i2ctrace/crc"
	"github.com/bemasher/i2ctrace/gen"
)

var mixed = []gen.Frame{
	{Address: 0x50, AddressAck: true, Data: []byte{0x00, 0x10}},
	{Address: 0x50, Read: true, AddressAck: true, Data: []byte{0xAA}},
	{Address: 0x1D, AddressAck: true, Data: []byte{0x20}},
	{Address: 0x68, Read: true, AddressAck: false},
	{Address: 0x1D, AddressAck: true, Data: []byte{0x21}},
}

func TestAddresses(t *testing.T) {
	ts := decodeFrames(t, mixed, false)

	devices := ts.Addresses()
	expt := []Device{
		{Address: 0x50, Read: true, Write: true, ReadCount: 1, WriteCount: 1},
		{Address: 0x1D, Write: true, WriteCount: 2},
		{Address: 0x68, Read: true, ReadCount: 1},
	}

	if len(devices) != len(expt) {
		t.Fatalf("Expected %d devices got %d: %+v\n", len(expt), len(devices), devices)
	}
	for idx := range expt {
		if devices[idx] != expt[idx] {
			t.Fatalf("Device %d: expected %+v got %+v\n", idx, expt[idx], devices[idx])
		}
	}

	sorted := ts.SortedAddresses()
	for idx := 1; idx < len(sorted); idx++ {
		if sorted[idx-1].Address >= sorted[idx].Address {
			t.Fatalf("Addresses not sorted: %+v\n", sorted)
		}
	}
}

func TestSelect(t *testing.T) {
	ts := decodeFrames(t, mixed, false)

	addr := uint8(0x50)
	read, write := true, false

	cases := []struct {
		name    string
		address *uint8
		read    *bool
		count   int
	}{
		{"all", nil, nil, 5},
		{"address", &addr, nil, 2},
		{"reads", nil, &read, 2},
		{"writes", nil, &write, 3},
		{"address writes", &addr, &write, 1},
	}

	for _, c := range cases {
		if n := ts.Select(c.address, c.read).Len(); n != c.count {
			t.Errorf("%s: expected %d transactions got %d\n", c.name, c.count, n)
		}
	}

	missing := uint8(0x00)
	if n := ts.Select(&missing, nil).Len(); n != 0 {
		t.Errorf("Expected no transactions for 0x00 got %d\n", n)
	}
}

func TestFilterChain(t *testing.T) {
	ts := decodeFrames(t, mixed, false)

	var fc FilterChain
	if ts.Filter(fc).Len() != ts.Len() {
		t.Fatal("Empty chain rejected transactions")
	}

	fc.Add(AddressSet{0x1D: true, 0x68: true})
	fc.Add(CompleteFilter{})
	if n := ts.Filter(fc).Len(); n != 3 {
		t.Fatalf("Expected 3 transactions got %d\n", n)
	}

	fc.Add(DirectionFilter(false))
	filtered := ts.Filter(fc)
	if filtered.Len() != 2 {
		t.Fatalf("Expected 2 transactions got %d\n", filtered.Len())
	}
	for _, tr := range filtered.All() {
		if addr, _ := tr.DeviceAddress(); addr != 0x1D {
			t.Fatalf("Unexpected address 0x%02X\n", addr)
		}
	}
}

func TestSelectionBits(t *testing.T) {
	ts := decodeFrames(t, mixed[:2], false)

	cases := []struct {
		sel   BitSelection
		count int
	}{
		{BitSelection{}, 0},
		{BitSelection{Address: true}, 16},
		{BitSelection{AddressAck: true}, 2},
		{BitSelection{Data: true}, 24},
		{BitSelection{DataAck: true}, 3},
		{BitSelection{true, true, true, true}, 45},
	}

	for _, c := range cases {
		if n := len(ts.Bits(c.sel)); n != c.count {
			t.Errorf("%+v: expected %d bits got %d\n", c.sel, c.count, n)
		}
	}

	// Acknowledge bits are low when acknowledged.
	for _, b := range ts.Bits(BitSelection{DataAck: true}) {
		if b.Value {
			t.Fatalf("Expected acknowledged data got %s\n", b)
		}
	}
}

func TestSerialize(t *testing.T) {
	cfg := gen.NewConfig()
	bus := gen.NewBus(cfg)
	bus.Frames(mixed[:1], false)
	bus.Start()
	bus.Address(0x50, true, true)
	bus.WriteBit(true)
	bus.ClockHigh(false)

	ts, err := newDecoder(t, bus, cfg).Decode(0)
	if err != nil {
		t.Fatal(err)
	}

	buf, err := json.Marshal(ts.Serialize())
	if err != nil {
		t.Fatal(err)
	}

	var records []struct {
		Start   map[string]interface{}   `json:"start"`
		Address map[string]interface{}   `json:"address"`
		Data    []map[string]interface{} `json:"data"`
		Stop    map[string]interface{}   `json:"stop"`
	}
	if err := json.Unmarshal(buf, &records); err != nil {
		t.Fatal(err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records got %d: %s\n", len(records), buf)
	}

	done, partial := records[0], records[1]
	if done.Start["type"] != "Start" || done.Stop["type"] != "Stop" {
		t.Fatalf("Unexpected conditions: %s\n", buf)
	}
	if _, ok := done.Stop["restart"]; ok {
		t.Fatalf("STOP carries restart flag: %s\n", buf)
	}
	if done.Address["value"] != float64(0x50) || done.Address["read"] != false || done.Address["ack"] != true {
		t.Fatalf("Unexpected address record: %v\n", done.Address)
	}
	if len(done.Data) != 2 || done.Data[1]["value"] != float64(0x10) {
		t.Fatalf("Unexpected data records: %v\n", done.Data)
	}

	if partial.Stop != nil {
		t.Fatalf("Expected null stop got %v\n", partial.Stop)
	}
	if len(partial.Data) != 1 {
		t.Fatalf("Expected one partial data record got %v\n", partial.Data)
	}
	d := partial.Data[0]
	if d["value"] != nil || d["ack"] != nil || d["complete"] != false {
		t.Fatalf("Incomplete byte should serialize null value and ack: %v\n", d)
	}

	// Transactions marshal as their records.
	direct, err := json.Marshal(ts.At(0))
	if err != nil {
		t.Fatal(err)
	}
	viaRecord, _ := json.Marshal(ts.At(0).Serialize())
	if string(direct) != string(viaRecord) {
		t.Fatalf("MarshalJSON differs from Serialize:\n%s\n%s\n", direct, viaRecord)
	}
}

func TestSerializeRestart(t *testing.T) {
	ts := decodeFrames(t, mixed[:2], true)

	r := ts.At(0).Serialize()
	if r.Stop == nil || r.Stop.Type != "Start" || !r.Stop.Restart {
		t.Fatalf("Expected restart marker got %+v\n", r.Stop)
	}
}

func TestRecord(t *testing.T) {
	ts := decodeFrames(t, mixed[:2], true)

	first := ts.At(0).Record()
	if len(first) != len(Header()) {
		t.Fatalf("Record has %d fields, header %d\n", len(first), len(Header()))
	}

	expt := map[int]string{2: "restart", 3: "0x50", 4: "W", 5: "true", 6: "00a 10a", 7: "true"}
	for idx, v := range expt {
		if first[idx] != v {
			t.Errorf("Field %s: expected %q got %q\n", Header()[idx], v, first[idx])
		}
	}

	if second := ts.At(1).Record(); second[2] != "stop" || second[4] != "R" || second[6] != "AAa" {
		t.Errorf("Unexpected second record: %q\n", second)
	}
}

func TestRecordHex(t *testing.T) {
	frames := []gen.Frame{
		{Address: 0x0B, AddressAck: true, Data: []byte{0x0F, 0xE0}, Acks: []bool{true, false}},
	}
	r := decodeFrames(t, frames, false).At(0).Record()

	if r[3] != "0x0B" || r[6] != "0Fa E0n" {
		t.Fatalf("Expected zero padded upper case hex got %q and %q\n", r[3], r[6])
	}
}

func TestCheckPEC(t *testing.T) {
	smbus := crc.NewSMBus()

	msg := []byte{0x16, 0x08, 0x34, 0x12}
	pec := smbus.Checksum(msg)

	frames := []gen.Frame{
		{Address: 0x0B, AddressAck: true, Data: []byte{0x08, 0x34, 0x12, pec}},
		{Address: 0x0B, AddressAck: true, Data: []byte{0x08, 0x34, 0x12, pec ^ 0x01}},
		{Address: 0x0B, AddressAck: true, Data: []byte{0x08}},
	}

	ts := decodeFrames(t, frames, false)

	if valid, ok := ts.At(0).CheckPEC(); !ok || !valid {
		t.Errorf("Expected valid PEC got valid=%v ok=%v\n", valid, ok)
	}
	if valid, ok := ts.At(1).CheckPEC(); !ok || valid {
		t.Errorf("Expected invalid PEC got valid=%v ok=%v\n", valid, ok)
	}
	if _, ok := ts.At(2).CheckPEC(); ok {
		t.Error("Expected PEC check to be inapplicable to a single byte")
	}
}

func TestDrivenBits(t *testing.T) {
	ts := decodeFrames(t, mixed[:2], false)

	// Write of two bytes then read of one, all acknowledged.
	target := ts.TargetBits(0x50)
	if len(target) != 1+8+1+2 {
		t.Fatalf("Expected 12 target bits got %d\n", len(target))
	}

	controller := ts.ControllerBits(0x50)
	if len(controller) != 8+16+8+1 {
		t.Fatalf("Expected 33 controller bits got %d\n", len(controller))
	}

	if n := len(ts.TargetBits(0x1D)); n != 0 {
		t.Fatalf("Expected no bits for absent device got %d\n", n)
	}
}
