package gen

import (
	"bytes"
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestUnpackBits(t *testing.T) {
	recv := UnpackBits([]byte{0xA5, 0x01})
	expt := []byte{1, 0, 1, 0, 0, 1, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1}
	if !bytes.Equal(recv, expt) {
		t.Fatalf("Expected %v got %v\n", expt, recv)
	}
}

func TestIdleLevels(t *testing.T) {
	cfg := NewConfig()
	cfg.Noise = 0

	bus := NewBus(cfg)
	bus.Idle(1e-5)

	scl, sda := bus.Samples()
	if len(scl) != 100 || len(sda) != 100 {
		t.Fatalf("Expected 100 samples per line, got %d and %d\n", len(scl), len(sda))
	}

	for idx := range scl {
		if scl[idx] != cfg.Voltage || sda[idx] != cfg.Voltage {
			t.Fatalf("Sample %d not at bus voltage: %g %g\n", idx, scl[idx], sda[idx])
		}
	}
}

func TestSlewLimited(t *testing.T) {
	cfg := NewConfig()
	cfg.Noise = 0

	bus := NewBus(cfg)
	bus.Idle(1e-6)
	bus.Start()
	bus.WriteBit(true)

	_, sda := bus.Samples()
	dt := 1 / cfg.SampleRate
	maxRise := cfg.Voltage * dt / cfg.RiseTime
	maxFall := cfg.Voltage * dt / cfg.FallTime

	for idx := 1; idx < len(sda); idx++ {
		d := sda[idx] - sda[idx-1]
		if d > maxRise+1e-9 || -d > maxFall+1e-9 {
			t.Fatalf("Step %d exceeds slew: %g\n", idx, d)
		}
	}
}

func TestTiming(t *testing.T) {
	cfg := NewConfig()
	cfg.Noise = 0

	bus := NewBus(cfg)
	bus.WriteByte(0x00, true)

	scl, _ := bus.Samples()

	// Nine bits, one clock period each.
	expt := int(math.Round(9 * cfg.SampleRate / cfg.ClockRate))
	if len(scl) != expt {
		t.Fatalf("Expected %d samples got %d\n", expt, len(scl))
	}
}

func TestAnalog(t *testing.T) {
	bus := NewBus(NewConfig())
	bus.Frames([]Frame{{Address: 0x50, Data: []byte{0x00, 0x10}, AddressAck: true}}, false)

	scl, sda, err := bus.Analog()
	if err != nil {
		t.Fatal(err)
	}

	if scl.Len() != sda.Len() {
		t.Fatalf("Line lengths differ: %d %d\n", scl.Len(), sda.Len())
	}

	if scl.SampleRate() != bus.cfg.SampleRate {
		t.Fatalf("Expected sample rate %g got %g\n", bus.cfg.SampleRate, scl.SampleRate())
	}
}

func TestDeterministic(t *testing.T) {
	frames := []Frame{{Address: 0x1D, Read: true, AddressAck: true, Data: []byte{0xDE, 0xAD}}}

	a := NewBus(NewConfig())
	a.Frames(frames, false)
	b := NewBus(NewConfig())
	b.Frames(frames, false)

	aSCL, aSDA := a.Samples()
	bSCL, bSDA := b.Samples()
	for idx := range aSCL {
		if aSCL[idx] != bSCL[idx] || aSDA[idx] != bSDA[idx] {
			t.Fatalf("Sample %d differs between identically seeded buses\n", idx)
		}
	}
}

func BenchmarkFrames(b *testing.B) {
	frames := []Frame{{Address: 0x50, AddressAck: true, Data: make([]byte, 32)}}
	for i := 0; i < b.N; i++ {
		NewBus(NewConfig()).Frames(frames, false)
	}
}

func TestParseScript(t *testing.T) {
	frames, err := ParseScript("50W:00,10; 1dR!:aa,bb!")
	if err != nil {
		t.Fatal(err)
	}

	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames got %d\n", len(frames))
	}

	w, r := frames[0], frames[1]
	if w.Address != 0x50 || w.Read || !w.AddressAck || !bytes.Equal(w.Data, []byte{0x00, 0x10}) {
		t.Fatalf("Unexpected write frame: %+v\n", w)
	}
	if r.Address != 0x1D || !r.Read || r.AddressAck || !bytes.Equal(r.Data, []byte{0xAA, 0xBB}) {
		t.Fatalf("Unexpected read frame: %+v\n", r)
	}
	if !r.Acks[0] || r.Acks[1] {
		t.Fatalf("Unexpected acks: %v\n", r.Acks)
	}
}

func TestParseScriptErrors(t *testing.T) {
	for _, script := range []string{"", ";", "50", "50X", "80W", "50W:1ff", "zzW"} {
		if _, err := ParseScript(script); errors.Cause(err) != ErrScript {
			t.Errorf("%q: expected ErrScript got %v\n", script, err)
		}
	}
}
