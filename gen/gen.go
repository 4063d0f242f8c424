// Package gen synthesizes analog I2C bus captures with finite rise and fall
// times and additive noise.
package gen

import (
	"fmt"
	"math/rand"

	"github.com/bemasher/i2ctrace/waveform"
)

// Config describes the physical bus being synthesized. Rise and fall times
// are full-swing ramp durations in seconds.
type Config struct {
	SampleRate float64
	ClockRate  float64
	Voltage    float64

	RiseTime float64
	FallTime float64

	// Noise is the peak amplitude of uniform noise added to every sample.
	Noise float64
	Seed  int64
}

// NewConfig returns a 100kHz, 3.3V bus sampled at 10MS/s.
func NewConfig() Config {
	return Config{
		SampleRate: 10e6,
		ClockRate:  100e3,
		Voltage:    3.3,
		RiseTime:   1e-6,
		FallTime:   250e-9,
		Noise:      0.05,
		Seed:       1,
	}
}

// Bus drives SCL and SDA through bus conditions and bits. Between calls SCL
// is low, except after Idle and Stop where both lines are released.
type Bus struct {
	cfg Config
	rng *rand.Rand

	scl, sda line
	quarter  float64
	carry    float64
}

type line struct {
	v       float64
	target  float64
	samples []float64
}

func NewBus(cfg Config) *Bus {
	b := &Bus{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		quarter: 1 / (4 * cfg.ClockRate),
	}

	b.scl.v, b.scl.target = cfg.Voltage, cfg.Voltage
	b.sda.v, b.sda.target = cfg.Voltage, cfg.Voltage

	return b
}

func (b *Bus) String() string {
	return fmt.Sprintf("{SampleRate:%g ClockRate:%g Voltage:%g Samples:%d}",
		b.cfg.SampleRate, b.cfg.ClockRate, b.cfg.Voltage, len(b.scl.samples),
	)
}

func (b *Bus) set(l *line, high bool) {
	if high {
		l.target = b.cfg.Voltage
	} else {
		l.target = 0
	}
}

// step moves a line one sample toward its target at the configured slew.
func (b *Bus) step(l *line, dt float64) {
	switch {
	case l.v < l.target:
		l.v += b.cfg.Voltage * dt / b.cfg.RiseTime
		if l.v > l.target {
			l.v = l.target
		}
	case l.v > l.target:
		l.v -= b.cfg.Voltage * dt / b.cfg.FallTime
		if l.v < l.target {
			l.v = l.target
		}
	}

	l.samples = append(l.samples, l.v+(b.rng.Float64()-0.5)*2*b.cfg.Noise)
}

// hold advances both lines for d seconds. Fractional samples carry over so
// long captures keep their nominal timing.
func (b *Bus) hold(d float64) {
	dt := 1 / b.cfg.SampleRate

	b.carry += d * b.cfg.SampleRate
	n := int(b.carry + 1e-9)
	b.carry -= float64(n)

	for i := 0; i < n; i++ {
		b.step(&b.scl, dt)
		b.step(&b.sda, dt)
	}
}

// Idle releases both lines for d seconds.
func (b *Bus) Idle(d float64) {
	b.set(&b.scl, true)
	b.set(&b.sda, true)
	b.hold(d)
}

// Start pulls SDA low while SCL is high.
func (b *Bus) Start() {
	b.set(&b.sda, false)
	b.hold(2 * b.quarter)
	b.set(&b.scl, false)
	b.hold(b.quarter)
}

// Restart releases SDA, raises SCL, then pulls SDA low while SCL is high.
func (b *Bus) Restart() {
	b.set(&b.sda, true)
	b.hold(b.quarter)
	b.set(&b.scl, true)
	b.hold(2 * b.quarter)
	b.Start()
}

// Stop raises SCL with SDA low, then releases SDA.
func (b *Bus) Stop() {
	b.set(&b.sda, false)
	b.hold(b.quarter)
	b.set(&b.scl, true)
	b.hold(2 * b.quarter)
	b.set(&b.sda, true)
	b.hold(2 * b.quarter)
}

// WriteBit places v on SDA while SCL is low and clocks it.
func (b *Bus) WriteBit(v bool) {
	b.set(&b.sda, v)
	b.hold(b.quarter)
	b.set(&b.scl, true)
	b.hold(2 * b.quarter)
	b.set(&b.scl, false)
	b.hold(b.quarter)
}

// WriteByte clocks v MSB first followed by the acknowledge bit, which is
// driven low when ack is set.
func (b *Bus) WriteByte(v byte, ack bool) {
	for _, bit := range UnpackBits([]byte{v}) {
		b.WriteBit(bit == 1)
	}
	b.WriteBit(!ack)
}

// Address clocks a 7-bit address with its direction bit.
func (b *Bus) Address(addr uint8, read, ack bool) {
	v := addr << 1
	if read {
		v |= 1
	}
	b.WriteByte(v, ack)
}

// ClockHigh raises SCL with SDA at v and leaves it high, as if the capture
// stopped mid-bit.
func (b *Bus) ClockHigh(v bool) {
	b.set(&b.sda, v)
	b.hold(b.quarter)
	b.set(&b.scl, true)
	b.hold(2 * b.quarter)
}

// Samples returns the raw SCL and SDA voltages.
func (b *Bus) Samples() (scl, sda []float64) {
	return b.scl.samples, b.sda.samples
}

// Analog wraps both lines as captures starting at time zero.
func (b *Bus) Analog() (scl, sda *waveform.Analog, err error) {
	interval := 1 / b.cfg.SampleRate

	scl, err = waveform.New(b.scl.samples, 0, interval)
	if err != nil {
		return nil, nil, err
	}

	sda, err = waveform.New(b.sda.samples, 0, interval)
	if err != nil {
		return nil, nil, err
	}

	return scl, sda, nil
}

// Frame is one transaction to synthesize. Acks holds the acknowledge of each
// data byte, missing entries acknowledge.
type Frame struct {
	Address    uint8
	Read       bool
	AddressAck bool
	Data       []byte
	Acks       []bool
}

// Frames writes each frame, joining consecutive frames with a RESTART when
// restart is set and with STOP and idle time otherwise. The bus ends stopped
// and idle.
func (b *Bus) Frames(frames []Frame, restart bool) {
	idle := 8 * b.quarter

	b.Idle(idle)
	for idx, f := range frames {
		if idx == 0 || !restart {
			b.Start()
		} else {
			b.Restart()
		}

		b.Address(f.Address, f.Read, f.AddressAck)
		for dIdx, d := range f.Data {
			ack := true
			if dIdx < len(f.Acks) {
				ack = f.Acks[dIdx]
			}
			b.WriteByte(d, ack)
		}

		if !restart || idx == len(frames)-1 {
			b.Stop()
			b.Idle(idle)
		}
	}
}

// UnpackBits expands bytes to one bit per byte, MSB first.
func UnpackBits(data []byte) []byte {
	bits := make([]byte, len(data)<<3)

	for idx, b := range data {
		offset := idx << 3
		for bit := 7; bit >= 0; bit-- {
			bits[offset+(7-bit)] = (b >> uint8(bit)) & 0x01
		}
	}

	return bits
}
