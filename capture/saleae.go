// Package capture loads and stores analog bus captures exported by Saleae
// Logic: single channel binary files and multi-channel CSV files, optionally
// compressed.
package capture

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/bemasher/i2ctrace/waveform"
)

const (
	Magic = "<SALEAE>"

	Version    = 0
	TypeAnalog = 1
)

// Header follows the magic and version of an analog binary export.
type Header struct {
	Version    int32
	Type       int32
	BeginTime  float64
	SampleRate int64
	Downsample int64
	NumSamples int64
}

// Interval is the time between stored samples.
func (h Header) Interval() float64 {
	return float64(h.Downsample) / float64(h.SampleRate)
}

// chunk bounds the number of samples decoded per read.
const chunk = 1 << 16

// ReadBinary decodes a Saleae analog binary export.
func ReadBinary(r io.Reader) (*waveform.Analog, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, errors.Wrapf(waveform.ErrFormat, "reading magic: %s", err)
	}
	if string(magic) != Magic {
		return nil, errors.Wrapf(waveform.ErrFormat, "not a saleae file: %q", magic)
	}

	var hdr Header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrapf(waveform.ErrFormat, "reading header: %s", err)
	}

	if hdr.Version != Version || hdr.Type != TypeAnalog {
		return nil, errors.Wrapf(waveform.ErrFormat, "unexpected version %d or data type %d", hdr.Version, hdr.Type)
	}
	if hdr.SampleRate <= 0 || hdr.Downsample <= 0 {
		return nil, errors.Wrapf(waveform.ErrFormat, "invalid sample rate %d / downsample %d", hdr.SampleRate, hdr.Downsample)
	}
	if hdr.NumSamples <= 0 {
		return nil, errors.Wrap(waveform.ErrEmptyData, "header declares no samples")
	}

	// The header count is untrusted, a short body fails the read below.
	samples := make([]float64, 0, min(hdr.NumSamples, chunk))
	buf := make([]float32, chunk)

	for remaining := hdr.NumSamples; remaining > 0; {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}

		if err := binary.Read(r, binary.LittleEndian, buf[:n]); err != nil {
			return nil, errors.Wrapf(waveform.ErrFormat, "reading samples, %d of %d read: %s", len(samples), hdr.NumSamples, err)
		}
		for _, v := range buf[:n] {
			samples = append(samples, float64(v))
		}
		remaining -= n
	}

	return waveform.New(samples, hdr.BeginTime, hdr.Interval())
}

// WriteBinary encodes a capture in the analog binary export format. The
// sample rate is rounded to whole hertz with no downsampling.
func WriteBinary(w io.Writer, a *waveform.Analog) error {
	bw := bufio.NewWriter(w)

	hdr := Header{
		Version:    Version,
		Type:       TypeAnalog,
		BeginTime:  a.TimeOffset,
		SampleRate: int64(math.Round(a.SampleRate())),
		Downsample: 1,
		NumSamples: int64(a.Len()),
	}

	if _, err := bw.WriteString(Magic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return err
	}

	buf := make([]float32, 0, chunk)
	for idx := 0; idx < a.Len(); idx++ {
		buf = append(buf, float32(a.Sample(idx)))
		if len(buf) == cap(buf) {
			if err := binary.Write(bw, binary.LittleEndian, buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		if err := binary.Write(bw, binary.LittleEndian, buf); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Open reads a binary export, transparently decompressing gzip, bzip2 and xz
// files.
func Open(filename string) (*waveform.Analog, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, _, err := Decompress(f)
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}

	a, err := ReadBinary(r)
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}
	return a, nil
}

// Create writes a binary export to filename, compressed with gzip or xz
// when the name ends in .gz or .xz.
func Create(filename string, a *waveform.Analog) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	w, err := Compress(f, CompressionFor(filename))
	if err != nil {
		f.Close()
		return errors.Wrap(err, filename)
	}

	if err := WriteBinary(w, a); err != nil {
		f.Close()
		return errors.Wrap(err, filename)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return errors.Wrap(err, filename)
	}
	return f.Close()
}
