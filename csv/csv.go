// Package csv writes values that describe themselves as CSV rows.
package csv

import (
	"encoding/csv"
	"io"

	"golang.org/x/xerrors"
)

// Produces a list of fields making up a record.
type Recorder interface {
	Record() []string
}

// An Encoder writes CSV records to an output stream. If a header is set it is
// written once, ahead of the first record.
type Encoder struct {
	w      *csv.Writer
	header []string
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: csv.NewWriter(w)}
}

// NewHeaderEncoder returns an encoder that writes header before the first
// record.
func NewHeaderEncoder(w io.Writer, header []string) *Encoder {
	return &Encoder{w: csv.NewWriter(w), header: header}
}

// Encode writes a CSV record representing v to the stream followed by a
// newline character. Value given must implement the Recorder interface.
func (enc *Encoder) Encode(v interface{}) (err error) {
	defer func() {
		if r, _ := recover().(error); r != nil {
			err = xerrors.Errorf("recovered: %w", r)
		}
	}()

	if enc.header != nil {
		if err = enc.w.Write(enc.header); err != nil {
			return xerrors.Errorf("writing header: %w", err)
		}
		enc.header = nil
	}

	if err = enc.w.Write(v.(Recorder).Record()); err != nil {
		return xerrors.Errorf("writing record: %w", err)
	}
	enc.w.Flush()

	return enc.w.Error()
}
