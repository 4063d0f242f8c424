// I2CTRACE - Recovers I2C bus transactions from analog captures.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/bemasher/i2ctrace/csv"
	"github.com/bemasher/i2ctrace/digital"
	"github.com/bemasher/i2ctrace/i2c"
)

// JSON and CSV encoders both implement this interface so we can simplify
// transaction output formatting.
type Encoder interface {
	Encode(interface{}) error
}

func NewEncoder(format string, w io.Writer, pec bool) (Encoder, error) {
	switch strings.ToLower(format) {
	case "plain":
		return &PlainEncoder{w: w, pec: pec}, nil
	case "csv":
		return csv.NewHeaderEncoder(w, i2c.Header()), nil
	case "json":
		return json.NewEncoder(w), nil
	}
	return nil, errors.Wrapf(digital.ErrConfig, "invalid output format %q", format)
}

// PlainEncoder prints one numbered line per transaction:
//
//	   0   0.000020s ->   0.000210s 50Wa: 00a 10a
//
// Unknown times print as "---- ? ----" and incomplete data bytes as "!!".
type PlainEncoder struct {
	w   io.Writer
	n   int
	pec bool
}

func (pe *PlainEncoder) Encode(v interface{}) error {
	tr, ok := v.(*i2c.Transaction)
	if !ok {
		_, err := fmt.Fprintln(pe.w, v)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  %4d %s -> %s ", pe.n, plainTime(tr.Start), plainTime(tr.Stop))
	pe.n++

	switch {
	case tr.Address == nil:
		b.WriteString("[addr?]")
	case tr.Address.Complete:
		fmt.Fprintf(&b, "%02X%s%s", tr.Address.Value, rw(tr.Address.Read), an(tr.Address.Ack))
	default:
		b.WriteString("Wn")
	}
	b.WriteString(": ")

	data := make([]string, 0, len(tr.Data))
	for _, d := range tr.Data {
		if d.Complete {
			data = append(data, fmt.Sprintf("%02X%s", d.Value, an(d.Ack)))
		} else {
			data = append(data, "!!")
		}
	}
	b.WriteString(strings.Join(data, " "))

	if pe.pec {
		if valid, ok := tr.CheckPEC(); ok {
			if valid {
				b.WriteString(" [PEC ok]")
			} else {
				b.WriteString(" [PEC bad]")
			}
		}
	}

	_, err := fmt.Fprintln(pe.w, b.String())
	return err
}

func plainTime(c *i2c.Condition) string {
	if c == nil {
		return "---- ? ----"
	}
	return fmt.Sprintf("%10.6fs", c.Time())
}

func rw(read bool) string {
	if read {
		return "R"
	}
	return "W"
}

func an(ack bool) string {
	if ack {
		return "a"
	}
	return "n"
}

// NewFilterChain builds the transaction filters selected by configuration.
func NewFilterChain(cfg FilterConfig) (fc i2c.FilterChain) {
	if len(cfg.Addresses) > 0 {
		set := make(i2c.AddressSet, len(cfg.Addresses))
		for _, addr := range cfg.Addresses {
			set[uint8(addr)] = true
		}
		fc.Add(set)
	}

	switch cfg.Direction {
	case "read":
		fc.Add(i2c.DirectionFilter(true))
	case "write":
		fc.Add(i2c.DirectionFilter(false))
	}

	if cfg.Complete {
		fc.Add(i2c.CompleteFilter{})
	}

	return fc
}

// AddressList is a comma-separated list of hex device addresses.
type AddressList []Address

func (l *AddressList) String() string {
	values := make([]string, len(*l))
	for idx, addr := range *l {
		values[idx] = fmt.Sprintf("0x%02X", uint8(addr))
	}
	return strings.Join(values, ",")
}

func (l *AddressList) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		addr, err := ParseAddress(v)
		if err != nil {
			return err
		}
		*l = append(*l, addr)
	}
	return nil
}

func (l *AddressList) Type() string {
	return "addresses"
}
