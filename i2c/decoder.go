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

// Package i2c decodes I2C transactions from the reconstructed SCL and SDA
// transitions of a bus capture.
package i2c

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bemasher/i2ctrace/digital"
)

// ErrStuck is returned if decoding stops advancing through the capture.
var ErrStuck = errors.New("decoder failed to advance")

// Decoder walks the SCL and SDA transitions of one bus forward in index
// space.
type Decoder struct {
	SCL, SDA *digital.Waveform

	Log logrus.FieldLogger
}

// NewDecoder pairs two lines sampled on the same time base.
func NewDecoder(scl, sda *digital.Waveform) (*Decoder, error) {
	if scl == nil || sda == nil {
		return nil, errors.Wrap(digital.ErrConfig, "both SCL and SDA are required")
	}

	if n, m := scl.Analog.Len(), sda.Analog.Len(); n != m {
		return nil, errors.Wrapf(digital.ErrConfig, "sample count of SDA (%d) and SCL (%d) don't match", m, n)
	}

	if a, b := scl.Analog.TimeInterval, sda.Analog.TimeInterval; a != b {
		return nil, errors.Wrapf(digital.ErrConfig, "sample rate of SDA (%g Hz) and SCL (%g Hz) don't match", 1/b, 1/a)
	}

	return &Decoder{
		SCL: scl,
		SDA: sda,
		Log: logrus.StandardLogger(),
	}, nil
}

// Decode collects every transaction starting after index. Transactions cut
// short by the end of the capture are kept incomplete.
func (d *Decoder) Decode(index float64) (*Transactions, error) {
	var items []*Transaction

	for {
		tr, err := d.Next(index)
		if err != nil {
			return nil, err
		}
		if tr == nil {
			break
		}
		items = append(items, tr)

		if _, closed := tr.IndexEnd(); !closed {
			break
		}
		if index, err = resume(tr, index); err != nil {
			return nil, err
		}
	}

	return NewTransactions(items), nil
}

// resume returns the index the search for the transaction following tr
// starts from. A RESTART closing tr is backed off so it is found again as the
// START of the next transaction.
func resume(tr *Transaction, index float64) (float64, error) {
	end, _ := tr.IndexEnd()
	if err := forward(index, end, "transaction end"); err != nil {
		return 0, err
	}

	if tr.Restarted() {
		end--
	}
	return end, nil
}

// forward fails with ErrStuck unless to lies after from.
func forward(from, to float64, what string) error {
	if to <= from {
		return errors.Wrapf(ErrStuck, "%s at %g does not follow %g", what, to, from)
	}
	return nil
}

// Next decodes the first transaction whose START lies after index. It
// returns nil if there is none.
func (d *Decoder) Next(index float64) (*Transaction, error) {
	start := d.nextStart(index)
	if start == nil {
		return nil, nil
	}

	tr := &Transaction{
		Start:      start,
		IndexStart: start.Index(),
		scl:        d.SCL,
		sda:        d.SDA,
	}

	log := d.logger().WithField("index", tr.IndexStart)
	log.Debugf("START at %0.7fs", start.Time())

	cur := &Byte{Kind: AddressByte}
	i := tr.IndexStart

	for {
		// SCL is high here, either after the START or after a bit was
		// latched. Any SDA change before SCL falls again is a condition.
		// With no further clock fall SCL stays high to the end of the capture,
		// so a STOP followed by an idle bus is still recognised.
		bound := math.Inf(1)
		fall := d.SCL.Next(i, digital.Falling)
		if fall != nil {
			bound = fall.End
		}

		if sda := d.SDA.NextBefore(i, digital.Either, bound); sda != nil {
			if sda.Rising() {
				tr.Stop = &Condition{Kind: Stop, Edge: sda}
				log.Debugf("STOP at %0.7fs", tr.Stop.Time())
			} else {
				tr.Stop = &Condition{Kind: Start, Restart: true, Edge: sda}
				log.Debugf("RESTART at %0.7fs", tr.Stop.Time())
			}
			return tr, nil
		}

		if fall == nil {
			log.Debug("no SCL fall before end of capture")
			d.keepPartial(tr, cur)
			return tr, nil
		}

		rise := d.SCL.Next(i, digital.Rising)
		if rise == nil {
			log.Debug("no SCL rise before end of capture")
			d.keepPartial(tr, cur)
			return tr, nil
		}

		high, valid := d.SDA.LevelAt(rise.End, true)
		if cur.add(Bit{Clock: rise, Value: high, Valid: valid}) {
			if cur.Kind == AddressByte {
				tr.Address = cur
			} else {
				tr.Data = append(tr.Data, cur)
			}
			log.Debugf("byte complete: %s", cur)
			cur = &Byte{Kind: DataByte}
		}

		if err := forward(i, rise.End, "bit clock"); err != nil {
			return nil, err
		}
		i = rise.End
	}
}

func (d *Decoder) logger() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// keepPartial attaches a byte cut short by the end of the capture.
func (d *Decoder) keepPartial(tr *Transaction, b *Byte) {
	if len(b.Bits) == 0 || b.Complete {
		return
	}

	if b.Kind == AddressByte {
		tr.Address = b
	} else {
		tr.Data = append(tr.Data, b)
	}
}

// nextStart finds the first falling SDA edge after index during which SCL
// reads high. Falls while SCL is low are ordinary data bits.
func (d *Decoder) nextStart(index float64) *Condition {
	for {
		sda := d.SDA.Next(index, digital.Falling)
		if sda == nil {
			return nil
		}

		if high, ok := d.SCL.LevelAt(sda.End, true); ok && high {
			return &Condition{Kind: Start, Edge: sda}
		}

		index = sda.End
	}
}
