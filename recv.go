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
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bemasher/i2ctrace/capture"
	"github.com/bemasher/i2ctrace/digital"
	"github.com/bemasher/i2ctrace/i2c"
	"github.com/bemasher/i2ctrace/waveform"
)

const (
	FileTypeBinary = "saleae_bin"
	FileTypeCSV    = "saleae_csv"
)

// Source names the capture files for both lines. CSV captures name the same
// file for both, with the data column of each line.
type Source struct {
	FileType string
	SCLFile  string
	SDAFile  string
	SCLCol   int
	SDACol   int
}

// ParseSource interprets the positional arguments of a command: SCL and SDA
// files for binary captures, or a file and two zero based data columns for
// CSV captures.
func ParseSource(fileType string, args []string) (src Source, err error) {
	src.FileType = fileType

	switch fileType {
	case FileTypeBinary:
		if len(args) != 2 {
			return src, errors.Wrap(digital.ErrConfig, "2 arguments (SCL file, SDA file) expected")
		}
		src.SCLFile, src.SDAFile = args[0], args[1]
	case FileTypeCSV:
		if len(args) != 3 {
			return src, errors.Wrap(digital.ErrConfig, "3 arguments (file, SCL column, SDA column) expected")
		}
		src.SCLFile, src.SDAFile = args[0], args[0]
		if src.SCLCol, err = strconv.Atoi(args[1]); err != nil || src.SCLCol < 0 {
			return src, errors.Wrapf(digital.ErrConfig, "invalid SCL column %q", args[1])
		}
		if src.SDACol, err = strconv.Atoi(args[2]); err != nil || src.SDACol < 0 {
			return src, errors.Wrapf(digital.ErrConfig, "invalid SDA column %q", args[2])
		}
	default:
		return src, errors.Wrapf(digital.ErrConfig, "unsupported file type %q", fileType)
	}

	return src, nil
}

// Names identify each line's data in reports.
func (src Source) Names() (scl, sda string) {
	if src.FileType == FileTypeCSV {
		return fmt.Sprintf("%s:%d", src.SCLFile, src.SCLCol), fmt.Sprintf("%s:%d", src.SDAFile, src.SDACol)
	}
	return src.SCLFile, src.SDAFile
}

// Session is a loaded capture with its decoded transactions.
type Session struct {
	Source Source
	Bus    BusConfig

	SCL, SDA     *digital.Waveform
	Transactions *i2c.Transactions
}

// loadAnalog reads both lines. Binary captures are read concurrently.
func loadAnalog(ctx context.Context, src Source) (scl, sda *waveform.Analog, err error) {
	if src.FileType == FileTypeCSV {
		waves, err := capture.OpenCSV(src.SCLFile)
		if err != nil {
			return nil, nil, err
		}
		if len(waves) < 2 {
			return nil, nil, errors.Wrap(waveform.ErrFormat, "2 or more columns in file expected, less found")
		}
		if src.SCLCol >= len(waves) || src.SDACol >= len(waves) {
			return nil, nil, errors.Wrapf(digital.ErrConfig, "file has %d data columns", len(waves))
		}
		return waves[src.SCLCol], waves[src.SDACol], nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		scl, err = capture.Open(src.SCLFile)
		return err
	})
	g.Go(func() (err error) {
		sda, err = capture.Open(src.SDAFile)
		return err
	})

	return scl, sda, g.Wait()
}

// Open loads a capture, reconstructs the transitions of both lines in
// parallel and decodes every transaction.
func Open(ctx context.Context, src Source, bus BusConfig, log logrus.FieldLogger) (*Session, error) {
	log.Info("Loading waveforms")

	sclA, sdaA, err := loadAnalog(ctx, src)
	if err != nil {
		return nil, err
	}

	log.Infof("%d samples at %.3f MHz", sclA.Len(), sclA.SampleRate()/1e6)

	lo, hi := bus.Thresholds()
	log.Infof("Resampling as digital waveforms. V_hi = %.3f V; V_lo = %.3f V", hi, lo)

	s := &Session{Source: src, Bus: bus}

	start := time.Now()
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.SCL, err = digital.New("SCL", sclA, lo, hi)
		return err
	})
	g.Go(func() (err error) {
		s.SDA, err = digital.New("SDA", sdaA, lo, hi)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.WithField("elapsed", time.Since(start)).Infof("Found %d transitions on SCL", s.SCL.Len())
	log.Infof("Found %d transitions on SDA", s.SDA.Len())

	d, err := i2c.NewDecoder(s.SCL, s.SDA)
	if err != nil {
		return nil, err
	}
	d.Log = log.WithField("component", "decoder")

	if s.Transactions, err = d.Decode(0); err != nil {
		return nil, err
	}
	log.Infof("Found %d I2C transactions", s.Transactions.Len())

	return s, nil
}
