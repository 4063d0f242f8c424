package capture

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bemasher/i2ctrace/waveform"
)

// ReadCSV decodes a Saleae analog CSV export: a header row, then rows of a
// time column followed by one voltage column per channel. The time base is
// taken from the first two rows. Rows with fewer than two fields are skipped.
func ReadCSV(r io.Reader) ([]*waveform.Analog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Wrap(waveform.ErrEmptyData, "no header row")
	}
	if err != nil {
		return nil, errors.Wrapf(waveform.ErrFormat, "reading header: %s", err)
	}

	channels := len(header) - 1
	if channels < 1 {
		return nil, errors.Wrapf(waveform.ErrFormat, "header %q has no data columns", strings.Join(header, ","))
	}

	var times []float64
	columns := make([][]float64, channels)

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(waveform.ErrFormat, "line %d: %s", line, err)
		}

		if len(row) < 2 {
			continue
		}
		if len(row)-1 > channels {
			return nil, errors.Wrapf(waveform.ErrFormat, "line %d: %d data columns, header has %d", line, len(row)-1, channels)
		}

		// Only the first two times are needed to fix the time base.
		if len(times) < 2 {
			t, err := parseFloat(row[0])
			if err != nil {
				return nil, errors.Wrapf(waveform.ErrFormat, "line %d: time %q", line, row[0])
			}
			times = append(times, t)
		}

		for idx := 0; idx < channels; idx++ {
			if idx+1 >= len(row) {
				return nil, errors.Wrapf(waveform.ErrFormat, "line %d: missing column %d", line, idx)
			}
			v, err := parseFloat(row[idx+1])
			if err != nil {
				return nil, errors.Wrapf(waveform.ErrFormat, "line %d: value %q", line, row[idx+1])
			}
			columns[idx] = append(columns[idx], v)
		}
	}

	if len(times) < 2 {
		return nil, errors.Wrap(waveform.ErrEmptyData, "fewer than two sample rows")
	}

	offset, interval := times[0], times[1]-times[0]

	waves := make([]*waveform.Analog, channels)
	for idx, samples := range columns {
		a, err := waveform.New(samples, offset, interval)
		if err != nil {
			return nil, errors.Wrapf(err, "column %d", idx)
		}
		waves[idx] = a
	}

	return waves, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// OpenCSV reads a possibly compressed CSV export.
func OpenCSV(filename string) ([]*waveform.Analog, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, _, err := Decompress(f)
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}

	waves, err := ReadCSV(r)
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}
	return waves, nil
}

// WriteCSV writes channels sharing one time base as a CSV export.
func WriteCSV(w io.Writer, names []string, waves ...*waveform.Analog) error {
	if len(waves) == 0 {
		return errors.Wrap(waveform.ErrEmptyData, "no channels")
	}
	for _, a := range waves[1:] {
		if a.Len() != waves[0].Len() {
			return errors.Wrapf(waveform.ErrFormat, "channel lengths differ: %d and %d", waves[0].Len(), a.Len())
		}
	}

	cw := csv.NewWriter(w)

	header := append([]string{"Time [s]"}, names...)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(waves)+1)
	for idx := 0; idx < waves[0].Len(); idx++ {
		row[0] = strconv.FormatFloat(waves[0].TimeAt(float64(idx)), 'g', -1, 64)
		for ch, a := range waves {
			row[ch+1] = strconv.FormatFloat(a.Sample(idx), 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
