package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bemasher/i2ctrace/chart"
	"github.com/bemasher/i2ctrace/digital"
	"github.com/bemasher/i2ctrace/i2c"
	"github.com/bemasher/i2ctrace/stats"
)

const ReportFilename = "report.json"

type Report struct {
	Bus             BusReport                   `json:"bus"`
	Info            InfoReport                  `json:"info"`
	Transactions    []i2c.TransactionRecord     `json:"transactions"`
	BitStats        []BitStats                  `json:"bitstats"`
	Crosstalk       []CrosstalkReport           `json:"crosstalk"`
	TransitionTimes map[string]TransitionReport `json:"transitiontimes"`
}

type BusReport struct {
	Voltage     float64      `json:"voltage"`
	ThresholdHi float64      `json:"threshold_hi"`
	ThresholdLo float64      `json:"threshold_lo"`
	Addresses   []i2c.Device `json:"addresses"`
}

type InfoReport struct {
	SCLFile    string  `json:"scl_file"`
	SDAFile    string  `json:"sda_file"`
	Samples    int     `json:"samples"`
	SampleRate float64 `json:"samplerate"`
}

// BitStats describes the bits driven by a device (Read) and by the
// controller while talking to it (Write). Either is nil when no such bits
// were seen.
type BitStats struct {
	Address uint8      `json:"address"`
	Read    *BitReport `json:"read"`
	Write   *BitReport `json:"write"`
}

type BitReport struct {
	Waveforms int           `json:"waveforms"`
	Filename  string        `json:"filename,omitempty"`
	Info      stats.EyeInfo `json:"info"`
	Timing    stats.Timing  `json:"timing"`
}

type CrosstalkReport struct {
	Aggressor string        `json:"aggressor"`
	Victim    string        `json:"victim"`
	Rising    bool          `json:"edge"`
	Title     string        `json:"title"`
	Filename  string        `json:"filename,omitempty"`
	Info      stats.EyeInfo `json:"info"`
}

type TransitionReport struct {
	Signal       string               `json:"signal"`
	FilenameRise string               `json:"filename_rise,omitempty"`
	FilenameFall string               `json:"filename_fall,omitempty"`
	Rise         stats.Summary        `json:"rise"`
	Fall         stats.Summary        `json:"fall"`
	Devices      []stats.GroupSummary `json:"devices"`
}

// Reporter analyses a decoded session and writes charts into Dir. Charts are
// skipped when Charts is false.
type Reporter struct {
	Dir    string
	Charts bool
	Log    logrus.FieldLogger

	s    *Session
	vbus float64
}

func (r *Reporter) save(name string, render func() error) (string, error) {
	if !r.Charts {
		return "", nil
	}
	if err := render(); err != nil {
		return "", err
	}
	r.Log.Infof("Diagram saved as %q", name)
	return name, nil
}

func (r *Reporter) eye(title, name string, w *stats.Window) (string, error) {
	return r.save(name, func() error {
		p, err := chart.Eye(title, w, r.vbus)
		if err != nil {
			return err
		}
		return chart.Save(p, filepath.Join(r.Dir, name))
	})
}

func (r *Reporter) bits(address uint8, read bool, bits []i2c.Bit) (*BitReport, error) {
	if len(bits) == 0 {
		return nil, nil
	}

	w := stats.EyeWindow(bits, r.s.SDA)
	br := &BitReport{
		Waveforms: len(bits),
		Info:      stats.Levels(w.Voltages(), r.vbus),
		Timing:    stats.BitTiming(bits),
	}

	title := fmt.Sprintf("SDA for bits written to 0x%02X", address)
	name := fmt.Sprintf("bits_0x%02XW.png", address)
	if read {
		title = fmt.Sprintf("SDA bits read from 0x%02X", address)
		name = fmt.Sprintf("bits_0x%02XR.png", address)
	}

	var err error
	br.Filename, err = r.eye(title, name, w)
	return br, err
}

// BitStats computes the eye statistics of every device concurrently.
func (r *Reporter) BitStats(ctx context.Context) ([]BitStats, error) {
	devices := r.s.Transactions.Addresses()
	results := make([]BitStats, len(devices))

	g, _ := errgroup.WithContext(ctx)
	for idx, dev := range devices {
		idx, addr := idx, dev.Address
		g.Go(func() (err error) {
			bs := BitStats{Address: addr}
			if bs.Read, err = r.bits(addr, true, r.s.Transactions.TargetBits(addr)); err != nil {
				return err
			}
			if bs.Write, err = r.bits(addr, false, r.s.Transactions.ControllerBits(addr)); err != nil {
				return err
			}
			results[idx] = bs
			return nil
		})
	}

	return results, g.Wait()
}

// Crosstalk overlays each line around the transitions of the other.
func (r *Reporter) Crosstalk() ([]CrosstalkReport, error) {
	combinations := []struct {
		aggressor, victim *digital.Waveform
		rising            bool
	}{
		{r.s.SDA, r.s.SCL, true},
		{r.s.SDA, r.s.SCL, false},
		{r.s.SCL, r.s.SDA, true},
		{r.s.SCL, r.s.SDA, false},
	}

	reports := make([]CrosstalkReport, 0, len(combinations))
	for _, c := range combinations {
		p, slope, suffix := digital.Falling, "falling", "fall"
		if c.rising {
			p, slope, suffix = digital.Rising, "rising", "rise"
		}

		cr := CrosstalkReport{
			Aggressor: c.aggressor.Name,
			Victim:    c.victim.Name,
			Rising:    c.rising,
			Title:     fmt.Sprintf("Crosstalk of %s to %s on %s's %s edge", c.aggressor.Name, c.victim.Name, c.aggressor.Name, slope),
		}

		w := stats.Crosstalk(c.aggressor, c.victim, p)
		cr.Info = stats.Levels(w.Voltages(), r.vbus)

		name := fmt.Sprintf("xtalk_%s_%s_%s.png", c.aggressor.Name, c.victim.Name, suffix)
		var err error
		if cr.Filename, err = r.eye(cr.Title, strings.ToLower(name), w); err != nil {
			return nil, err
		}

		reports = append(reports, cr)
	}

	return reports, nil
}

// TransitionTimes summarises and charts rise and fall times of one line.
func (r *Reporter) TransitionTimes(scl bool) (TransitionReport, error) {
	tt := stats.TransitionTimes(r.s.Transactions, scl)

	tr := TransitionReport{
		Signal:  tt.Line,
		Rise:    stats.Summarize(tt.All.Rise),
		Fall:    stats.Summarize(tt.All.Fall),
		Devices: make([]stats.GroupSummary, 0, len(tt.Devices)),
	}
	for _, g := range tt.Devices {
		tr.Devices = append(tr.Devices, g.Summary())
	}

	r.Log.Infof("%s rise [ns]: %s", tt.Line, tr.Rise)
	r.Log.Infof("%s fall [ns]: %s", tt.Line, tr.Fall)

	histogram := func(rising bool, name string) (string, error) {
		return r.save(name, func() error {
			p, err := chart.Histogram(tt, rising)
			if err != nil {
				return err
			}
			return chart.Save(p, filepath.Join(r.Dir, name))
		})
	}

	var err error
	base := strings.ToLower("trtime_" + tt.Line)
	if tr.FilenameRise, err = histogram(true, base+"_rise.png"); err != nil {
		return tr, err
	}
	tr.FilenameFall, err = histogram(false, base+"_fall.png")
	return tr, err
}

// Build assembles the complete report.
func (r *Reporter) Build(ctx context.Context, s *Session) (*Report, error) {
	r.s = s
	r.vbus = s.Bus.Voltage

	lo, hi := s.Bus.Thresholds()
	sclName, sdaName := s.Source.Names()

	rep := &Report{
		Bus: BusReport{
			Voltage:     s.Bus.Voltage,
			ThresholdHi: hi,
			ThresholdLo: lo,
			Addresses:   s.Transactions.Addresses(),
		},
		Info: InfoReport{
			SCLFile:    sclName,
			SDAFile:    sdaName,
			Samples:    s.SCL.Analog.Len(),
			SampleRate: s.SCL.Analog.SampleRate(),
		},
		Transactions:    s.Transactions.Serialize(),
		TransitionTimes: make(map[string]TransitionReport, 2),
	}

	var err error
	if rep.BitStats, err = r.BitStats(ctx); err != nil {
		return nil, errors.Wrap(err, "bit statistics")
	}
	if rep.Crosstalk, err = r.Crosstalk(); err != nil {
		return nil, errors.Wrap(err, "crosstalk")
	}

	for _, scl := range []bool{true, false} {
		tr, err := r.TransitionTimes(scl)
		if err != nil {
			return nil, errors.Wrap(err, "transition times")
		}
		rep.TransitionTimes[strings.ToLower(tr.Signal)] = tr
	}

	return rep, nil
}

// WriteReport stores rep as indented JSON in dir.
func WriteReport(dir string, rep *Report) (string, error) {
	buf, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal report")
	}

	filename := filepath.Join(dir, ReportFilename)
	if err := os.WriteFile(filename, buf, 0644); err != nil {
		return "", errors.Wrap(err, "write report")
	}
	return filename, nil
}

func newReportCmd(app *App) *cobra.Command {
	var (
		fileType string
		charts   bool
	)

	cmd := &cobra.Command{
		Use:   "report [flags] <scl.bin> <sda.bin> | <capture.csv> <scl column> <sda column>",
		Short: "Write a signal quality report with eye diagrams and transition time histograms",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := ParseSource(fileType, args)
			if err != nil {
				return err
			}

			s, err := Open(cmd.Context(), src, app.cfg.Bus, app.log)
			if err != nil {
				return err
			}

			dir := app.cfg.Output.Dir
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.Wrap(err, "create output directory")
			}

			r := &Reporter{Dir: dir, Charts: charts, Log: app.log}
			rep, err := r.Build(cmd.Context(), s)
			if err != nil {
				return err
			}

			filename, err := WriteReport(dir, rep)
			if err != nil {
				return err
			}
			app.log.Infof("Report saved as %q", filename)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&fileType, "filetype", FileTypeBinary, "capture file type: saleae_bin or saleae_csv")
	flags.String("outdir", "", "directory for the report and diagrams")
	flags.BoolVar(&charts, "charts", true, "render PNG diagrams")

	app.bind("output.dir", cmd, "outdir", false)

	return cmd
}
