package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bemasher/i2ctrace/capture"
	"github.com/bemasher/i2ctrace/gen"
)

// Generated holds the files written by Generate.
type Generated struct {
	SCL, SDA string
	CSV      string
}

// Generate renders the transactions of script as analog captures in dir.
// Binary captures are written as <prefix>scl.bin and <prefix>sda.bin with
// ext appended (".gz", ".xz" or ""), a CSV capture as <prefix>capture.csv
// with SCL in data column 0 and SDA in column 1.
func Generate(cfg gen.Config, script string, restart, asCSV bool, dir, prefix, ext string) (files Generated, err error) {
	frames, err := gen.ParseScript(script)
	if err != nil {
		return files, err
	}
	if len(frames) == 0 {
		return files, errors.Wrap(gen.ErrScript, "no transactions")
	}

	bus := gen.NewBus(cfg)
	bus.Frames(frames, restart)

	scl, sda, err := bus.Analog()
	if err != nil {
		return files, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return files, errors.Wrap(err, "create output directory")
	}

	if asCSV {
		files.CSV = filepath.Join(dir, prefix+"capture.csv")

		f, err := os.Create(files.CSV)
		if err != nil {
			return files, err
		}
		if err := capture.WriteCSV(f, []string{"SCL", "SDA"}, scl, sda); err != nil {
			f.Close()
			return files, errors.Wrap(err, files.CSV)
		}
		return files, f.Close()
	}

	files.SCL = filepath.Join(dir, prefix+"scl.bin"+ext)
	files.SDA = filepath.Join(dir, prefix+"sda.bin"+ext)

	if err := capture.Create(files.SCL, scl); err != nil {
		return files, err
	}
	return files, capture.Create(files.SDA, sda)
}

func newGenerateCmd(app *App) *cobra.Command {
	var (
		cfg      = gen.NewConfig()
		restart  bool
		asCSV    bool
		prefix   string
		compress string
	)

	cmd := &cobra.Command{
		Use:   "generate [flags] <script>",
		Short: "Synthesize SCL and SDA captures from a transaction script",
		Long: `Synthesize SCL and SDA captures from a transaction script.

Transactions are separated by semicolons. Each is a hex address followed by R
or W and an optional colon and comma separated list of hex data bytes. A
trailing ! marks the address or a data byte not acknowledged:

	i2ctrace generate '50W:00,10;50R:aa,bb!'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Voltage = app.cfg.Bus.Voltage

			var ext string
			switch compress {
			case "", "none":
			case "gzip":
				ext = ".gz"
			case "xz":
				ext = ".xz"
			default:
				return errors.Errorf("unsupported compression %q", compress)
			}

			app.log.WithField("bus", cfg).Debug("generating")

			files, err := Generate(cfg, args[0], restart, asCSV, app.cfg.Output.Dir, prefix, ext)
			if err != nil {
				return err
			}

			if asCSV {
				app.log.Infof("Capture saved as %q", files.CSV)
			} else {
				app.log.Infof("Captures saved as %q and %q", files.SCL, files.SDA)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&cfg.SampleRate, "samplerate", cfg.SampleRate, "sample rate in Hz")
	flags.Float64Var(&cfg.ClockRate, "clock", cfg.ClockRate, "SCL frequency in Hz")
	flags.Float64Var(&cfg.RiseTime, "rise", cfg.RiseTime, "0 to vbus rise time in seconds")
	flags.Float64Var(&cfg.FallTime, "fall", cfg.FallTime, "vbus to 0 fall time in seconds")
	flags.Float64Var(&cfg.Noise, "noise", cfg.Noise, "peak amplitude of uniform noise added to each sample in volts")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "noise seed")
	flags.BoolVar(&restart, "restart", false, "join transactions with RESTART instead of STOP")
	flags.BoolVar(&asCSV, "csv", false, "write a single CSV capture instead of binary captures")
	flags.StringVar(&prefix, "prefix", "", "prefix for generated file names")
	flags.StringVar(&compress, "compress", "none", "compression of binary captures: none, gzip or xz")
	flags.String("outdir", "", "directory for generated captures")

	app.bind("output.dir", cmd, "outdir", false)

	return cmd
}
