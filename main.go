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
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	buildTag   = "dev"     // v#.#.#
	buildDate  = "unknown" // date -u '+%Y-%m-%d'
	commitHash = "unknown" // git rev-parse HEAD
)

// App carries what every command needs once configuration is loaded.
type App struct {
	v   *viper.Viper
	cfg *Config
	log *logrus.Logger

	cfgFile string
}

func newLogger(cfg LogConfig, cmd *cobra.Command) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())

	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	}

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

const keyAnnotation = "i2ctrace_config_key"

// bind ties a flag to a configuration key so a flag given on the command line
// overrides the file and environment. Persistent flags are bound at once,
// command flags only when their command runs since several commands share
// keys.
func (app *App) bind(key string, cmd *cobra.Command, name string, persistent bool) {
	if persistent {
		if err := app.v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
		return
	}

	if err := cmd.Flags().SetAnnotation(name, keyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

func (app *App) bindCommand(cmd *cobra.Command) (err error) {
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if keys, ok := f.Annotations[keyAnnotation]; ok && err == nil {
			err = app.v.BindPFlag(keys[0], f)
		}
	})
	return err
}

func newRootCmd() *cobra.Command {
	app := &App{v: viper.New()}

	root := &cobra.Command{
		Use:           "i2ctrace",
		Short:         "Recover I2C transactions from analog SCL/SDA captures",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}

			if err := app.bindCommand(cmd); err != nil {
				return err
			}

			cfg, err := Load(app.v, app.cfgFile)
			if err != nil {
				return err
			}

			app.cfg = cfg
			app.log = newLogger(cfg.Log, cmd)
			app.log.WithFields(logrus.Fields{
				"voltage":        cfg.Bus.Voltage,
				"threshold_low":  cfg.Bus.ThresholdLow,
				"threshold_high": cfg.Bus.ThresholdHigh,
			}).Debug("configuration loaded")

			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&app.cfgFile, "config", "", "path to configuration file")
	pf.String("log-level", "", "log level: trace, debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")
	pf.Float64("vbus", 5, "nominal voltage of the I2C bus")
	pf.Float64("threshold-low", 30, "threshold for low level in percent of bus voltage")
	pf.Float64("threshold-high", 70, "threshold for high level in percent of bus voltage")

	app.bind("log.level", root, "log-level", true)
	app.bind("log.format", root, "log-format", true)
	app.bind("bus.voltage", root, "vbus", true)
	app.bind("bus.threshold_low", root, "threshold-low", true)
	app.bind("bus.threshold_high", root, "threshold-high", true)

	root.AddCommand(
		newDecodeCmd(app),
		newReportCmd(app),
		newGenerateCmd(app),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Build Tag: ", buildTag)
			fmt.Fprintln(cmd.OutOrStdout(), "Build Date:", buildDate)
			fmt.Fprintln(cmd.OutOrStdout(), "Commit:    ", commitHash)
		},
	}
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
