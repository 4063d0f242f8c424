package main

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/bemasher/i2ctrace/digital"
)

// Config is assembled from defaults, an optional config file, I2CTRACE_*
// environment variables and command line flags, in increasing precedence.
type Config struct {
	Bus    BusConfig    `mapstructure:"bus"`
	Log    LogConfig    `mapstructure:"log"`
	Output OutputConfig `mapstructure:"output"`
	Filter FilterConfig `mapstructure:"filter"`
}

// BusConfig gives thresholds in percent of the nominal bus voltage.
type BusConfig struct {
	Voltage       float64 `mapstructure:"voltage"`
	ThresholdLow  float64 `mapstructure:"threshold_low"`
	ThresholdHigh float64 `mapstructure:"threshold_high"`
}

// Thresholds returns the hysteresis band in volts.
func (b BusConfig) Thresholds() (lo, hi float64) {
	return b.Voltage * b.ThresholdLow / 100, b.Voltage * b.ThresholdHigh / 100
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
}

// FilterConfig selects transactions for output. Addresses are hex.
type FilterConfig struct {
	Addresses []Address `mapstructure:"addresses"`
	Direction string    `mapstructure:"direction"`
	Complete  bool      `mapstructure:"complete"`
}

// Address is a 7-bit device address written in hex, with or without a 0x
// prefix.
type Address uint8

func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 7)
	if err != nil {
		return 0, errors.Wrapf(digital.ErrConfig, "invalid address %q", s)
	}
	return Address(v), nil
}

// Load reads configuration from path, or config.yaml in the working
// directory when path is empty. Flags already bound to v take precedence.
func Load(v *viper.Viper, path string) (*Config, error) {
	v.SetEnvPrefix("I2CTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, errors.Wrap(digital.ErrConfig, err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return errors.Wrap(err, "read config")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bus.voltage", 5.0)
	v.SetDefault("bus.threshold_low", 30.0)
	v.SetDefault("bus.threshold_high", 70.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("output.format", "plain")
	v.SetDefault("output.dir", ".")

	v.SetDefault("filter.addresses", []string{})
	v.SetDefault("filter.direction", "any")
	v.SetDefault("filter.complete", false)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			stringToAddressHookFunc(),
		)
	}
}

func stringToAddressHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(Address(0)) {
			return data, nil
		}
		return ParseAddress(reflect.ValueOf(data).String())
	}
}

// Validate checks the bus description and output selections.
func (c *Config) Validate() error {
	if !(c.Bus.Voltage > 0) {
		return errors.Wrap(digital.ErrConfig, "bus voltage must be > 0 V")
	}
	if !(0 < c.Bus.ThresholdLow && c.Bus.ThresholdLow < c.Bus.ThresholdHigh) {
		return errors.Wrap(digital.ErrConfig, "low threshold must be between 0 % and high threshold")
	}
	if !(c.Bus.ThresholdHigh < 100) {
		return errors.Wrap(digital.ErrConfig, "high threshold must be between low threshold and 100 %")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(digital.ErrConfig, err.Error())
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Wrapf(digital.ErrConfig, "invalid log format %q", c.Log.Format)
	}

	c.Output.Format = strings.ToLower(c.Output.Format)
	switch c.Output.Format {
	case "plain", "csv", "json":
	default:
		return errors.Wrapf(digital.ErrConfig, "invalid output format %q", c.Output.Format)
	}

	switch c.Filter.Direction {
	case "any", "read", "write":
	default:
		return errors.Wrapf(digital.ErrConfig, "invalid direction %q", c.Filter.Direction)
	}

	return nil
}
