package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/bemasher/i2ctrace/digital"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Bus.Voltage != 5 || cfg.Bus.ThresholdLow != 30 || cfg.Bus.ThresholdHigh != 70 {
		t.Fatalf("Unexpected bus defaults: %+v\n", cfg.Bus)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("Unexpected log defaults: %+v\n", cfg.Log)
	}
	if cfg.Output.Format != "plain" || cfg.Filter.Direction != "any" || len(cfg.Filter.Addresses) != 0 {
		t.Fatalf("Unexpected defaults: %+v\n", cfg)
	}

	lo, hi := cfg.Bus.Thresholds()
	if lo != 1.5 || hi != 3.5 {
		t.Fatalf("Expected thresholds 1.5V and 3.5V got %g and %g\n", lo, hi)
	}
}

func TestLoadFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "i2ctrace.yaml")
	data := []byte(`bus:
  voltage: 3.3
  threshold_low: 25
filter:
  addresses: ["0x50", "1d"]
  direction: read
`)
	if err := os.WriteFile(filename, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New(), filename)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Bus.Voltage != 3.3 || cfg.Bus.ThresholdLow != 25 || cfg.Bus.ThresholdHigh != 70 {
		t.Fatalf("Unexpected bus config: %+v\n", cfg.Bus)
	}
	if len(cfg.Filter.Addresses) != 2 || cfg.Filter.Addresses[0] != 0x50 || cfg.Filter.Addresses[1] != 0x1D {
		t.Fatalf("Unexpected addresses: %v\n", cfg.Filter.Addresses)
	}
	if cfg.Filter.Direction != "read" {
		t.Fatalf("Expected read direction got %q\n", cfg.Filter.Direction)
	}

	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("I2CTRACE_BUS_VOLTAGE", "1.8")
	t.Setenv("I2CTRACE_FILTER_ADDRESSES", "0x50,68")
	t.Setenv("I2CTRACE_OUTPUT_FORMAT", "JSON")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Bus.Voltage != 1.8 {
		t.Fatalf("Expected 1.8V got %g\n", cfg.Bus.Voltage)
	}
	if len(cfg.Filter.Addresses) != 2 || cfg.Filter.Addresses[1] != 0x68 {
		t.Fatalf("Unexpected addresses: %v\n", cfg.Filter.Addresses)
	}
	if cfg.Output.Format != "json" {
		t.Fatalf("Expected format to be normalized got %q\n", cfg.Output.Format)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Bus:    BusConfig{Voltage: 5, ThresholdLow: 30, ThresholdHigh: 70},
			Log:    LogConfig{Level: "info", Format: "text"},
			Output: OutputConfig{Format: "plain"},
			Filter: FilterConfig{Direction: "any"},
		}
	}

	cases := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero voltage", func(c *Config) { c.Bus.Voltage = 0 }},
		{"negative low", func(c *Config) { c.Bus.ThresholdLow = -1 }},
		{"low above high", func(c *Config) { c.Bus.ThresholdLow = 80 }},
		{"high at 100", func(c *Config) { c.Bus.ThresholdHigh = 100 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"output format", func(c *Config) { c.Output.Format = "xml" }},
		{"direction", func(c *Config) { c.Filter.Direction = "both" }},
	}

	valid := base()
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid config got %s\n", err)
	}

	for _, c := range cases {
		cfg := base()
		c.modify(&cfg)
		if err := cfg.Validate(); errors.Cause(err) != digital.ErrConfig {
			t.Errorf("%s: expected ErrConfig got %v\n", c.name, err)
		}
	}
}

func TestParseAddress(t *testing.T) {
	cases := []struct {
		s    string
		addr Address
		ok   bool
	}{
		{"50", 0x50, true},
		{"0x1D", 0x1D, true},
		{" 0X7f ", 0x7F, true},
		{"80", 0, false},
		{"zz", 0, false},
		{"", 0, false},
	}

	for _, c := range cases {
		addr, err := ParseAddress(c.s)
		if (err == nil) != c.ok || (c.ok && addr != c.addr) {
			t.Errorf("%q: expected 0x%02X ok=%v got 0x%02X %v\n", c.s, uint8(c.addr), c.ok, uint8(addr), err)
		}
	}
}
