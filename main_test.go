package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/bemasher/i2ctrace/digital"
	"github.com/bemasher/i2ctrace/gen"
	"github.com/bemasher/i2ctrace/i2c"
)

const script = "50W:00,10;50R:aa,bb!;68R!"

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, log bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&log)
	root.SetArgs(args)

	err = root.ExecuteContext(context.Background())
	return out.String(), log.String(), err
}

func generate(t *testing.T, extra ...string) (dir string) {
	t.Helper()

	dir = t.TempDir()
	args := append([]string{"generate", "--outdir", dir, "--log-level", "warn"}, extra...)
	if _, stderr, err := execute(t, append(args, script)...); err != nil {
		t.Fatalf("generate: %s\n%s\n", err, stderr)
	}
	return dir
}

func TestDecodePlain(t *testing.T) {
	dir := generate(t)

	out, stderr, err := execute(t, "decode", "--log-level", "warn",
		filepath.Join(dir, "scl.bin"), filepath.Join(dir, "sda.bin"))
	if err != nil {
		t.Fatalf("%s\n%s\n", err, stderr)
	}

	for _, expt := range []string{
		"Device 0x50: 1 writes, 1 reads",
		"Device 0x68: 0 writes, 1 reads",
		"50Wa: 00a 10a",
		"50Ra: AAa BBn",
		"68Rn: ",
	} {
		if !strings.Contains(out, expt) {
			t.Errorf("Expected %q in output:\n%s\n", expt, out)
		}
	}
}

func TestDecodeSummarySorted(t *testing.T) {
	dir := t.TempDir()
	if _, stderr, err := execute(t, "generate", "--outdir", dir, "--log-level", "warn", "68R!;1DW:00;50W:01"); err != nil {
		t.Fatalf("generate: %s\n%s\n", err, stderr)
	}

	out, stderr, err := execute(t, "decode", "--log-level", "warn",
		filepath.Join(dir, "scl.bin"), filepath.Join(dir, "sda.bin"))
	if err != nil {
		t.Fatalf("%s\n%s\n", err, stderr)
	}

	last := -1
	for _, expt := range []string{"Device 0x1D", "Device 0x50", "Device 0x68"} {
		idx := strings.Index(out, expt)
		if idx <= last {
			t.Fatalf("Expected %q after the previous device in output:\n%s\n", expt, out)
		}
		last = idx
	}
}

func TestDecodeJSON(t *testing.T) {
	dir := generate(t, "--compress", "xz")

	out, stderr, err := execute(t, "decode", "--log-level", "warn", "--format", "json", "--address", "50",
		filepath.Join(dir, "scl.bin.xz"), filepath.Join(dir, "sda.bin.xz"))
	if err != nil {
		t.Fatalf("%s\n%s\n", err, stderr)
	}

	dec := json.NewDecoder(strings.NewReader(out))
	var records []i2c.TransactionRecord
	for dec.More() {
		var r i2c.TransactionRecord
		if err := dec.Decode(&r); err != nil {
			t.Fatal(err)
		}
		records = append(records, r)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 transactions to 0x50 got %d:\n%s\n", len(records), out)
	}
	if r := records[1]; r.Address == nil || *r.Address.Value != 0x50 || !*r.Address.Read || len(r.Data) != 2 {
		t.Fatalf("Unexpected read record: %s\n", out)
	}
}

func TestDecodeCSV(t *testing.T) {
	dir := generate(t, "--csv")

	out, stderr, err := execute(t, "decode", "--log-level", "warn",
		"--filetype", FileTypeCSV, "--format", "csv", "--direction", "write",
		filepath.Join(dir, "capture.csv"), "0", "1")
	if err != nil {
		t.Fatalf("%s\n%s\n", err, stderr)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header and one write got %d lines:\n%s\n", len(lines), out)
	}
	if lines[0] != strings.Join(i2c.Header(), ",") {
		t.Fatalf("Unexpected header %q\n", lines[0])
	}
	if !strings.Contains(lines[1], "0x50,W,true,00a 10a,true") {
		t.Fatalf("Unexpected record %q\n", lines[1])
	}
}

func TestDecodeErrors(t *testing.T) {
	dir := generate(t)
	scl, sda := filepath.Join(dir, "scl.bin"), filepath.Join(dir, "sda.bin")

	cases := []struct {
		name string
		args []string
	}{
		{"thresholds", []string{"decode", "--threshold-low", "80", scl, sda}},
		{"filetype", []string{"decode", "--filetype", "wav", scl, sda}},
		{"csv columns", []string{"decode", "--filetype", FileTypeCSV, scl, "x", "1"}},
		{"format", []string{"decode", "--format", "xml", scl, sda}},
	}

	for _, c := range cases {
		_, _, err := execute(t, c.args...)
		if errors.Cause(err) != digital.ErrConfig {
			t.Errorf("%s: expected ErrConfig got %v\n", c.name, err)
		}
	}

	if _, _, err := execute(t, "decode", scl, filepath.Join(dir, "missing.bin")); err == nil {
		t.Error("Expected error for missing capture")
	}
}

func TestReport(t *testing.T) {
	dir := generate(t)
	outdir := filepath.Join(t.TempDir(), "report")

	_, stderr, err := execute(t, "report", "--outdir", outdir,
		filepath.Join(dir, "scl.bin"), filepath.Join(dir, "sda.bin"))
	if err != nil {
		t.Fatalf("%s\n%s\n", err, stderr)
	}
	if !strings.Contains(stderr, "Found 3 I2C transactions") {
		t.Errorf("Expected decode milestone in log:\n%s\n", stderr)
	}

	buf, err := os.ReadFile(filepath.Join(outdir, ReportFilename))
	if err != nil {
		t.Fatal(err)
	}

	var rep Report
	if err := json.Unmarshal(buf, &rep); err != nil {
		t.Fatal(err)
	}

	if rep.Bus.Voltage != 5 || rep.Bus.ThresholdHi != 3.5 || len(rep.Bus.Addresses) != 2 {
		t.Fatalf("Unexpected bus section: %+v\n", rep.Bus)
	}
	if math.Abs(rep.Info.SampleRate-gen.NewConfig().SampleRate) > 1 || rep.Info.Samples == 0 {
		t.Fatalf("Unexpected info section: %+v\n", rep.Info)
	}
	if len(rep.Transactions) != 3 || len(rep.BitStats) != 2 || len(rep.Crosstalk) != 4 {
		t.Fatalf("Unexpected section lengths: %d transactions, %d bitstats, %d crosstalk\n",
			len(rep.Transactions), len(rep.BitStats), len(rep.Crosstalk))
	}

	bs := rep.BitStats[0]
	if bs.Address != 0x50 || bs.Read == nil || bs.Write == nil {
		t.Fatalf("Unexpected bit stats: %+v\n", bs)
	}
	if bs.Read.Info.Low == nil || bs.Read.Info.High == nil {
		t.Fatalf("Expected both levels in eye info: %+v\n", bs.Read.Info)
	}

	for _, key := range []string{"scl", "sda"} {
		tr, ok := rep.TransitionTimes[key]
		if !ok || tr.Rise.Len == 0 || tr.Fall.Len == 0 || len(tr.Devices) != 2 {
			t.Fatalf("Unexpected %s transition times: %+v\n", key, tr)
		}
	}

	charts := []string{
		bs.Read.Filename, bs.Write.Filename,
		rep.Crosstalk[0].Filename,
		rep.TransitionTimes["scl"].FilenameRise,
		rep.TransitionTimes["sda"].FilenameFall,
	}
	for _, name := range charts {
		if name == "" {
			t.Fatal("Expected chart filename")
		}
		if _, err := os.Stat(filepath.Join(outdir, name)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPlainEncoder(t *testing.T) {
	var buf bytes.Buffer
	pe := &PlainEncoder{w: &buf}

	if err := pe.Encode(&i2c.Transaction{}); err != nil {
		t.Fatal(err)
	}
	if expt := "     0 ---- ? ---- -> ---- ? ---- [addr?]: \n"; buf.String() != expt {
		t.Fatalf("Expected %q got %q\n", expt, buf.String())
	}
}

func TestFilterChain(t *testing.T) {
	if fc := NewFilterChain(FilterConfig{Direction: "any"}); len(fc) != 0 {
		t.Fatalf("Expected empty chain got %d filters\n", len(fc))
	}

	fc := NewFilterChain(FilterConfig{Addresses: []Address{0x50}, Direction: "read", Complete: true})
	if len(fc) != 3 {
		t.Fatalf("Expected 3 filters got %d\n", len(fc))
	}
}

func TestAddressList(t *testing.T) {
	var l AddressList
	if err := l.Set("50,0x1d"); err != nil {
		t.Fatal(err)
	}
	if l.String() != "0x50,0x1D" {
		t.Fatalf("Unexpected list %q\n", l.String())
	}
	if err := l.Set("100"); err == nil {
		t.Fatal("Expected error for 8-bit address")
	}
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource(FileTypeCSV, []string{"capture.csv", "2", "0"})
	if err != nil {
		t.Fatal(err)
	}
	if scl, sda := src.Names(); scl != "capture.csv:2" || sda != "capture.csv:0" {
		t.Fatalf("Unexpected names %q %q\n", scl, sda)
	}

	if _, err := ParseSource(FileTypeBinary, []string{"scl.bin"}); errors.Cause(err) != digital.ErrConfig {
		t.Fatalf("Expected ErrConfig got %v\n", err)
	}
}
