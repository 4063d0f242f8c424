package csv

import (
	"bytes"
	"encoding/csv"
	"runtime"
	"strings"
	"testing"

	"golang.org/x/xerrors"
)

func TestRecorderNil(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := Encoder{w: csv.NewWriter(buf)}

	if err := enc.Encode(nil); err == nil {
		t.Fatalf("%+v\n", err)
	}
}

type Msg struct {
	fields []string
}

func (m Msg) Record() []string {
	return m.fields
}

func TestRecorder(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)

	if err := enc.Encode(Msg{[]string{"0x50", "W", "00a 10a"}}); err != nil {
		t.Fatalf("%+v\n", err)
	}

	if recv := buf.String(); recv != "0x50,W,00a 10a\n" {
		t.Fatalf("Unexpected output %q\n", recv)
	}
}

type NonRecorder struct{}

func TestNonRecorder(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := Encoder{w: csv.NewWriter(buf)}

	err := enc.Encode(NonRecorder{})

	var runtimeErr runtime.Error
	if !xerrors.As(err, &runtimeErr) {
		t.Fatalf("%+v\n", runtimeErr)
	}
}

func TestHeaderOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := NewHeaderEncoder(buf, []string{"address", "direction"})

	for _, dir := range []string{"W", "R"} {
		if err := enc.Encode(Msg{[]string{"0x1D", dir}}); err != nil {
			t.Fatalf("%+v\n", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	expt := []string{"address,direction", "0x1D,W", "0x1D,R"}
	if strings.Join(lines, "|") != strings.Join(expt, "|") {
		t.Fatalf("Expected %q got %q\n", expt, lines)
	}
}
