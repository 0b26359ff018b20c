package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/alecthomas/kong"
	"periph.io/x/conn/v3/physic"

	qspi "github.com/amirparto1/QSPI-Loader"
)

func TestSizeUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want size
		ok   bool
	}{
		{"256", 256, true},
		{"0x1000000", 0x1000000, true},
		{"64K", 64 << 10, true},
		{"32M", 32 << 20, true},
		{"0x10K", 16 << 10, true},
		{"4096M", 0, false},
		{"-1", 0, false},
		{"page", 0, false},
	}
	for _, tt := range tests {
		var s size
		err := s.UnmarshalText([]byte(tt.in))
		if (err == nil) != tt.ok {
			t.Errorf("UnmarshalText(%q) = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && s != tt.want {
			t.Errorf("UnmarshalText(%q) = %v, want %v", tt.in, s, tt.want)
		}
	}
}

func TestFrequencyUnmarshal(t *testing.T) {
	var f frequency
	if err := f.UnmarshalText([]byte("15MHz")); err != nil {
		t.Fatal(err)
	}
	if physic.Frequency(f) != 15*physic.MegaHertz {
		t.Errorf("frequency = %v", f)
	}
	if err := f.UnmarshalText([]byte("fast")); err == nil {
		t.Error("accepted \"fast\"")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), 1},
		{qspi.ErrBusy, 3},
		{&qspi.TimeoutError{Op: "ready"}, 4},
		{fmt.Errorf("erase: %w", &qspi.TimeoutError{Op: "ready"}), 4},
		{qspi.ErrNotSupported, 5},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestEraseFlags(t *testing.T) {
	tests := []struct {
		args []string
		ok   bool
		end  optSize
	}{
		{[]string{"erase", "--addr", "0x100", "--end", "0x100"}, true, optSize{0x100, true}},
		{[]string{"erase", "--end", "0"}, true, optSize{0, true}},
		{[]string{"erase", "--size", "4K"}, true, optSize{}},
		{[]string{"erase", "--chip"}, true, optSize{}},
		{[]string{"erase", "--addr", "0x1000"}, false, optSize{}},
	}
	for _, tt := range tests {
		var c struct {
			Erase eraseCmd `cmd:""`
		}
		p, err := kong.New(&c)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := p.Parse(tt.args); err != nil {
			t.Fatalf("Parse(%q) = %v", tt.args, err)
		}
		if c.Erase.End != tt.end {
			t.Errorf("Parse(%q): end = %+v, want %+v", tt.args, c.Erase.End, tt.end)
		}
		if err := c.Erase.validate(); (err == nil) != tt.ok {
			t.Errorf("Parse(%q): validate() = %v, want ok=%v", tt.args, err, tt.ok)
		}
	}
}
