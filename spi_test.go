package qspi

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"
)

// csPin records every chip select level driven.
type csPin struct {
	gpiotest.Pin
	levels []gpio.Level
}

func (p *csPin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return p.Pin.Out(l)
}

func newPlayback(t *testing.T, ops ...conntest.IO) (*SPITransport, *csPin, *spitest.Playback) {
	t.Helper()
	pb := &spitest.Playback{Playback: conntest.Playback{Ops: ops, DontPanic: true}}
	conn, err := pb.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		t.Fatal(err)
	}
	cs := &csPin{Pin: gpiotest.Pin{N: "CS", L: gpio.High}}
	return NewSPITransport(conn, cs), cs, pb
}

func TestSPIHeader(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{"instruction", instruction(CmdWriteEnable), []byte{0x06}},
		{"24-bit", encoder{false, Single}.read(0x123456, 4), []byte{0x03, 0x12, 0x34, 0x56}},
		{"32-bit", encoder{true, Single}.read(0x1234567, 4), []byte{0x13, 0x01, 0x23, 0x45, 0x67}},
		{"dummy", encoder{true, Single}.fastRead(), []byte{0x0C, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := header(&tt.cmd); !bytes.Equal(got, tt.want) {
				t.Errorf("header() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestSPITransportRead(t *testing.T) {
	s, cs, pb := newPlayback(t,
		conntest.IO{W: []byte{0x13, 0x01, 0x00, 0x00, 0x10}},
		conntest.IO{W: make([]byte, 4), R: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
	)
	cmd := encoder{true, Single}.read(0x1000010, 4)
	if err := s.Command(&cmd); err != nil {
		t.Fatal(err)
	}
	buf := []byte{1, 2, 3, 4}
	if err := s.Receive(buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("read % X", buf)
	}
	if want := []gpio.Level{gpio.Low, gpio.High}; !slices.Equal(cs.levels, want) {
		t.Errorf("chip select %v, want %v", cs.levels, want)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestSPITransportProgram(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	s, cs, pb := newPlayback(t,
		conntest.IO{W: []byte{0x06}},
		conntest.IO{W: []byte{0x12, 0x00, 0x00, 0x01, 0x00}},
		conntest.IO{W: data},
	)
	we := instruction(CmdWriteEnable)
	if err := s.Command(&we); err != nil {
		t.Fatal(err)
	}
	pp := encoder{true, Single}.pageProgram(0x100, len(data))
	if err := s.Command(&pp); err != nil {
		t.Fatal(err)
	}
	if err := s.Transmit(data); err != nil {
		t.Fatal(err)
	}
	want := []gpio.Level{gpio.Low, gpio.High, gpio.Low, gpio.High}
	if !slices.Equal(cs.levels, want) {
		t.Errorf("chip select %v, want %v", cs.levels, want)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestSPITransportRejectsQuad(t *testing.T) {
	s, cs, _ := newPlayback(t)
	cmd := encoder{true, Quad}.read(0, 16)
	if err := s.Command(&cmd); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Command() = %v, want ErrNotSupported", err)
	}
	if len(cs.levels) != 0 {
		t.Errorf("chip select driven: %v", cs.levels)
	}
}

func TestSPITransportDataMismatch(t *testing.T) {
	s, _, _ := newPlayback(t, conntest.IO{W: []byte{0x9F}})
	cmd := registerRead(CmdReadJEDECID, 3)
	if err := s.Command(&cmd); err != nil {
		t.Fatal(err)
	}
	if err := s.Transmit([]byte{0}); err == nil {
		t.Error("Transmit() after a read command succeeded")
	}
	if err := s.Receive(make([]byte, 3)); err == nil {
		t.Error("Receive() without a pending command succeeded")
	}
}

func TestSPITransportFlash(t *testing.T) {
	s, _, pb := newPlayback(t,
		conntest.IO{W: []byte{0x9F}},
		conntest.IO{W: make([]byte, 3), R: []byte{0xEF, 0x40, 0x19}},
	)
	cfg := DefaultConfig()
	cfg.DataLines = Single
	f, err := New(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	id, name, err := f.ReadID()
	if err != nil {
		t.Fatal(err)
	}
	if id != [3]byte{0xEF, 0x40, 0x19} || name != "Winbond W25Q256JV 256Mb" {
		t.Errorf("ReadID() = %X, %q", id, name)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}
