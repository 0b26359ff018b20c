package flashtest

import (
	"bytes"
	"errors"
	"testing"
	"time"

	qspi "github.com/amirparto1/QSPI-Loader"
)

func small() *Chip {
	return NewWithGeometry(qspi.NewGeometry(1<<20, 64<<10, 4<<10, 256))
}

func run(t *testing.T, c *Chip, cmd qspi.Command, data []byte) {
	t.Helper()
	if err := c.Command(&cmd); err != nil {
		t.Fatalf("Command(%v) = %v", &cmd, err)
	}
	var err error
	switch cmd.Direction {
	case qspi.DataIn:
		err = c.Receive(data)
	case qspi.DataOut:
		err = c.Transmit(data)
	}
	if err != nil {
		t.Fatalf("%v data phase: %v", &cmd, err)
	}
}

func program(addr uint32, data []byte) qspi.Command {
	return qspi.Command{
		Instruction:  qspi.CmdPageProgram,
		AddressWidth: qspi.Address24,
		Address:      addr,
		Direction:    qspi.DataOut,
		DataLines:    qspi.Single,
		Length:       len(data),
	}
}

func TestProgramNeedsWriteEnable(t *testing.T) {
	c := small()
	run(t, c, program(0, []byte{0x00}), []byte{0x00})
	if c.Mem[0] != 0xFF {
		t.Error("programmed without WEL")
	}
	run(t, c, qspi.Command{Instruction: qspi.CmdWriteEnable}, nil)
	if !c.SR1.WriteEnabled() {
		t.Fatal("WEL not set")
	}
	run(t, c, program(0, []byte{0x0F}), []byte{0x0F})
	if c.Mem[0] != 0x0F {
		t.Errorf("Mem[0] = %#x", c.Mem[0])
	}
	if c.SR1.WriteEnabled() {
		t.Error("WEL not cleared by program")
	}
}

func TestProgramWrapsInPage(t *testing.T) {
	c := small()
	data := bytes.Repeat([]byte{0x00}, 4)
	run(t, c, qspi.Command{Instruction: qspi.CmdWriteEnable}, nil)
	run(t, c, program(0x1FE, data), data)
	if c.Mem[0x1FE] != 0 || c.Mem[0x1FF] != 0 || c.Mem[0x100] != 0 || c.Mem[0x101] != 0 {
		t.Error("program did not wrap to page start")
	}
	if c.Mem[0x200] != 0xFF {
		t.Error("program crossed into next page")
	}
}

func TestBusyRejectsCommands(t *testing.T) {
	c := small()
	c.BusyReads = 1
	run(t, c, qspi.Command{Instruction: qspi.CmdWriteEnable}, nil)
	run(t, c, qspi.Command{Instruction: qspi.CmdSubsectorErase, AddressWidth: qspi.Address24, Address: 0x1000}, nil)

	if err := c.Command(&qspi.Command{Instruction: qspi.CmdWriteEnable}); err == nil {
		t.Error("command accepted while busy")
	}
	sr := make([]byte, 1)
	status := qspi.Command{Instruction: qspi.CmdReadStatusRegister1, Direction: qspi.DataIn, DataLines: qspi.Single, Length: 1}
	run(t, c, status, sr)
	if sr[0]&1 == 0 {
		t.Error("first status read not busy")
	}
	run(t, c, status, sr)
	if sr[0]&1 != 0 {
		t.Error("still busy")
	}
}

func TestAddressWidthChecked(t *testing.T) {
	c := small()
	c.Addr4 = true
	read := qspi.Command{Instruction: qspi.CmdRead, AddressWidth: qspi.Address24, Direction: qspi.DataIn, DataLines: qspi.Single, Length: 1}
	if err := c.Command(&read); err == nil {
		t.Error("24-bit address accepted in 4-byte mode")
	}
	read.AddressWidth = qspi.Address32
	run(t, c, read, make([]byte, 1))

	c.Addr4 = false
	read4 := qspi.Command{Instruction: qspi.CmdRead4, AddressWidth: qspi.Address24, Direction: qspi.DataIn, DataLines: qspi.Single, Length: 1}
	if err := c.Command(&read4); err == nil {
		t.Error("4-byte instruction accepted with a 24-bit address")
	}
}

func TestReset(t *testing.T) {
	c := small()
	c.Addr4 = true
	run(t, c, qspi.Command{Instruction: qspi.CmdResetMemory}, nil)
	if !c.Addr4 {
		t.Error("reset without reset enable")
	}
	run(t, c, qspi.Command{Instruction: qspi.CmdResetEnable}, nil)
	run(t, c, qspi.Command{Instruction: qspi.CmdReadStatusRegister1, Direction: qspi.DataIn, DataLines: qspi.Single, Length: 1}, make([]byte, 1))
	run(t, c, qspi.Command{Instruction: qspi.CmdResetMemory}, nil)
	if c.Addr4 {
		t.Error("reset ignored")
	}
}

func TestMappedRead(t *testing.T) {
	c := small()
	copy(c.Mem[0x10:], "mapped")
	if _, err := c.ReadMapped(0x10, 6); err == nil {
		t.Error("ReadMapped() before MemoryMap")
	}
	if err := c.MemoryMap(&qspi.Command{Instruction: qspi.CmdFastRead}, qspi.MemoryMapConfig{}); err != nil {
		t.Fatal(err)
	}
	b, err := c.ReadMapped(0x10, 6)
	if err != nil || string(b) != "mapped" {
		t.Errorf("ReadMapped() = %q, %v", b, err)
	}
	if err := c.Command(&qspi.Command{Instruction: qspi.CmdWriteEnable}); err == nil {
		t.Error("command accepted while mapped")
	}
	if err := c.Abort(); err != nil || c.Mapped {
		t.Errorf("Abort() = %v, mapped %v", err, c.Mapped)
	}
}

func TestAutoPollStop(t *testing.T) {
	a := &AutoPolling{Chip: small()}
	a.BusyReads = 2
	run(t, a.Chip, qspi.Command{Instruction: qspi.CmdWriteEnable}, nil)
	run(t, a.Chip, qspi.Command{Instruction: qspi.CmdSubsectorErase, AddressWidth: qspi.Address24}, nil)

	status := qspi.Command{Instruction: qspi.CmdReadStatusRegister1, Direction: qspi.DataIn, DataLines: qspi.Single, Length: 1}
	ready := qspi.Poll{Mask: 0x01, Match: 0, StatusBytes: 1}
	if err := a.AutoPoll(&status, &ready, time.Second); !errors.Is(err, qspi.ErrNotSupported) {
		t.Errorf("AutoPoll() without AutoStop = %v", err)
	}
	if a.Polls != 0 {
		t.Errorf("Polls = %d, want 0", a.Polls)
	}

	ready.AutoStop = true
	if err := a.AutoPoll(&status, &ready, time.Second); err != nil {
		t.Fatal(err)
	}
	if a.Polls != 3 {
		t.Errorf("Polls = %d, want 3", a.Polls)
	}
}
