package qspi

import (
	"fmt"
	"log/slog"
)

// Flash instructions:
//   - [W25Q256JV|8.1.2 Instruction Set Table 1 (Standard/Dual/Quad SPI)]
//   - [W25Q256JV|8.1.3 Instruction Set Table 2 (4-Byte Address Instructions)]
const (
	CmdWriteEnable          = 0x06
	CmdWriteDisable         = 0x04
	CmdReadStatusRegister1  = 0x05
	CmdReadStatusRegister2  = 0x35
	CmdWriteStatusRegister1 = 0x01
	CmdWriteStatusRegister2 = 0x31
	CmdResetEnable          = 0x66
	CmdResetMemory          = 0x99
	CmdEnter4ByteAddress    = 0xB7
	CmdExit4ByteAddress     = 0xE9
	CmdReadJEDECID          = 0x9F
	CmdPowerDown            = 0xB9
	CmdReleasePowerDown     = 0xAB
	CmdChipErase            = 0xC7

	CmdRead             = 0x03
	CmdRead4            = 0x13
	CmdFastRead         = 0x0B
	CmdFastRead4        = 0x0C
	CmdQuadOutRead      = 0x6B
	CmdQuadOutRead4     = 0x6C
	CmdPageProgram      = 0x02
	CmdPageProgram4     = 0x12
	CmdQuadPageProgram  = 0x32
	CmdQuadPageProgram4 = 0x34
	CmdSectorErase      = 0xD8 // 64KB block erase
	CmdSectorErase4     = 0xDC
	CmdSubsectorErase   = 0x20 // 4KB sector erase
	CmdSubsectorErase4  = 0x21
)

// Dummy cycles per instruction [W25Q256JV|8.2.9 Fast Read, 8.2.11 Fast Read Quad Output].
const (
	dummyCyclesFastRead = 8
	dummyCyclesQuadRead = 8
)

// AddressWidth is the size of the address phase of a command frame.
type AddressWidth uint8

const (
	AddressNone AddressWidth = iota
	Address24
	Address32
)

// Bytes returns the number of address bytes on the wire.
func (w AddressWidth) Bytes() int {
	switch w {
	case Address24:
		return 3
	case Address32:
		return 4
	}
	return 0
}

func (w AddressWidth) String() string {
	switch w {
	case Address24:
		return "24bit"
	case Address32:
		return "32bit"
	}
	return "none"
}

// Direction of the data phase.
type Direction uint8

const (
	DataNone Direction = iota
	DataIn
	DataOut
)

func (d Direction) String() string {
	switch d {
	case DataIn:
		return "in"
	case DataOut:
		return "out"
	}
	return "none"
}

// Lines is the bus width of the data phase.
type Lines uint8

const (
	Single Lines = 1
	Quad   Lines = 4
)

// Command describes one bus command frame. The instruction and address
// phases are always sent on a single line.
type Command struct {
	Instruction  byte
	AddressWidth AddressWidth
	Address      uint32
	Direction    Direction
	DataLines    Lines
	DummyCycles  int
	Length       int
}

func (c *Command) String() string {
	s := fmt.Sprintf("%#02x", c.Instruction)
	if c.AddressWidth != AddressNone {
		s += fmt.Sprintf(" addr=%#x/%s", c.Address, c.AddressWidth)
	}
	if c.DummyCycles > 0 {
		s += fmt.Sprintf(" dummy=%d", c.DummyCycles)
	}
	if c.Direction != DataNone {
		s += fmt.Sprintf(" data=%s/x%d/%d", c.Direction, c.DataLines, c.Length)
	}
	return s
}

// LogValue implements slog.LogValuer.
func (c *Command) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("instr", fmt.Sprintf("%#02x", c.Instruction))}
	if c.AddressWidth != AddressNone {
		attrs = append(attrs, slog.String("addr", fmt.Sprintf("%#x", c.Address)), slog.Int("abytes", c.AddressWidth.Bytes()))
	}
	if c.Direction != DataNone {
		attrs = append(attrs, slog.String("dir", c.Direction.String()), slog.Int("lines", int(c.DataLines)), slog.Int("len", c.Length))
	}
	return slog.GroupValue(attrs...)
}

// encoder selects instruction codes and address widths for the current
// addressing mode and configured data lines.
type encoder struct {
	addr4 bool
	lines Lines
}

func (e encoder) width() AddressWidth {
	if e.addr4 {
		return Address32
	}
	return Address24
}

// pick returns the 3-byte or 4-byte variant of an instruction.
func (e encoder) pick(cmd3, cmd4 byte) byte {
	if e.addr4 {
		return cmd4
	}
	return cmd3
}

func (e encoder) read(addr uint32, n int) Command {
	c := Command{
		Instruction:  e.pick(CmdRead, CmdRead4),
		AddressWidth: e.width(),
		Address:      addr,
		Direction:    DataIn,
		DataLines:    Single,
		Length:       n,
	}
	if e.lines == Quad {
		c.Instruction = e.pick(CmdQuadOutRead, CmdQuadOutRead4)
		c.DataLines = Quad
		c.DummyCycles = dummyCyclesQuadRead
	}
	return c
}

// fastRead is the read shape handed to the bus controller for memory-mapped
// mode. Length is left zero: the controller sizes each access.
func (e encoder) fastRead() Command {
	c := Command{
		Instruction:  e.pick(CmdFastRead, CmdFastRead4),
		AddressWidth: e.width(),
		Direction:    DataIn,
		DataLines:    Single,
		DummyCycles:  dummyCyclesFastRead,
	}
	if e.lines == Quad {
		c.Instruction = e.pick(CmdQuadOutRead, CmdQuadOutRead4)
		c.DataLines = Quad
		c.DummyCycles = dummyCyclesQuadRead
	}
	return c
}

func (e encoder) pageProgram(addr uint32, n int) Command {
	c := Command{
		Instruction:  e.pick(CmdPageProgram, CmdPageProgram4),
		AddressWidth: e.width(),
		Address:      addr,
		Direction:    DataOut,
		DataLines:    Single,
		Length:       n,
	}
	if e.lines == Quad {
		c.Instruction = e.pick(CmdQuadPageProgram, CmdQuadPageProgram4)
		c.DataLines = Quad
	}
	return c
}

func (e encoder) sectorErase(addr uint32) Command {
	return Command{
		Instruction:  e.pick(CmdSectorErase, CmdSectorErase4),
		AddressWidth: e.width(),
		Address:      addr,
	}
}

func (e encoder) subsectorErase(addr uint32) Command {
	return Command{
		Instruction:  e.pick(CmdSubsectorErase, CmdSubsectorErase4),
		AddressWidth: e.width(),
		Address:      addr,
	}
}

// instruction is a frame without address or data phase.
func instruction(code byte) Command {
	return Command{Instruction: code}
}

// registerRead reads n bytes on a single line after the instruction.
func registerRead(code byte, n int) Command {
	return Command{Instruction: code, Direction: DataIn, DataLines: Single, Length: n}
}

func registerWrite(code byte, n int) Command {
	return Command{Instruction: code, Direction: DataOut, DataLines: Single, Length: n}
}
