package qspi

import "testing"

func TestEncoder(t *testing.T) {
	tests := []struct {
		name  string
		cmd   Command
		instr byte
		width AddressWidth
		lines Lines
		dummy int
	}{
		{"read 3-byte single", encoder{false, Single}.read(0x123456, 16), CmdRead, Address24, Single, 0},
		{"read 4-byte single", encoder{true, Single}.read(0x1234567, 16), CmdRead4, Address32, Single, 0},
		{"read 3-byte quad", encoder{false, Quad}.read(0x123456, 16), CmdQuadOutRead, Address24, Quad, 8},
		{"read 4-byte quad", encoder{true, Quad}.read(0x1234567, 16), CmdQuadOutRead4, Address32, Quad, 8},
		{"fast read 4-byte single", encoder{true, Single}.fastRead(), CmdFastRead4, Address32, Single, 8},
		{"fast read 4-byte quad", encoder{true, Quad}.fastRead(), CmdQuadOutRead4, Address32, Quad, 8},
		{"program 3-byte single", encoder{false, Single}.pageProgram(0x100, 256), CmdPageProgram, Address24, Single, 0},
		{"program 4-byte single", encoder{true, Single}.pageProgram(0x100, 256), CmdPageProgram4, Address32, Single, 0},
		{"program 4-byte quad", encoder{true, Quad}.pageProgram(0x100, 256), CmdQuadPageProgram4, Address32, Quad, 0},
		{"sector erase 3-byte", encoder{false, Quad}.sectorErase(0x10000), CmdSectorErase, Address24, 0, 0},
		{"sector erase 4-byte", encoder{true, Quad}.sectorErase(0x1010000), CmdSectorErase4, Address32, 0, 0},
		{"subsector erase 4-byte", encoder{true, Single}.subsectorErase(0x1001000), CmdSubsectorErase4, Address32, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.cmd
			if c.Instruction != tt.instr {
				t.Errorf("instruction = %#02x, want %#02x", c.Instruction, tt.instr)
			}
			if c.AddressWidth != tt.width {
				t.Errorf("address width = %s, want %s", c.AddressWidth, tt.width)
			}
			if c.DataLines != tt.lines {
				t.Errorf("data lines = %d, want %d", c.DataLines, tt.lines)
			}
			if c.DummyCycles != tt.dummy {
				t.Errorf("dummy cycles = %d, want %d", c.DummyCycles, tt.dummy)
			}
		})
	}
}

func TestEncoderKeepsLength(t *testing.T) {
	c := encoder{true, Quad}.read(0x1FFFF00, 0x100)
	if c.Address != 0x1FFFF00 || c.Length != 0x100 || c.Direction != DataIn {
		t.Errorf("read = %v", &c)
	}
	c = encoder{true, Quad}.pageProgram(0x1FFFF00, 0x80)
	if c.Address != 0x1FFFF00 || c.Length != 0x80 || c.Direction != DataOut {
		t.Errorf("program = %v", &c)
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{instruction(CmdWriteEnable), "0x06"},
		{registerRead(CmdReadStatusRegister1, 1), "0x05 data=in/x1/1"},
		{encoder{true, Single}.read(0x1000000, 16), "0x13 addr=0x1000000/32bit data=in/x1/16"},
		{encoder{true, Quad}.sectorErase(0x20000), "0xdc addr=0x20000/32bit"},
		{encoder{false, Quad}.read(0x10, 4), "0x6b addr=0x10/24bit dummy=8 data=in/x4/4"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestAddressWidthBytes(t *testing.T) {
	for w, want := range map[AddressWidth]int{AddressNone: 0, Address24: 3, Address32: 4} {
		if got := w.Bytes(); got != want {
			t.Errorf("%s.Bytes() = %d, want %d", w, got, want)
		}
	}
}
