// Package flashtest provides an in-memory serial NOR flash for testing code
// built on package qspi.
package flashtest

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	qspi "github.com/amirparto1/QSPI-Loader"
)

// Chip emulates a W25Q256 behind a bus controller. It checks every frame
// against the addressing mode it is in, so a driver sending 24-bit
// addresses after entering 4-byte mode fails loudly.
//
// Programs and erases happen at once; BusyReads makes the following status
// reads report BUSY first.
type Chip struct {
	ID       [3]byte
	Geometry qspi.Geometry
	Mem      []byte

	SR1 qspi.StatusRegister
	SR2 qspi.StatusRegister2

	Addr4       bool
	Mapped      bool
	MappedCmd   *qspi.Command
	PoweredDown bool

	BusyReads         int  // status reads reporting BUSY after a program or erase
	StuckBusy         bool // BUSY never clears
	IgnoreWriteEnable bool // WEL never sets

	// Fault, when set, is called before each command; a non-nil result is
	// returned to the driver and the command is dropped.
	Fault func(cmd *qspi.Command) error

	Log []qspi.Command

	pending      *qspi.Command
	busyLeft     int
	resetEnabled bool
}

// New returns an erased W25Q256JV.
func New() *Chip {
	return NewWithGeometry(qspi.DefaultConfig().Geometry)
}

// NewWithGeometry returns an erased chip of the given geometry.
func NewWithGeometry(g qspi.Geometry) *Chip {
	return &Chip{
		ID:       [3]byte{0xEF, 0x40, 0x19},
		Geometry: g,
		Mem:      bytes.Repeat([]byte{0xFF}, int(g.FlashSize)),
	}
}

var errBusy = errors.New("flashtest: command while busy")

func (c *Chip) Command(cmd *qspi.Command) error {
	if c.Fault != nil {
		if err := c.Fault(cmd); err != nil {
			return err
		}
	}
	c.Log = append(c.Log, *cmd)

	switch {
	case c.Mapped:
		return errors.New("flashtest: command in memory-mapped mode")
	case c.pending != nil:
		return fmt.Errorf("flashtest: command %#02x before data phase of %#02x", cmd.Instruction, c.pending.Instruction)
	case c.PoweredDown && cmd.Instruction != qspi.CmdReleasePowerDown:
		return fmt.Errorf("flashtest: command %#02x while powered down", cmd.Instruction)
	}

	code := cmd.Instruction
	if code == qspi.CmdReadStatusRegister1 || code == qspi.CmdReadStatusRegister2 {
		return c.expect(cmd, qspi.AddressNone, qspi.DataIn, qspi.Single, 0)
	}
	if c.SR1.Busy() {
		return errBusy
	}
	if code != qspi.CmdResetMemory {
		c.resetEnabled = false
	}

	switch code {
	case qspi.CmdWriteEnable:
		if !c.IgnoreWriteEnable {
			c.SR1 |= 1 << 1
		}
		return c.expect(cmd, qspi.AddressNone, qspi.DataNone, 0, 0)
	case qspi.CmdWriteDisable:
		c.SR1 &^= 1 << 1
		return c.expect(cmd, qspi.AddressNone, qspi.DataNone, 0, 0)
	case qspi.CmdResetEnable:
		c.resetEnabled = true
		return c.expect(cmd, qspi.AddressNone, qspi.DataNone, 0, 0)
	case qspi.CmdResetMemory:
		if c.resetEnabled {
			c.resetEnabled = false
			c.Addr4 = false
			c.SR1 &^= 1 << 1
		}
		return c.expect(cmd, qspi.AddressNone, qspi.DataNone, 0, 0)
	case qspi.CmdEnter4ByteAddress:
		c.Addr4 = true
		return c.expect(cmd, qspi.AddressNone, qspi.DataNone, 0, 0)
	case qspi.CmdExit4ByteAddress:
		c.Addr4 = false
		return c.expect(cmd, qspi.AddressNone, qspi.DataNone, 0, 0)
	case qspi.CmdPowerDown:
		c.PoweredDown = true
		return c.expect(cmd, qspi.AddressNone, qspi.DataNone, 0, 0)
	case qspi.CmdReleasePowerDown:
		c.PoweredDown = false
		return c.expect(cmd, qspi.AddressNone, qspi.DataNone, 0, 0)
	case qspi.CmdReadJEDECID:
		return c.expect(cmd, qspi.AddressNone, qspi.DataIn, qspi.Single, 0)
	case qspi.CmdWriteStatusRegister1, qspi.CmdWriteStatusRegister2:
		return c.expect(cmd, qspi.AddressNone, qspi.DataOut, qspi.Single, 0)

	case qspi.CmdChipErase:
		if err := c.expect(cmd, qspi.AddressNone, qspi.DataNone, 0, 0); err != nil {
			return err
		}
		c.erase(0, c.Geometry.FlashSize)
		return nil
	case qspi.CmdSectorErase, qspi.CmdSectorErase4:
		if err := c.expectAddr(cmd, code == qspi.CmdSectorErase4, qspi.DataNone, 0, 0); err != nil {
			return err
		}
		c.erase(cmd.Address-cmd.Address%c.Geometry.EraseSectorSize, c.Geometry.EraseSectorSize)
		return nil
	case qspi.CmdSubsectorErase, qspi.CmdSubsectorErase4:
		if err := c.expectAddr(cmd, code == qspi.CmdSubsectorErase4, qspi.DataNone, 0, 0); err != nil {
			return err
		}
		c.erase(cmd.Address-cmd.Address%c.Geometry.SubsectorSize, c.Geometry.SubsectorSize)
		return nil

	case qspi.CmdRead, qspi.CmdRead4:
		return c.expectAddr(cmd, code == qspi.CmdRead4, qspi.DataIn, qspi.Single, 0)
	case qspi.CmdFastRead, qspi.CmdFastRead4:
		return c.expectAddr(cmd, code == qspi.CmdFastRead4, qspi.DataIn, qspi.Single, 8)
	case qspi.CmdQuadOutRead, qspi.CmdQuadOutRead4:
		return c.expectAddr(cmd, code == qspi.CmdQuadOutRead4, qspi.DataIn, qspi.Quad, 8)
	case qspi.CmdPageProgram, qspi.CmdPageProgram4:
		return c.expectAddr(cmd, code == qspi.CmdPageProgram4, qspi.DataOut, qspi.Single, 0)
	case qspi.CmdQuadPageProgram, qspi.CmdQuadPageProgram4:
		return c.expectAddr(cmd, code == qspi.CmdQuadPageProgram4, qspi.DataOut, qspi.Quad, 0)
	}
	return fmt.Errorf("flashtest: unknown instruction %#02x", code)
}

// expectAddr checks an addressed frame. 4-byte instructions always carry
// 32-bit addresses, the others follow the addressing mode.
func (c *Chip) expectAddr(cmd *qspi.Command, addr4 bool, dir qspi.Direction, lines qspi.Lines, dummy int) error {
	width := qspi.Address24
	if addr4 || c.Addr4 {
		width = qspi.Address32
	}
	if err := c.expect(cmd, width, dir, lines, dummy); err != nil {
		return err
	}
	if cmd.Address >= c.Geometry.FlashSize {
		return fmt.Errorf("flashtest: %v: address beyond %#x", cmd, c.Geometry.FlashSize)
	}
	return nil
}

// expect checks the frame shape and arms the data phase if there is one.
func (c *Chip) expect(cmd *qspi.Command, width qspi.AddressWidth, dir qspi.Direction, lines qspi.Lines, dummy int) error {
	if cmd.AddressWidth != width {
		return fmt.Errorf("flashtest: %v: want %s address", cmd, width)
	}
	if cmd.Direction != dir {
		return fmt.Errorf("flashtest: %v: want data %s", cmd, dir)
	}
	if cmd.DummyCycles != dummy {
		return fmt.Errorf("flashtest: %v: want %d dummy cycles", cmd, dummy)
	}
	if dir == qspi.DataNone {
		return nil
	}
	if cmd.DataLines != lines {
		return fmt.Errorf("flashtest: %v: want x%d data", cmd, lines)
	}
	if cmd.Length > 0 {
		p := *cmd
		c.pending = &p
	}
	return nil
}

func (c *Chip) writeLatched() bool {
	if c.SR1.WriteEnabled() {
		c.SR1 &^= 1 << 1
		return true
	}
	return false
}

func (c *Chip) startBusy() {
	c.SR1 |= 1 << 0
	c.busyLeft = c.BusyReads
}

func (c *Chip) erase(addr, n uint32) {
	if !c.writeLatched() {
		return
	}
	copy(c.Mem[addr:addr+n], bytes.Repeat([]byte{0xFF}, int(n)))
	c.startBusy()
}

func (c *Chip) data(dir qspi.Direction, n int) (*qspi.Command, error) {
	cmd := c.pending
	c.pending = nil
	if cmd == nil || cmd.Direction != dir {
		return nil, fmt.Errorf("flashtest: unexpected data %s phase", dir)
	}
	if n != cmd.Length {
		return nil, fmt.Errorf("flashtest: %v: data phase of %d bytes", cmd, n)
	}
	return cmd, nil
}

func (c *Chip) Receive(buf []byte) error {
	cmd, err := c.data(qspi.DataIn, len(buf))
	if err != nil {
		return err
	}
	switch cmd.Instruction {
	case qspi.CmdReadStatusRegister1:
		for i := range buf {
			buf[i] = byte(c.readStatus())
		}
	case qspi.CmdReadStatusRegister2:
		for i := range buf {
			buf[i] = byte(c.SR2)
		}
	case qspi.CmdReadJEDECID:
		copy(buf, c.ID[:])
	default:
		for i := range buf {
			buf[i] = c.Mem[(int(cmd.Address)+i)%len(c.Mem)]
		}
	}
	return nil
}

func (c *Chip) readStatus() qspi.StatusRegister {
	if !c.SR1.Busy() {
		return c.SR1
	}
	if c.busyLeft == 0 && !c.StuckBusy {
		c.SR1 &^= 1 << 0
		return c.SR1
	}
	if c.busyLeft > 0 {
		c.busyLeft--
	}
	return c.SR1
}

func (c *Chip) Transmit(data []byte) error {
	cmd, err := c.data(qspi.DataOut, len(data))
	if err != nil {
		return err
	}
	if !c.writeLatched() {
		return nil
	}
	switch cmd.Instruction {
	case qspi.CmdWriteStatusRegister1:
		// BUSY and WEL are read-only.
		c.SR1 = qspi.StatusRegister(data[0])&^0x03 | c.SR1&0x03
	case qspi.CmdWriteStatusRegister2:
		c.SR2 = qspi.StatusRegister2(data[0])
	default:
		page := c.Geometry.ProgPageSize
		base := cmd.Address - cmd.Address%page
		for i, b := range data {
			a := base + (cmd.Address+uint32(i)-base)%page
			c.Mem[a] &= b
		}
	}
	c.startBusy()
	return nil
}

// MemoryMap implements qspi.MemoryMapper.
func (c *Chip) MemoryMap(cmd *qspi.Command, cfg qspi.MemoryMapConfig) error {
	if c.pending != nil || c.SR1.Busy() {
		return errBusy
	}
	p := *cmd
	c.MappedCmd = &p
	c.Mapped = true
	return nil
}

// Abort implements qspi.Aborter.
func (c *Chip) Abort() error {
	c.Mapped = false
	c.MappedCmd = nil
	c.pending = nil
	return nil
}

// ReadMapped reads through the memory-mapped window.
func (c *Chip) ReadMapped(addr uint32, n int) ([]byte, error) {
	if !c.Mapped {
		return nil, errors.New("flashtest: not memory-mapped")
	}
	if uint64(addr)+uint64(n) > uint64(len(c.Mem)) {
		return nil, fmt.Errorf("flashtest: mapped read beyond %#x", len(c.Mem))
	}
	return bytes.Clone(c.Mem[addr : int(addr)+n]), nil
}

// Count returns how many logged commands used instr.
func (c *Chip) Count(instr byte) int {
	n := 0
	for _, cmd := range c.Log {
		if cmd.Instruction == instr {
			n++
		}
	}
	return n
}

// Instructions returns the logged instruction codes in order.
func (c *Chip) Instructions() []byte {
	codes := make([]byte, len(c.Log))
	for i, cmd := range c.Log {
		codes[i] = cmd.Instruction
	}
	return codes
}

// AutoPolling adds hardware status polling to a Chip.
type AutoPolling struct {
	*Chip
	Polls int // status samples taken by AutoPoll
}

// maxAutoPolls stands in for the timeout, which the emulator has no clock for.
const maxAutoPolls = 1 << 12

// AutoPoll implements qspi.AutoPoller. Only polls that stop on match are
// emulated.
func (a *AutoPolling) AutoPoll(cmd *qspi.Command, p *qspi.Poll, timeout time.Duration) error {
	if !p.AutoStop {
		return fmt.Errorf("%w: flashtest: continuous polling", qspi.ErrNotSupported)
	}
	status := make([]byte, cmd.Length)
	for range maxAutoPolls {
		if err := a.Command(cmd); err != nil {
			return err
		}
		if err := a.Receive(status); err != nil {
			return err
		}
		a.Polls++
		if p.Matches(status) {
			return nil
		}
	}
	return fmt.Errorf("%w: no match after %v", qspi.ErrTimeout, timeout)
}
