package qspi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/snksoft/crc"
)

// Flash drives a serial NOR flash chip through a Transport.
//
// A Flash is not safe for concurrent use. Every method runs to completion,
// polling the device until it is ready, before returning.
type Flash struct {
	t   Transport
	cfg Config

	clock        clockwork.Clock
	logger       *slog.Logger
	traceEnabled bool

	addr4  bool // 4-byte addressing active
	mapped bool // memory-mapped mode active
}

// New returns a Flash in 3-byte addressing mode. Call Init before use.
func New(t Transport, cfg Config) (*Flash, error) {
	if t == nil {
		return nil, fmt.Errorf("qspi: nil transport")
	}
	if err := cfg.Geometry.validate(); err != nil {
		return nil, err
	}
	if cfg.DataLines != Single && cfg.DataLines != Quad {
		return nil, fmt.Errorf("qspi: unsupported data lines x%d", cfg.DataLines)
	}
	f := &Flash{
		t:      t,
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
	if f.clock == nil {
		f.clock = clockwork.NewRealClock()
	}
	f.traceEnabled = f.logger != nil && f.logger.Handler().Enabled(context.Background(), levelTrace)
	return f, nil
}

// Geometry returns the size and granularity of the chip.
func (f *Flash) Geometry() Geometry {
	return f.cfg.Geometry
}

// Config returns the configuration the Flash was created with.
func (f *Flash) Config() Config {
	return f.cfg
}

func (f *Flash) usable() error {
	if f.mapped {
		return ErrMemoryMapped
	}
	return nil
}

// checkRange validates [addr, addr+n) against the chip size and the current
// addressing mode.
func (f *Flash) checkRange(addr uint32, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", ErrOutOfRange, n)
	}
	end := uint64(addr) + uint64(n)
	if end > uint64(f.cfg.Geometry.FlashSize) {
		return fmt.Errorf("%w: [%#x, %#x) beyond flash size %#x", ErrOutOfRange, addr, end, f.cfg.Geometry.FlashSize)
	}
	if !f.addr4 && end > 1<<24 {
		return fmt.Errorf("%w: [%#x, %#x) needs 4-byte addressing", ErrOutOfRange, addr, end)
	}
	return nil
}

func (f *Flash) exec(cmd *Command) error {
	if err := f.usable(); err != nil {
		return err
	}
	f.trace("cmd", slog.Any("cmd", cmd))
	if err := f.t.Command(cmd); err != nil {
		return &TransportError{Op: "command", Instruction: cmd.Instruction, Err: err}
	}
	return nil
}

func (f *Flash) receive(cmd *Command, buf []byte) error {
	if err := f.exec(cmd); err != nil {
		return err
	}
	if err := f.t.Receive(buf); err != nil {
		return &TransportError{Op: "receive", Instruction: cmd.Instruction, Err: err}
	}
	return nil
}

func (f *Flash) transmit(cmd *Command, data []byte) error {
	if err := f.exec(cmd); err != nil {
		return err
	}
	if err := f.t.Transmit(data); err != nil {
		return &TransportError{Op: "transmit", Instruction: cmd.Instruction, Err: err}
	}
	return nil
}

// Read reads len(p) bytes starting at addr.
func (f *Flash) Read(addr uint32, p []byte) error {
	if err := f.usable(); err != nil {
		return err
	}
	if err := f.checkRange(addr, len(p)); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	cmd := f.encoder().read(addr, len(p))
	return f.receive(&cmd, p)
}

// ReadAt implements io.ReaderAt.
func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	size := int64(f.cfg.Geometry.FlashSize)
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrOutOfRange, off)
	}
	if off >= size {
		return 0, io.EOF
	}
	n := int(min(int64(len(p)), size-off))
	if err := f.Read(uint32(off), p[:n]); err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Write programs data at addr, one page program per page touched. The range
// must have been erased beforehand. On error the range is left in an
// unspecified state.
func (f *Flash) Write(addr uint32, data []byte) error {
	if err := f.usable(); err != nil {
		return err
	}
	if err := f.checkRange(addr, len(data)); err != nil {
		return err
	}
	enc := f.encoder()
	for _, c := range pageChunks(addr, len(data), f.cfg.Geometry.ProgPageSize) {
		if err := f.writeEnable(); err != nil {
			return err
		}
		cmd := enc.pageProgram(c.addr, c.n)
		if err := f.transmit(&cmd, data[c.off:c.off+c.n]); err != nil {
			return err
		}
		if err := f.waitReady(f.cfg.Timeouts.PageProgram); err != nil {
			return err
		}
	}
	f.debug("write", slog.String("addr", fmt.Sprintf("%#x", addr)), slog.Int("len", len(data)))
	return nil
}

// WriteAt implements io.WriterAt.
func (f *Flash) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(f.cfg.Geometry.FlashSize) {
		return 0, fmt.Errorf("%w: offset %d", ErrOutOfRange, off)
	}
	if err := f.Write(uint32(off), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// eraseBlock runs one erase command between a write enable and a ready poll.
func (f *Flash) eraseBlock(cmd Command, timeout time.Duration) error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	if err := f.exec(&cmd); err != nil {
		return err
	}
	return f.waitReady(timeout)
}

// EraseSectorRange erases every sector from the one holding start up to
// end. start is rounded down to its sector; sectors are erased while
// end >= the current sector address, so a range ending exactly on a sector
// boundary also erases the sector beginning there.
func (f *Flash) EraseSectorRange(start, end uint32) error {
	if err := f.usable(); err != nil {
		return err
	}
	g := f.cfg.Geometry
	if start >= g.FlashSize || end >= g.FlashSize {
		return fmt.Errorf("%w: erase [%#x, %#x] beyond flash size %#x", ErrOutOfRange, start, end, g.FlashSize)
	}
	if err := f.checkRange(end, 1); err != nil {
		return err
	}
	enc := f.encoder()
	for _, addr := range sectorStarts(start, end, g.EraseSectorSize) {
		if err := f.eraseBlock(enc.sectorErase(addr), f.cfg.Timeouts.SectorErase); err != nil {
			return err
		}
		f.debug("erase sector", slog.String("addr", fmt.Sprintf("%#x", addr)))
	}
	return nil
}

// EraseSector erases the sector holding addr.
func (f *Flash) EraseSector(addr uint32) error {
	return f.EraseSectorRange(addr, alignDown(addr, f.cfg.Geometry.EraseSectorSize))
}

// EraseSubsector erases the subsector holding addr.
func (f *Flash) EraseSubsector(addr uint32) error {
	if err := f.usable(); err != nil {
		return err
	}
	if err := f.checkRange(addr, 1); err != nil {
		return err
	}
	addr = alignDown(addr, f.cfg.Geometry.SubsectorSize)
	return f.eraseBlock(f.encoder().subsectorErase(addr), f.cfg.Timeouts.SubsectorErase)
}

// Erase erases size bytes from addr, using sector erases where a whole
// sector is covered and subsector erases elsewhere. addr and size must be
// multiples of the subsector size.
func (f *Flash) Erase(addr, size uint32) error {
	if err := f.usable(); err != nil {
		return err
	}
	g := f.cfg.Geometry
	if addr%g.SubsectorSize != 0 || size%g.SubsectorSize != 0 {
		return fmt.Errorf("%w: [%#x, +%#x) not on %#x boundaries", ErrAlignment, addr, size, g.SubsectorSize)
	}
	if err := f.checkRange(addr, int(size)); err != nil {
		return err
	}
	enc := f.encoder()
	for remaining := size; remaining > 0; {
		if addr%g.EraseSectorSize == 0 && remaining >= g.EraseSectorSize {
			if err := f.eraseBlock(enc.sectorErase(addr), f.cfg.Timeouts.SectorErase); err != nil {
				return err
			}
			addr += g.EraseSectorSize
			remaining -= g.EraseSectorSize
			continue
		}
		if err := f.eraseBlock(enc.subsectorErase(addr), f.cfg.Timeouts.SubsectorErase); err != nil {
			return err
		}
		addr += g.SubsectorSize
		remaining -= g.SubsectorSize
	}
	return nil
}

// EraseChip erases the entire chip.
func (f *Flash) EraseChip() error {
	if err := f.usable(); err != nil {
		return err
	}
	f.info("erase chip", slog.Duration("timeout", f.cfg.Timeouts.ChipErase))
	return f.eraseBlock(instruction(CmdChipErase), f.cfg.Timeouts.ChipErase)
}

// ReadStatusRegister reads status register 1.
func (f *Flash) ReadStatusRegister() (StatusRegister, error) {
	var buf [1]byte
	cmd := registerRead(CmdReadStatusRegister1, 1)
	if err := f.receive(&cmd, buf[:]); err != nil {
		return 0, err
	}
	return StatusRegister(buf[0]), nil
}

// ReadStatusRegister2 reads status register 2.
func (f *Flash) ReadStatusRegister2() (StatusRegister2, error) {
	var buf [1]byte
	cmd := registerRead(CmdReadStatusRegister2, 1)
	if err := f.receive(&cmd, buf[:]); err != nil {
		return 0, err
	}
	return StatusRegister2(buf[0]), nil
}

// Status returns nil when the device is ready and ErrBusy while a program
// or erase is in progress.
func (f *Flash) Status() error {
	sr, err := f.ReadStatusRegister()
	if err != nil {
		return err
	}
	if sr.Busy() {
		return ErrBusy
	}
	return nil
}

// EnableQuad sets the QE bit, which turns the WP and HOLD pins into IO2 and
// IO3. Config.QuadEnable says which register holds it; chips without a known
// QE bit get ErrNotSupported.
func (f *Flash) EnableQuad() error {
	switch f.cfg.QuadEnable {
	case QuadEnableSR2Bit1:
		sr2, err := f.ReadStatusRegister2()
		if err != nil {
			return err
		}
		if sr2.QuadEnabled() {
			return nil
		}
		return f.writeStatus(CmdWriteStatusRegister2, byte(sr2|status2QuadEn))
	case QuadEnableSR1Bit6:
		sr, err := f.ReadStatusRegister()
		if err != nil {
			return err
		}
		if sr&status1QuadEn != 0 {
			return nil
		}
		return f.writeStatus(CmdWriteStatusRegister1, byte(sr&^(statusBusy|statusWriteLatch)|status1QuadEn))
	}
	return fmt.Errorf("%w: quad enable bit %v", ErrNotSupported, f.cfg.QuadEnable)
}

func (f *Flash) writeStatus(instr, v byte) error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	cmd := registerWrite(instr, 1)
	if err := f.transmit(&cmd, []byte{v}); err != nil {
		return err
	}
	return f.waitReady(f.cfg.Timeouts.Default)
}

// ReadID returns the JEDEC ID of the flash chip. It returns a non-empty name
// for known IDs.
func (f *Flash) ReadID() (id [3]byte, name string, err error) {
	cmd := registerRead(CmdReadJEDECID, len(id))
	if err = f.receive(&cmd, id[:]); err != nil {
		return
	}
	name, _ = FlashName(id)
	return id, name, nil
}

func (f *Flash) PowerUp() error {
	cmd := instruction(CmdReleasePowerDown)
	if err := f.exec(&cmd); err != nil {
		return err
	}
	f.clock.Sleep(f.cfg.Timeouts.PowerUp)
	return nil
}

func (f *Flash) PowerDown() error {
	cmd := instruction(CmdPowerDown)
	if err := f.exec(&cmd); err != nil {
		return err
	}
	f.clock.Sleep(f.cfg.Timeouts.PowerDown)
	return nil
}

// CRC-32/ISO-HDLC, the checksum of zlib and Ethernet.
var crcTable = crc.NewTable(crc.CRC32)

// checksumChunk bounds the read buffer of Checksum.
const checksumChunk = 64 << 10

// Checksum returns the CRC-32 of n bytes of flash starting at addr.
func (f *Flash) Checksum(addr uint32, n int) (uint32, error) {
	if err := f.usable(); err != nil {
		return 0, err
	}
	if err := f.checkRange(addr, n); err != nil {
		return 0, err
	}
	h := crc.NewHashWithTable(crcTable)
	buf := make([]byte, min(n, checksumChunk))
	for n > 0 {
		c := min(n, len(buf))
		if err := f.Read(addr, buf[:c]); err != nil {
			return 0, err
		}
		h.Update(buf[:c])
		addr += uint32(c)
		n -= c
	}
	return h.CRC32(), nil
}

// ChecksumOf returns the CRC-32 of data, comparable to Flash.Checksum.
func ChecksumOf(data []byte) uint32 {
	h := crc.NewHashWithTable(crcTable)
	h.Update(data)
	return h.CRC32()
}
