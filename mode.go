package qspi

import (
	"fmt"
	"log/slog"
)

// Mode is the addressing state of the device.
type Mode uint8

const (
	Mode3Byte Mode = iota
	Mode4Byte
	// ModeMemoryMapped hands the bus to the controller. Every command fails
	// with ErrMemoryMapped until Init is called again.
	ModeMemoryMapped
)

func (m Mode) String() string {
	switch m {
	case Mode3Byte:
		return "3-byte"
	case Mode4Byte:
		return "4-byte"
	case ModeMemoryMapped:
		return "memory-mapped"
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// Mode returns the current addressing state.
func (f *Flash) Mode() Mode {
	switch {
	case f.mapped:
		return ModeMemoryMapped
	case f.addr4:
		return Mode4Byte
	}
	return Mode3Byte
}

func (f *Flash) encoder() encoder {
	return encoder{addr4: f.addr4, lines: f.cfg.DataLines}
}

// Init resets the device and switches it to 4-byte addressing. When the
// configuration asks for it, the QE bit is set before that. Init is the only
// way out of memory-mapped mode.
func (f *Flash) Init() error {
	start := f.clock.Now()
	if f.mapped {
		if a, ok := f.t.(Aborter); ok {
			if err := a.Abort(); err != nil {
				return &TransportError{Op: "abort", Err: err}
			}
		}
		f.mapped = false
		f.debug("init:left memory-mapped mode")
	}

	if err := f.resetMemory(); err != nil {
		f.logerr("init:reset", slog.Any("err", err))
		return fmt.Errorf("%w: reset: %w", ErrNotSupported, err)
	}
	if f.cfg.EnableQuad && f.cfg.DataLines == Quad {
		if err := f.EnableQuad(); err != nil {
			return fmt.Errorf("enable quad: %w", err)
		}
	}
	if err := f.Enter4ByteAddressMode(); err != nil {
		return err
	}
	f.info("init:done", slog.Duration("elapsed", f.clock.Since(start)))
	return nil
}

// resetMemory issues the reset-enable, reset pair. The device comes back in
// its power-on state, which uses 3-byte addresses.
func (f *Flash) resetMemory() error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	for _, code := range []byte{CmdResetEnable, CmdResetMemory} {
		cmd := instruction(code)
		if err := f.exec(&cmd); err != nil {
			return err
		}
		if err := f.waitReady(f.cfg.Timeouts.Default); err != nil {
			return err
		}
	}
	f.addr4 = false
	return nil
}

// Enter4ByteAddressMode makes every addressed command carry 32-bit
// addresses.
func (f *Flash) Enter4ByteAddressMode() error {
	return f.setAddressMode(CmdEnter4ByteAddress, true)
}

// Exit4ByteAddressMode returns to 24-bit addresses.
func (f *Flash) Exit4ByteAddressMode() error {
	return f.setAddressMode(CmdExit4ByteAddress, false)
}

func (f *Flash) setAddressMode(code byte, addr4 bool) error {
	cmd := instruction(code)
	if err := f.exec(&cmd); err != nil {
		return err
	}
	if err := f.waitReady(f.cfg.Timeouts.Default); err != nil {
		return err
	}
	f.addr4 = addr4
	f.debug("address mode", slog.String("mode", f.Mode().String()))
	return nil
}

// EnterMemoryMappedMode configures the transport to serve reads of the
// flash from the controller's address window. The Flash accepts no other
// command afterwards until Init.
func (f *Flash) EnterMemoryMappedMode() error {
	if err := f.usable(); err != nil {
		return err
	}
	mm, ok := f.t.(MemoryMapper)
	if !ok {
		return fmt.Errorf("%w: transport %T cannot memory-map", ErrNotSupported, f.t)
	}
	cmd := f.encoder().fastRead()
	if err := mm.MemoryMap(&cmd, MemoryMapConfig{}); err != nil {
		return &TransportError{Op: "memory map", Instruction: cmd.Instruction, Err: err}
	}
	f.mapped = true
	f.info("memory-mapped", slog.Any("cmd", &cmd))
	return nil
}
