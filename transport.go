package qspi

import "time"

// Transport moves command frames to and from the flash device.
//
// Command starts a frame: instruction, address and dummy phases. When the
// command has a data phase, exactly one Transmit (DataOut) or Receive (DataIn)
// call with Length bytes follows and completes the frame. Implementations must
// not modify cmd.
type Transport interface {
	Command(cmd *Command) error
	Transmit(data []byte) error
	Receive(data []byte) error
}

// AutoPoller is implemented by transports whose bus controller can poll a
// status register in hardware. AutoPoll issues cmd repeatedly until the
// received status satisfies p or timeout elapses, in which case the returned
// error wraps ErrTimeout.
type AutoPoller interface {
	AutoPoll(cmd *Command, p *Poll, timeout time.Duration) error
}

// MemoryMapConfig configures the bus controller's memory-mapped mode.
type MemoryMapConfig struct {
	// TimeoutCounter releases chip select after TimeoutPeriod bus clock
	// cycles without an access.
	TimeoutCounter bool
	TimeoutPeriod  uint16
}

// MemoryMapper is implemented by transports able to translate ordinary reads
// of a memory window into device read commands shaped like cmd.
type MemoryMapper interface {
	MemoryMap(cmd *Command, cfg MemoryMapConfig) error
}

// Aborter is implemented by transports that can abort an ongoing
// memory-mapped session so discrete commands can be issued again.
type Aborter interface {
	Abort() error
}
