package qspi

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTransport is matched by every failure of the bus transport.
	ErrTransport = errors.New("qspi: transport failure")
	// ErrBusy reports a device in the middle of a program or erase.
	ErrBusy = errors.New("qspi: device busy")
	// ErrTimeout is matched by every status poll that ran out of time.
	ErrTimeout = errors.New("qspi: timeout")
	// ErrNotSupported reports a failed reset or a transport lacking a feature.
	ErrNotSupported = errors.New("qspi: not supported")
	// ErrMemoryMapped is returned by discrete commands while the device is memory-mapped.
	ErrMemoryMapped = errors.New("qspi: memory-mapped mode active")
	// ErrOutOfRange is returned for requests outside the device address space.
	ErrOutOfRange = errors.New("qspi: address out of range")
	// ErrAlignment is returned for erase requests not on an erase boundary.
	ErrAlignment = errors.New("qspi: misaligned erase")
)

// TransportError wraps a failing transport primitive.
type TransportError struct {
	Op          string // "command", "transmit", "receive", "autopoll" or "memorymap"
	Instruction byte
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("qspi: %s %#02x: %v", e.Op, e.Instruction, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// TimeoutError reports a status poll that never observed the expected bits.
type TimeoutError struct {
	Op      string // what was awaited, e.g. "write enable"
	Timeout time.Duration
	Status  byte // last status sampled, zero when polled in hardware
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("qspi: %s: timeout after %v (status %08b)", e.Op, e.Timeout, e.Status)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// StatusCode is the fixed status code set of the board support layer.
type StatusCode uint8

const (
	StatusOK           StatusCode = 0x00
	StatusError        StatusCode = 0x01
	StatusBusy         StatusCode = 0x02
	StatusNotSupported StatusCode = 0x04
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusBusy:
		return "busy"
	case StatusNotSupported:
		return "not supported"
	}
	return "error"
}

// Code maps err to its status code.
func Code(err error) StatusCode {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotSupported):
		return StatusNotSupported
	case errors.Is(err, ErrBusy):
		return StatusBusy
	}
	return StatusError
}
