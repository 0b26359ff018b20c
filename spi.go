package qspi

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// maxTx is the largest single SPI transaction [FTDI-AN_108].
const maxTx = 65536

// SPITransport runs command frames over a plain single-line SPI bus, with
// chip select driven as a GPIO so that one frame can span several
// transactions.
type SPITransport struct {
	conn spi.Conn
	cs   gpio.PinOut

	pending *Command // command whose data phase is outstanding
}

// NewSPITransport returns a transport over conn. cs is the active-low chip
// select of the flash.
func NewSPITransport(conn spi.Conn, cs gpio.PinOut) *SPITransport {
	return &SPITransport{conn: conn, cs: cs}
}

// header encodes the instruction, address and dummy phases.
func header(cmd *Command) []byte {
	n := cmd.AddressWidth.Bytes()
	buf := make([]byte, 1+n+(cmd.DummyCycles+7)/8)
	buf[0] = cmd.Instruction
	for i := range n {
		buf[1+i] = byte(cmd.Address >> (8 * (n - 1 - i)))
	}
	// buf[1+n:] dummy bytes
	return buf
}

func (s *SPITransport) Command(cmd *Command) (err error) {
	if p := s.pending; p != nil {
		s.release()
		return fmt.Errorf("command %#02x while %#02x awaits its data phase", cmd.Instruction, p.Instruction)
	}
	if cmd.Direction != DataNone && cmd.DataLines != Single {
		return fmt.Errorf("%w: x%d data phase on a single-line bus", ErrNotSupported, cmd.DataLines)
	}

	if err = s.cs.Out(gpio.Low); err != nil {
		return err
	}
	if err = s.conn.Tx(header(cmd), nil); err != nil {
		s.release()
		return err
	}
	if cmd.Direction == DataNone || cmd.Length == 0 {
		return s.release()
	}
	c := *cmd
	s.pending = &c
	return nil
}

func (s *SPITransport) Transmit(data []byte) error {
	return s.data(DataOut, data, func(chunk []byte) error {
		return s.conn.Tx(chunk, nil)
	})
}

func (s *SPITransport) Receive(data []byte) error {
	return s.data(DataIn, data, func(chunk []byte) error {
		clear(chunk)
		return s.conn.Tx(chunk, chunk)
	})
}

func (s *SPITransport) data(dir Direction, data []byte, tx func([]byte) error) (err error) {
	cmd := s.pending
	if cmd == nil {
		return errors.New("data phase without a command")
	}
	if cmd.Direction != dir {
		s.release()
		return fmt.Errorf("data %s phase for %v", dir, cmd)
	}
	defer func() {
		if csErr := s.release(); csErr != nil && err == nil {
			err = csErr
		}
	}()
	if len(data) != cmd.Length {
		return fmt.Errorf("data phase of %d bytes, command expects %d", len(data), cmd.Length)
	}
	for off := 0; off < len(data); off += maxTx {
		if err := tx(data[off:min(off+maxTx, len(data))]); err != nil {
			return err
		}
	}
	return nil
}

// release deasserts chip select and ends the frame.
func (s *SPITransport) release() error {
	s.pending = nil
	return s.cs.Out(gpio.High)
}
