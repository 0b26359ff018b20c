package qspi

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// DefaultClock is the highest SPI clock of the MPSSE engine [FTDI-AN_135|3.2.1 Divisors].
const DefaultClock = 30 * physic.MegaHertz

// Device is a flash chip wired to the A channel of an FT2232H, the setup
// used to program boards from a host.
type Device struct {
	FTDI  *ftdi.FT232H
	Flash *Flash

	cs    gpio.PinIO // ADBUS4 Chip Select
	reset gpio.PinIO // ADBUS7 target reset

	clock physic.Frequency
	conn  spi.Conn
}

var hostInitialized atomic.Bool

// NewDevice finds the FT2232H and opens an MPSSE/SPI connection at clock.
// The Flash it holds uses cfg with single data lines, the only width the
// MPSSE engine drives.
func NewDevice(clock physic.Frequency, cfg Config) (*Device, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	d := &Device{clock: clock}
	if d.clock == 0 {
		d.clock = DefaultClock
	}
	if err := d.findFT2232H(); err != nil {
		return nil, err
	}

	// ADBUS0 | SCK
	// ADBUS1 | MOSI / IO0
	// ADBUS2 | MISO / IO1
	// ADBUS4 | /CS
	// ADBUS7 | target /RESET
	d.cs = d.FTDI.D4
	d.reset = d.FTDI.D7

	if err := d.connectSPI(); err != nil {
		return nil, err
	}
	if err := d.cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to release chip select: %w", err)
	}

	cfg.DataLines = Single
	cfg.EnableQuad = false
	f, err := New(NewSPITransport(d.conn, d.cs), cfg)
	if err != nil {
		return nil, err
	}
	d.Flash = f
	return d, nil
}

// Detect wakes the chip, reads its JEDEC ID and replaces the Flash with one
// configured for it. Unknown chips keep the default geometry with the
// longest known timeouts.
func (d *Device) Detect() (id [3]byte, name string, err error) {
	if err = d.Flash.PowerUp(); err != nil {
		return
	}
	if id, name, err = d.Flash.ReadID(); err != nil {
		return
	}

	old := d.Flash.Config()
	cfg, ok := ConfigFor(id)
	if !ok {
		d.Flash.info("unknown flash ID", slog.String("id", fmt.Sprintf("%X", id)))
	}
	cfg.DataLines = Single
	cfg.PollInterval = old.PollInterval
	cfg.Clock = old.Clock
	cfg.Logger = old.Logger

	f, err := New(NewSPITransport(d.conn, d.cs), cfg)
	if err != nil {
		return
	}
	d.Flash = f
	return id, name, nil
}

// ResetTarget asserts (low) or deasserts (high) the target reset line.
func (d *Device) ResetTarget(l gpio.Level) error {
	return d.reset.Out(l)
}

// HoldTargetReset keeps the target MCU in reset so it leaves the flash bus
// to the adapter.
func (d *Device) HoldTargetReset() error {
	return d.ResetTarget(gpio.Low)
}

func (d *Device) ReleaseTargetReset() error {
	return d.ResetTarget(gpio.High)
}

func (d *Device) findFT2232H() error {
	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			d.FTDI = ft
			return nil
		}
	}

	return errors.New("FT2232H not found")
}

func (d *Device) connectSPI() (err error) {
	port, err := d.FTDI.SPI()
	if err != nil {
		return fmt.Errorf("failed to get SPI port: %w", err)
	}

	// [FTDI-AN_114|1.2] MPSSE supports mode 0 and mode 2 only.
	// [W25Q256JV|7.2.1] the flash supports mode 0 and mode 3.
	d.conn, err = port.Connect(d.clock, spi.Mode0, 8)
	return err
}
