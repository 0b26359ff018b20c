package main

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3/ftdi"

	qspi "github.com/amirparto1/QSPI-Loader"
)

// session is an opened adapter with the target held in reset.
type session struct {
	*qspi.Device
	g *globals
}

// open finds the adapter, holds the target in reset and detects the flash.
// With init set, the flash is also reset into 4-byte addressing.
func (g *globals) open(init bool) (*session, error) {
	cfg := qspi.DefaultConfig()
	cfg.Logger = g.logger
	d, err := qspi.NewDevice(physic.Frequency(g.Clock), cfg)
	if err != nil {
		return nil, err
	}
	s := &session{Device: d, g: g}

	// The target MCU must not drive the flash bus while we do.
	if err := d.HoldTargetReset(); err != nil {
		return nil, fmt.Errorf("hold target reset: %w", err)
	}

	id, name, err := d.Detect()
	if err != nil {
		s.close()
		return nil, fmt.Errorf("read flash ID: %w", err)
	}
	if name == "" {
		warnColor.Printf("unknown flash ID %X, using conservative timeouts\n", id)
	}
	g.logger.Debug("flash detected", slog.String("id", fmt.Sprintf("%X", id)), slog.String("name", name))

	if init {
		if err := d.Flash.Init(); err != nil {
			s.close()
			return nil, fmt.Errorf("init flash: %w", err)
		}
	}
	return s, nil
}

func (s *session) close() {
	if err := s.Flash.PowerDown(); err != nil {
		s.g.logger.Warn("flash power down", slog.Any("err", err))
	}
	if s.g.Release {
		if err := s.ReleaseTargetReset(); err != nil {
			s.g.logger.Warn("release target reset", slog.Any("err", err))
		}
	}
}

type infoCmd struct{}

func (infoCmd) Run(g *globals) error {
	d, err := qspi.NewDevice(physic.Frequency(g.Clock), qspi.DefaultConfig())
	if err != nil {
		return err
	}
	ft := d.FTDI

	// Reference: https://github.com/periph/cmd/tree/main/ftdi-list
	i := ftdi.Info{}
	ft.Info(&i)
	fmt.Printf("Type:            %s\n", i.Type)
	fmt.Printf("Vendor ID:       %#04x\n", i.VenID)
	fmt.Printf("Device ID:       %#04x\n", i.DevID)

	ee := ftdi.EEPROM{}
	if err := ft.EEPROM(&ee); err != nil {
		return fmt.Errorf("failed to read EEPROM: %w", err)
	}
	fmt.Printf("Manufacturer:    %s\n", ee.Manufacturer)
	fmt.Printf("Desc:            %s\n", ee.Desc)
	fmt.Printf("Serial:          %s\n", ee.Serial)

	h := ee.AsHeader()
	fmt.Printf("MaxPower:        %dmA\n", h.MaxPower)
	fmt.Printf("SPI clock:       %s\n", g.Clock)
	return nil
}

type idCmd struct{}

func (idCmd) Run(g *globals) error {
	s, err := g.open(false)
	if err != nil {
		return err
	}
	defer s.close()

	id, name, err := s.Flash.ReadID()
	if err != nil {
		return err
	}
	fmt.Printf("%X\t%s\n", id, name)
	return nil
}

type statusCmd struct{}

func (statusCmd) Run(g *globals) error {
	s, err := g.open(false)
	if err != nil {
		return err
	}
	defer s.close()

	sr, err := s.Flash.ReadStatusRegister()
	if err != nil {
		return err
	}
	sr2, err := s.Flash.ReadStatusRegister2()
	if err != nil {
		return err
	}
	fmt.Printf("SR1:  %s\n", sr)
	fmt.Printf("SR2:  %s\n", sr2)

	fmt.Print("Status: ")
	if err := s.Flash.Status(); err != nil {
		warnColor.Println(qspi.Code(err))
		return nil
	}
	okColor.Println(qspi.StatusOK)
	return nil
}
