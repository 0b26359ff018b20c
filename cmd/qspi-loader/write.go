package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	qspi "github.com/amirparto1/QSPI-Loader"
)

type writeCmd struct {
	File      string `arg:"" help:"Image to write." type:"existingfile"`
	Addr      size   `short:"a" help:"Start address." default:"0"`
	Erase     bool   `short:"e" help:"Erase the covered subsectors first." default:"true" negatable:""`
	ChipErase bool   `help:"Erase the entire chip first."`
	Verify    bool   `help:"Compare checksums after writing." default:"true" negatable:""`
}

func (c *writeCmd) Run(g *globals) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}

	s, err := g.open(true)
	if err != nil {
		return err
	}
	defer s.close()
	f := s.Flash
	addr := uint32(c.Addr)

	start := time.Now()
	switch {
	case c.ChipErase:
		if err := f.EraseChip(); err != nil {
			return fmt.Errorf("erase chip: %w", err)
		}
	case c.Erase:
		from, n := f.Geometry().SubsectorSpan(addr, len(data))
		if err := f.Erase(from, n); err != nil {
			return fmt.Errorf("erase: %w", err)
		}
	}
	if err := f.Write(addr, data); err != nil {
		return fmt.Errorf("write flash: %w", err)
	}
	g.logger.Info("written", slog.Int("bytes", len(data)), slog.Duration("elapsed", time.Since(start)))

	if c.Verify {
		return verify(f, addr, data)
	}
	okColor.Printf("wrote %d bytes at %#x\n", len(data), addr)
	return nil
}

func verify(f *qspi.Flash, addr uint32, data []byte) error {
	got, err := f.Checksum(addr, len(data))
	if err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	if want := qspi.ChecksumOf(data); got != want {
		errColor.Printf("FAIL ")
		fmt.Printf("crc32 %08x, file %08x\n", got, want)
		return fmt.Errorf("verify [%#x, +%#x): checksum mismatch", addr, len(data))
	}
	okColor.Printf("OK ")
	fmt.Printf("%d bytes at %#x, crc32 %08x\n", len(data), addr, got)
	return nil
}
