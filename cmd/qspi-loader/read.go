package main

import (
	"encoding/hex"
	"fmt"
	"os"
)

type readCmd struct {
	Addr   size   `short:"a" help:"Start address." default:"0"`
	Length size   `short:"n" help:"Number of bytes to read." default:"256"`
	Output string `short:"o" help:"Output file (default: hexdump)." type:"path"`
}

func (c *readCmd) Run(g *globals) error {
	s, err := g.open(true)
	if err != nil {
		return err
	}
	defer s.close()

	data := make([]byte, c.Length)
	if err := s.Flash.Read(uint32(c.Addr), data); err != nil {
		return fmt.Errorf("read flash: %w", err)
	}
	if c.Output == "" {
		fmt.Print(hex.Dump(data))
		return nil
	}
	return os.WriteFile(c.Output, data, 0644)
}
