package main

import (
	"errors"
	"fmt"
)

type eraseCmd struct {
	Addr size    `short:"a" help:"Start address."`
	Size size    `short:"s" help:"Number of bytes, a multiple of the subsector size."`
	End  optSize `help:"Erase whole sectors from --addr up to and including this address."`
	Chip bool    `help:"Erase the entire chip."`
}

func (c *eraseCmd) validate() error {
	if !c.Chip && c.Size == 0 && !c.End.set {
		return errors.New("one of --chip, --size or --end is required")
	}
	return nil
}

func (c *eraseCmd) Run(g *globals) error {
	if err := c.validate(); err != nil {
		return err
	}

	s, err := g.open(true)
	if err != nil {
		return err
	}
	defer s.close()
	f := s.Flash

	switch {
	case c.Chip:
		fmt.Println("erasing chip, this takes minutes")
		err = f.EraseChip()
	case c.End.set:
		err = f.EraseSectorRange(uint32(c.Addr), uint32(c.End.v))
	default:
		err = f.Erase(uint32(c.Addr), uint32(c.Size))
	}
	if err != nil {
		return err
	}
	okColor.Println("erased")
	return nil
}
