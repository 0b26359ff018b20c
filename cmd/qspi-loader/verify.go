package main

import "os"

type verifyCmd struct {
	File string `arg:"" help:"Image to compare with." type:"existingfile"`
	Addr size   `short:"a" help:"Start address." default:"0"`
}

func (c *verifyCmd) Run(g *globals) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}

	s, err := g.open(true)
	if err != nil {
		return err
	}
	defer s.close()

	return verify(s.Flash, uint32(c.Addr), data)
}
