package main

import (
	"fmt"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/physic"
)

// frequency parses values like "30MHz".
type frequency physic.Frequency

func (f *frequency) UnmarshalText(text []byte) error {
	return (*physic.Frequency)(f).Set(string(text))
}

func (f frequency) String() string {
	return physic.Frequency(f).String()
}

// size is a byte count or address: decimal, 0x hex, or with a K/M suffix.
type size uint32

func (s *size) UnmarshalText(text []byte) error {
	str := strings.TrimSpace(string(text))
	shift := 0
	switch {
	case strings.HasSuffix(str, "K"):
		shift = 10
	case strings.HasSuffix(str, "M"):
		shift = 20
	}
	if shift != 0 {
		str = str[:len(str)-1]
	}
	v, err := strconv.ParseUint(str, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", text, err)
	}
	if v<<shift > 1<<32-1 {
		return fmt.Errorf("size %q overflows 32 bits", text)
	}
	*s = size(v << shift)
	return nil
}

func (s size) String() string {
	return fmt.Sprintf("%#x", uint32(s))
}

// optSize is a size flag that remembers whether it was given, so that 0 is
// a valid value.
type optSize struct {
	v   size
	set bool
}

func (o *optSize) UnmarshalText(text []byte) error {
	if err := o.v.UnmarshalText(text); err != nil {
		return err
	}
	o.set = true
	return nil
}

func (o optSize) String() string {
	if !o.set {
		return ""
	}
	return o.v.String()
}
