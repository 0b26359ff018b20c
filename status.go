package qspi

import (
	"fmt"
	"strings"
)

// Status register bits [W25Q256JV|7.1 Status Registers].
const (
	statusBusy       = 1 << 0 // BUSY: Erase/Write in progress
	statusWriteLatch = 1 << 1 // WEL: Write Enable Latch
	status2QuadEn    = 1 << 1 // QE: Quad Enable (status register 2)

	status1QuadEn = 1 << 6 // QE of chips with QuadEnableSR1Bit6 [MX25L25645G|Status Register]
)

// StatusRegister is status register 1 of the flash chip.
//
//	Bits| [W25Q256JV|7.1 Status Registers]
//	----+-------------------------------
//	7   | SRP: Status Register Protect
//	6   | TB: Top/Bottom protect
//	5:2 | BP3-0: Block Protect bit 3-0
//	1   | WEL: Write Enable Latch
//	0   | BUSY: Erase/Write in progress
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<6) != 0 }
func (sr StatusRegister) BlockProtect() uint8         { return uint8(sr>>2) & 0x0F }
func (sr StatusRegister) WriteEnabled() bool          { return sr&statusWriteLatch != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&statusBusy != 0 }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.StatusRegisterProtect() {
		s = append(s, "SRP")
	}
	if sr.TopBottom() {
		s = append(s, "TB")
	}
	if bp := sr.BlockProtect(); bp != 0 {
		s = append(s, fmt.Sprintf("BP=%d", bp))
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

// StatusRegister2 is status register 2.
//
//	Bits| [W25Q256JV|7.1 Status Registers]
//	----+-------------------------------
//	7   | SUS: Suspend Status
//	6:3 | CMP, LB3-1: Complement / Security Register Lock
//	1   | QE: Quad Enable
//	0   | SRL: Status Register Lock
type StatusRegister2 byte

func (sr StatusRegister2) Suspended() bool   { return sr&(1<<7) != 0 }
func (sr StatusRegister2) QuadEnabled() bool { return sr&status2QuadEn != 0 }
func (sr StatusRegister2) Locked() bool      { return sr&(1<<0) != 0 }

func (sr StatusRegister2) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.Suspended() {
		s = append(s, "SUS")
	}
	if sr.QuadEnabled() {
		s = append(s, "QE")
	}
	if sr.Locked() {
		s = append(s, "SRL")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}
