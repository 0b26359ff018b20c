// Package qspi drives W25Q256-class serial NOR flash through a bus
// controller abstracted as a Transport.
//
// A Flash issues command frames (instruction, address, dummy cycles and
// data) and polls the status register between them. Init resets the device
// and switches it to 4-byte addressing so that the whole 32MiB array is
// reachable. Every program or erase is preceded by a write enable that is
// confirmed by polling the WEL bit.
//
// SPITransport runs frames over any periph.io SPI port, and Device wires
// one to an FT2232H for programming boards from a host. The flashtest
// package provides an in-memory chip for tests.
//
// # References:
//
// FTDI (https://ftdichip.com/document/application-notes/)
//   - [FTDI-AN_108]: Command Processor for MPSSE and MCU Host Bus Emulation Modes (https://ftdichip.com/wp-content/uploads/2020/08/AN_108_Command_Processor_for_MPSSE_and_MCU_Host_Bus_Emulation_Modes.pdf)
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//   - [FTDI-AN_135]: FTDI MPSSE Basics (https://ftdichip.com/wp-content/uploads/2020/08/AN_135_MPSSE_Basics.pdf)
//
// SPI Flash
//   - [W25Q256JV]: W25Q256JV 3V 256M-bit Serial Flash Memory (https://www.winbond.com/resource-files/W25Q256JV%20SPI%20RevJ%2003102021%20Plus.pdf)
//   - [W25Q512JV]: W25Q512JV 3V 512M-bit Serial Flash Memory (https://www.winbond.com/resource-files/W25Q512JV%20SPI%20RevD%2006222020%20133.pdf)
//   - [MX25L25645G]: Macronix MX25L25645G 3V 256Mb Serial NOR Flash (https://www.macronix.com/Lists/Datasheet/Attachments/8663/MX25L25645G,%203V,%20256Mb,%20v1.7.pdf)
package qspi
