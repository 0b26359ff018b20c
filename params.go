package qspi

import (
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"time"

	"github.com/jonboulle/clockwork"
)

// Geometry describes the erase and program granularity of a flash chip.
type Geometry struct {
	FlashSize          uint32
	EraseSectorSize    uint32 // erase granularity of EraseSectorRange
	EraseSectorsNumber uint32
	ProgPageSize       uint32
	ProgPagesNumber    uint32
	SubsectorSize      uint32 // smallest erasable unit
}

// NewGeometry derives the sector and page counts from the sizes.
func NewGeometry(flashSize, sectorSize, subsectorSize, pageSize uint32) Geometry {
	g := Geometry{
		FlashSize:       flashSize,
		EraseSectorSize: sectorSize,
		ProgPageSize:    pageSize,
		SubsectorSize:   subsectorSize,
	}
	if sectorSize != 0 {
		g.EraseSectorsNumber = flashSize / sectorSize
	}
	if pageSize != 0 {
		g.ProgPagesNumber = flashSize / pageSize
	}
	return g
}

func (g Geometry) validate() error {
	for _, v := range []struct {
		name string
		size uint32
	}{
		{"flash size", g.FlashSize},
		{"sector size", g.EraseSectorSize},
		{"subsector size", g.SubsectorSize},
		{"page size", g.ProgPageSize},
	} {
		if v.size == 0 || bits.OnesCount32(v.size) != 1 {
			return fmt.Errorf("qspi: %s %#x is not a power of two", v.name, v.size)
		}
	}
	if g.ProgPageSize > g.SubsectorSize || g.SubsectorSize > g.EraseSectorSize || g.EraseSectorSize > g.FlashSize {
		return errors.New("qspi: geometry must satisfy page <= subsector <= sector <= flash")
	}
	if g.EraseSectorsNumber != g.FlashSize/g.EraseSectorSize || g.ProgPagesNumber != g.FlashSize/g.ProgPageSize {
		return errors.New("qspi: geometry counts do not match sizes")
	}
	return nil
}

// SubsectorSpan widens [addr, addr+n) to subsector boundaries and returns
// the start and length of the widened range.
func (g Geometry) SubsectorSpan(addr uint32, n int) (uint32, uint32) {
	from := alignDown(addr, g.SubsectorSize)
	end := alignUp(uint64(addr)+uint64(n), uint64(g.SubsectorSize))
	return from, uint32(end - uint64(from))
}

// QuadEnable locates the quad enable bit of a chip.
type QuadEnable uint8

const (
	// QuadEnableSR2Bit1 is bit 1 of status register 2, read with 0x35 and
	// written with 0x31 (Winbond).
	QuadEnableSR2Bit1 QuadEnable = iota
	// QuadEnableSR1Bit6 is bit 6 of status register 1, written with 0x01
	// (Macronix).
	QuadEnableSR1Bit6
	// QuadEnableNone marks a chip whose quad enable bit is unknown.
	QuadEnableNone
)

func (q QuadEnable) String() string {
	switch q {
	case QuadEnableSR2Bit1:
		return "SR2[1]"
	case QuadEnableSR1Bit6:
		return "SR1[6]"
	}
	return "none"
}

// Timeouts bounds each class of status poll.
type Timeouts struct {
	Default        time.Duration // write enable, reset, mode switch, register write
	PageProgram    time.Duration
	SubsectorErase time.Duration
	SectorErase    time.Duration
	ChipErase      time.Duration

	PowerDown time.Duration // tDP, slept after entering power-down
	PowerUp   time.Duration // tRES1, slept after releasing power-down
}

// Config configures a Flash.
type Config struct {
	Geometry Geometry
	Timeouts Timeouts

	// DataLines selects single or quad data phases for reads and programs.
	DataLines Lines
	// EnableQuad makes Init set the QE bit when DataLines is Quad.
	EnableQuad bool
	// QuadEnable says where the QE bit lives.
	QuadEnable QuadEnable

	// PollInterval is the pause between two status samples.
	PollInterval time.Duration

	Clock  clockwork.Clock // If nil, real clock will be used.
	Logger *slog.Logger    // If nil, nothing is logged.
}

type flashParams struct {
	name string

	geometry   Geometry
	timeouts   Timeouts
	quadEnable QuadEnable
}

// HAL_QPSI_TIMEOUT_DEFAULT_VALUE of the STM32 QSPI HAL.
const defaultTimeout = 5 * time.Second

var (
	flashIDWinbondW25Q256JV   = [3]byte{0xEF, 0x40, 0x19}
	flashIDWinbondW25Q256JW   = [3]byte{0xEF, 0x60, 0x19}
	flashIDWinbondW25Q512JV   = [3]byte{0xEF, 0x40, 0x20}
	flashIDMacronixMX25L25645 = [3]byte{0xC2, 0x20, 0x19}
)

var knownFlash = map[[3]byte]flashParams{
	flashIDWinbondW25Q256JV: {
		name:     "Winbond W25Q256JV 256Mb",
		geometry: NewGeometry(32<<20, 64<<10, 4<<10, 256),

		// [W25Q256JV|9.6 AC Electrical Characteristics]
		timeouts: Timeouts{
			Default: defaultTimeout,
			// tPP: Page Program Time
			PageProgram: 3 * time.Millisecond,
			// tSE: Sector Erase Time (4KB)
			SubsectorErase: 400 * time.Millisecond,
			// tBE2: Block Erase Time (64KB)
			SectorErase: 2000 * time.Millisecond,
			// tCE: Chip Erase Time
			ChipErase: 400 * time.Second,
			// tDP: /CS High to Power-down Mode
			PowerDown: 3 * time.Microsecond,
			// tRES1: /CS High to Standby Mode without ID Read
			PowerUp: 3 * time.Microsecond,
		},
	},

	flashIDWinbondW25Q256JW: {
		name:     "Winbond W25Q256JW 256Mb 1.8V",
		geometry: NewGeometry(32<<20, 64<<10, 4<<10, 256),

		// Board support defaults for this part: W25Q256JW_*_MAX_TIME
		timeouts: Timeouts{
			Default:        defaultTimeout,
			PageProgram:    defaultTimeout,
			SubsectorErase: 1000 * time.Millisecond,
			SectorErase:    3000 * time.Millisecond,
			ChipErase:      250 * time.Second,
			PowerDown:      3 * time.Microsecond,
			PowerUp:        3 * time.Microsecond,
		},
	},

	flashIDWinbondW25Q512JV: {
		name:     "Winbond W25Q512JV 512Mb",
		geometry: NewGeometry(64<<20, 64<<10, 4<<10, 256),

		// [W25Q512JV|9.6 AC Electrical Characteristics]
		timeouts: Timeouts{
			Default:        defaultTimeout,
			PageProgram:    3 * time.Millisecond,
			SubsectorErase: 400 * time.Millisecond,
			SectorErase:    2000 * time.Millisecond,
			ChipErase:      800 * time.Second,
			PowerDown:      3 * time.Microsecond,
			PowerUp:        3 * time.Microsecond,
		},
	},

	flashIDMacronixMX25L25645: {
		name:       "Macronix MX25L25645G 256Mb",
		geometry:   NewGeometry(32<<20, 64<<10, 4<<10, 256),
		quadEnable: QuadEnableSR1Bit6,

		// [MX25L25645G|Table 22. AC Characteristics]
		timeouts: Timeouts{
			Default:        defaultTimeout,
			PageProgram:    750 * time.Microsecond,
			SubsectorErase: 400 * time.Millisecond,
			SectorErase:    2000 * time.Millisecond,
			ChipErase:      150 * time.Second,
			PowerDown:      10 * time.Microsecond,
			PowerUp:        100 * time.Microsecond,
		},
	},
}

// DefaultConfig returns the configuration of the W25Q256JV with quad data
// phases.
func DefaultConfig() Config {
	p := knownFlash[flashIDWinbondW25Q256JV]
	return Config{
		Geometry:     p.geometry,
		Timeouts:     p.timeouts,
		DataLines:    Quad,
		PollInterval: 100 * time.Microsecond,
	}
}

// ConfigFor returns the configuration of the chip with the given JEDEC ID
// and whether the ID is known. Unknown chips get the W25Q256JV geometry and
// the longest timeouts of all known chips, and no quad enable bit.
func ConfigFor(id [3]byte) (Config, bool) {
	cfg := DefaultConfig()
	p, ok := knownFlash[id]
	if !ok {
		cfg.Timeouts = maxTimeouts()
		cfg.QuadEnable = QuadEnableNone
		return cfg, false
	}
	cfg.Geometry = p.geometry
	cfg.Timeouts = p.timeouts
	cfg.QuadEnable = p.quadEnable
	return cfg, true
}

// FlashName returns the name of a known JEDEC ID.
func FlashName(id [3]byte) (string, bool) {
	p, ok := knownFlash[id]
	return p.name, ok
}

func maxTimeouts() Timeouts {
	var t Timeouts
	for _, p := range knownFlash {
		t.Default = max(t.Default, p.timeouts.Default)
		t.PageProgram = max(t.PageProgram, p.timeouts.PageProgram)
		t.SubsectorErase = max(t.SubsectorErase, p.timeouts.SubsectorErase)
		t.SectorErase = max(t.SectorErase, p.timeouts.SectorErase)
		t.ChipErase = max(t.ChipErase, p.timeouts.ChipErase)
		t.PowerDown = max(t.PowerDown, p.timeouts.PowerDown)
		t.PowerUp = max(t.PowerUp, p.timeouts.PowerUp)
	}
	return t
}
