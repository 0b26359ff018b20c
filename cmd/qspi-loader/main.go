// Command qspi-loader programs W25Q256-class flash chips through an FT2232H.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	qspi "github.com/amirparto1/QSPI-Loader"
)

type globals struct {
	Config   kong.ConfigFlag `help:"JSON file with flag defaults." type:"path"`
	Clock    frequency       `help:"SPI clock." default:"30MHz" env:"QSPI_CLOCK"`
	LogLevel slog.Level      `help:"Log level (debug, info, warn, error)." default:"info" env:"QSPI_LOG_LEVEL"`
	NoColor  bool            `help:"Disable colored output."`
	Release  bool            `help:"Release the target reset line when done." default:"true" negatable:""`

	logger *slog.Logger
}

var cli struct {
	globals

	Info   infoCmd   `cmd:"" help:"Show the FTDI adapter."`
	ID     idCmd     `cmd:"" name:"id" help:"Print the flash JEDEC ID."`
	Status statusCmd `cmd:"" help:"Print the flash status registers."`
	Read   readCmd   `cmd:"" help:"Read flash memory."`
	Write  writeCmd  `cmd:"" help:"Write a file to flash memory."`
	Erase  eraseCmd  `cmd:"" help:"Erase flash memory."`
	Verify verifyCmd `cmd:"" help:"Compare flash memory with a file."`
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("qspi-loader"),
		kong.Description("Program serial NOR flash through an FT2232H."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, "~/.config/qspi-loader.json", ".qspi-loader.json"),
	)

	color.NoColor = color.NoColor || cli.NoColor
	cli.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cli.LogLevel}))

	if err := ctx.Run(&cli.globals); err != nil {
		errColor.Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// halTimeout is HAL_TIMEOUT, which qspi.Code folds into StatusError.
const halTimeout = 0x03

// exitCode maps driver errors to the status codes of the board support
// layer, shifted so that 1 stays the generic failure.
func exitCode(err error) int {
	var te *qspi.TimeoutError
	if errors.As(err, &te) {
		return 1 + halTimeout
	}
	if c := qspi.Code(err); c != qspi.StatusError {
		return 1 + int(c)
	}
	return 1
}
