// Command ps2kbd drives a PS/2 keyboard, either through the ps2kbd firmware
// on a microcontroller or directly from a Linux board's GPIO.
package main

import (
	"io"
	"log"
	"os"

	"github.com/alecthomas/kong"
)

// Globals are the flags shared by every subcommand. Set flags override the
// configuration file.
type Globals struct {
	Config      string `short:"c" type:"path" help:"JSON configuration file."`
	Backend     string `enum:",serial,periph,rpio" default:"" help:"Keyboard backend: serial, periph or rpio."`
	Device      string `short:"d" help:"Serial device of the firmware."`
	Baud        int    `help:"Serial baud rate."`
	EdgeTimeout int    `name:"edge-timeout" help:"Bound clock edge waits, in milliseconds (0 waits forever)."`
	Verbose     bool   `short:"v" help:"Log every request."`

	// idleEdgeTimeout applies when neither the flag nor the file bounds edge waits
	idleEdgeTimeout int `kong:"-"`
}

type cli struct {
	Globals

	Init         initCmd         `cmd:"" help:"Configure the link and report the firmware."`
	Flags        flagsCmd        `cmd:"" help:"Show or change receive validation."`
	Receive      receiveCmd      `cmd:"" help:"Receive bytes from the keyboard."`
	Monitor      monitorCmd      `cmd:"" help:"Print keyboard bytes until interrupted."`
	Send         sendCmd         `cmd:"" help:"Send one raw byte."`
	LEDs         ledsCmd         `cmd:"" name:"leds" help:"Set the lock indicators."`
	KeyEvents    keyEventsCmd    `cmd:"" name:"key-events" help:"Choose the events listed keys report."`
	AllKeyEvents allKeyEventsCmd `cmd:"" name:"all-key-events" help:"Choose the events every key reports."`
	Typematic    typematicCmd    `cmd:"" help:"Set repeat rate and delay."`
	ScanSet      scanSetCmd      `cmd:"" name:"scanset" help:"Select scan code set 1, 2 or 3."`
	Enable       enableCmd       `cmd:"" help:"Enable key scanning."`
	Disable      disableCmd      `cmd:"" help:"Disable key scanning."`
	Default      defaultCmd      `cmd:"" help:"Restore default keyboard settings."`
	Reset        resetCmd        `cmd:"" help:"Reset the keyboard."`
	Resend       resendCmd       `cmd:"" help:"Ask the keyboard to resend its last byte."`
	Echo         echoCmd         `cmd:"" help:"Check the keyboard answers."`
	Dictionary   dictionaryCmd   `cmd:"" help:"List the firmware's commands."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("ps2kbd"),
		kong.Description("PS/2 keyboard host tool."),
		kong.UsageOnError(),
	)
	e := &env{out: os.Stdout, logger: newLogger(os.Stderr, c.Verbose)}
	err := ctx.Run(&c.Globals, e)
	ctx.FatalIfErrorf(err)
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	if !verbose {
		w = io.Discard
	}
	return log.New(w, "ps2kbd: ", log.Ltime|log.Lmicroseconds)
}
