//go:build rp2040

// Command rp2040 is the ps2kbd firmware: it serves the keyboard protocol over
// USB CDC and drives the PS/2 lines from polled GPIO.
package main

import (
	"errors"
	"machine"
	"strconv"
	"time"

	"ps2kbd/core"
	"ps2kbd/protocol"
)

var errNoProgress = errors.New("usb: write made no progress")

// maxWriteFailures consecutive failed writes mean the host went away
const maxWriteFailures = 10

func main() {
	// Clear any watchdog state left by a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	initUSB()
	core.DebugPrintln("ps2kbd " + protocol.Version)

	server := core.NewServer(newPinDriver())
	registerDictionary(server.Dictionary())
	out := &usbWriter{}
	buf := make([]byte, protocol.MessageLengthMax)

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					server.Reset()
					core.DebugPrintln("core: recovered from panic")
					server.Events().Dump(core.DebugPrintln)
				}
			}()

			n := usbRead(buf)
			if n == 0 {
				return
			}
			if err := server.Process(buf[:n], out); err != nil && out.failures > maxWriteFailures {
				// host is gone, drop its partial input
				server.Reset()
				out.failures = 0
			}
		}()
		time.Sleep(100 * time.Microsecond)
	}
}

// registerDictionary describes the board to the host
func registerDictionary(d *core.Dictionary) {
	d.AddConstant("MCU", "rp2040")
	d.AddConstant("CLOCK_FREQ", "1000000")
	names := make([]string, rp2040Pins)
	for i := range names {
		names[i] = "gpio" + strconv.Itoa(i)
	}
	d.AddEnumeration("pin", names)
}
