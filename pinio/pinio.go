// Package pinio drives the keyboard lines from a Linux single-board
// computer's own GPIO, implementing ps2.GPIODriver.
//
// Two backends exist: Periph (periph.io, any board periph knows) and RPIO
// (go-rpio, Raspberry Pi register access through /dev/gpiomem). Pins are
// BCM GPIO numbers in both.
package pinio

import (
	"errors"
	"strconv"
	"time"

	"ps2kbd/ps2"
)

// ErrUnknownPin is returned for a pin the board does not have
var ErrUnknownPin = errors.New("pinio: unknown pin")

// Spin waits us microseconds by polling the monotonic clock
func Spin(us uint32) {
	if us == 0 {
		return
	}
	deadline := time.Now().Add(time.Duration(us) * time.Microsecond)
	for time.Now().Before(deadline) {
	}
}

// PinName returns the periph registry name of a BCM GPIO number
func PinName(pin ps2.PinID) string {
	return "GPIO" + strconv.FormatUint(uint64(pin), 10)
}
