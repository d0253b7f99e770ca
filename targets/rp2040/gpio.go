//go:build rp2040

package main

import (
	"machine"

	"ps2kbd/ps2"
)

// rp2040Pins is the number of user GPIOs, GPIO0 to GPIO29
const rp2040Pins = 30

// pinDriver drives the keyboard lines with machine.Pin. Pin ids are GPIO
// numbers; newPinDriver bounds them to the board.
type pinDriver struct{}

func newPinDriver() ps2.GPIODriver {
	return ps2.LimitPins(pinDriver{}, rp2040Pins)
}

func (pinDriver) SetDirection(pin ps2.PinID, dir ps2.Direction) error {
	mode := machine.PinInput
	if dir == ps2.Output {
		mode = machine.PinOutput
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (pinDriver) SetLevel(pin ps2.PinID, level ps2.Level) error {
	machine.Pin(pin).Set(bool(level))
	return nil
}

func (pinDriver) GetLevel(pin ps2.PinID) ps2.Level {
	return ps2.Level(machine.Pin(pin).Get())
}

func (pinDriver) DelayMicroseconds(us uint32) { delayMicros(us) }
