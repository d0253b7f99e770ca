//go:build linux && !tinygo

package pinio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"ps2kbd/ps2"
)

// bcmPins is the number of GPIO lines on the Raspberry Pi header SoCs
const bcmPins = 54

// RPIO is a GPIO driver using go-rpio's memory mapped registers
type RPIO struct {
	mu      sync.Mutex
	outputs map[ps2.PinID]bool
}

var _ ps2.GPIODriver = (*RPIO)(nil)

// OpenRPIO maps the GPIO registers; call Close when done
func OpenRPIO() (*RPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("pinio: rpio open: %w", err)
	}
	return &RPIO{outputs: make(map[ps2.PinID]bool)}, nil
}

// SetDirection implements ps2.GPIODriver
func (r *RPIO) SetDirection(pin ps2.PinID, dir ps2.Direction) error {
	if pin >= bcmPins {
		return fmt.Errorf("%w: %s", ErrUnknownPin, PinName(pin))
	}
	p := rpio.Pin(pin)
	r.mu.Lock()
	defer r.mu.Unlock()
	if dir == ps2.Input {
		p.Input()
		p.PullOff()
		delete(r.outputs, pin)
		return nil
	}
	p.High()
	p.Output()
	r.outputs[pin] = true
	return nil
}

// SetLevel implements ps2.GPIODriver
func (r *RPIO) SetLevel(pin ps2.PinID, level ps2.Level) error {
	r.mu.Lock()
	out := r.outputs[pin]
	r.mu.Unlock()
	if !out {
		return fmt.Errorf("pinio: %s is not an output", PinName(pin))
	}
	if level == ps2.High {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
	return nil
}

// GetLevel implements ps2.GPIODriver
func (r *RPIO) GetLevel(pin ps2.PinID) ps2.Level {
	if pin >= bcmPins {
		return ps2.High
	}
	return rpio.Pin(pin).Read() == rpio.High
}

// DelayMicroseconds implements ps2.GPIODriver
func (r *RPIO) DelayMicroseconds(us uint32) { Spin(us) }

// Close releases every output and unmaps the registers
func (r *RPIO) Close() error {
	r.mu.Lock()
	for pin := range r.outputs {
		rpio.Pin(pin).Input()
	}
	r.outputs = make(map[ps2.PinID]bool)
	r.mu.Unlock()
	return rpio.Close()
}
