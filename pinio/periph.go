//go:build linux && !tinygo

package pinio

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"ps2kbd/ps2"
)

// Periph is a GPIO driver backed by periph.io
type Periph struct {
	mu   sync.Mutex
	pins map[ps2.PinID]gpio.PinIO
	out  map[ps2.PinID]gpio.Level
}

var _ ps2.GPIODriver = (*Periph)(nil)

// NewPeriph initialises periph's host drivers
func NewPeriph() (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("pinio: periph init: %w", err)
	}
	return &Periph{
		pins: make(map[ps2.PinID]gpio.PinIO),
		out:  make(map[ps2.PinID]gpio.Level),
	}, nil
}

func (p *Periph) lookup(pin ps2.PinID) (gpio.PinIO, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if io, ok := p.pins[pin]; ok {
		return io, nil
	}
	io := gpioreg.ByName(PinName(pin))
	if io == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPin, PinName(pin))
	}
	p.pins[pin] = io
	return io, nil
}

// SetDirection implements ps2.GPIODriver. Inputs float; the bus has its own
// pull-ups. Outputs start released (High).
func (p *Periph) SetDirection(pin ps2.PinID, dir ps2.Direction) error {
	io, err := p.lookup(pin)
	if err != nil {
		return err
	}
	if dir == ps2.Input {
		return io.In(gpio.Float, gpio.NoEdge)
	}
	return p.SetLevel(pin, ps2.High)
}

// SetLevel implements ps2.GPIODriver
func (p *Periph) SetLevel(pin ps2.PinID, level ps2.Level) error {
	io, err := p.lookup(pin)
	if err != nil {
		return err
	}
	l := gpio.Level(level)
	if err := io.Out(l); err != nil {
		return fmt.Errorf("pinio: %s: %w", io.Name(), err)
	}
	p.mu.Lock()
	p.out[pin] = l
	p.mu.Unlock()
	return nil
}

// GetLevel implements ps2.GPIODriver. Unknown pins read High, like a
// released line.
func (p *Periph) GetLevel(pin ps2.PinID) ps2.Level {
	p.mu.Lock()
	io, ok := p.pins[pin]
	p.mu.Unlock()
	if !ok {
		return ps2.High
	}
	return ps2.Level(io.Read())
}

// DelayMicroseconds implements ps2.GPIODriver
func (p *Periph) DelayMicroseconds(us uint32) { Spin(us) }

// Release drives every output pin High again and turns it into an input
func (p *Periph) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for pin := range p.out {
		if err := p.pins[pin].In(gpio.Float, gpio.NoEdge); err != nil && first == nil {
			first = err
		}
	}
	p.out = make(map[ps2.PinID]gpio.Level)
	return first
}
