//go:build !linux && !tinygo

package pinio

import (
	"errors"

	"ps2kbd/ps2"
)

// ErrUnsupported is returned by the local backends off Linux
var ErrUnsupported = errors.New("pinio: local GPIO needs linux")

type unsupported struct{}

func (unsupported) SetDirection(ps2.PinID, ps2.Direction) error { return ErrUnsupported }
func (unsupported) SetLevel(ps2.PinID, ps2.Level) error         { return ErrUnsupported }
func (unsupported) GetLevel(ps2.PinID) ps2.Level                { return ps2.High }
func (unsupported) DelayMicroseconds(us uint32)                 { Spin(us) }

// Periph is unavailable on this platform
type Periph struct{ unsupported }

// NewPeriph always fails off Linux
func NewPeriph() (*Periph, error) { return nil, ErrUnsupported }

// Release does nothing
func (*Periph) Release() error { return nil }

// RPIO is unavailable on this platform
type RPIO struct{ unsupported }

// OpenRPIO always fails off Linux
func OpenRPIO() (*RPIO, error) { return nil, ErrUnsupported }

// Close does nothing
func (*RPIO) Close() error { return nil }
