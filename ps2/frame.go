// Package ps2 implements the host side of the PS/2 keyboard protocol by
// polling and driving GPIO pins: the 11-bit frame codec, the clocked link
// layer and the keyboard command set built on top of it.
package ps2

import "math/bits"

// Frame bit positions
const (
	FrameBits = 11

	startBit  = 0
	parityBit = 9
	stopBit   = 10
)

// Frame is an 11-bit PS/2 wire word, LSB first on the wire:
// bit 0 start, bits 1..8 data, bit 9 odd parity, bit 10 stop.
type Frame uint16

// Parity returns the odd parity bit for b: 1 when b has an even number of
// set bits, so data plus parity always carries an odd number of ones.
func Parity(b byte) uint8 {
	if bits.OnesCount8(b)&1 == 0 {
		return 1
	}
	return 0
}

// NewFrame builds a well formed frame carrying data
func NewFrame(data byte) Frame {
	f := Frame(data) << 1
	f |= Frame(Parity(data)) << parityBit
	f |= 1 << stopBit
	return f
}

// Bit returns frame bit i (0..10) as 0 or 1
func (f Frame) Bit(i int) uint8 {
	return uint8(f>>uint(i)) & 1
}

// Data returns the 8 data bits
func (f Frame) Data() byte {
	return byte(f >> 1)
}

// Start returns the start bit
func (f Frame) Start() uint8 { return f.Bit(startBit) }

// ParityBit returns the transmitted parity bit
func (f Frame) ParityBit() uint8 { return f.Bit(parityBit) }

// Stop returns the stop bit
func (f Frame) Stop() uint8 { return f.Bit(stopBit) }

// ParityOK reports whether the parity bit matches the data bits
func (f Frame) ParityOK() bool {
	return Parity(f.Data()) == f.ParityBit()
}

// DecodeFrame checks f against the enabled checks of p and returns the
// data byte. Disabled checks never fail.
func DecodeFrame(f Frame, p ValidationPolicy) (byte, error) {
	ferr := &FramingError{Frame: f}
	if p.ValidateStart && f.Start() != 0 {
		ferr.BadStart = true
	}
	if p.ValidateStop && f.Stop() != 1 {
		ferr.BadStop = true
	}
	if p.ValidateParity && !f.ParityOK() {
		ferr.BadParity = true
	}
	if ferr.BadStart || ferr.BadStop || ferr.BadParity {
		return 0, ferr
	}
	return f.Data(), nil
}
