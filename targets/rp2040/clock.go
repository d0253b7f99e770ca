//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040 timer peripheral, a free-running 1MHz counter
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// hardwareMicros reads the low 32 bits of the microsecond counter
func hardwareMicros() uint32 {
	return timerRAWL.Get()
}

// delayMicros spins on the hardware timer. The subtraction survives
// counter wrap.
func delayMicros(us uint32) {
	start := hardwareMicros()
	for hardwareMicros()-start < us {
	}
}
