//go:build rp2040

package main

import "machine"

// initUSB configures the USB CDC serial port the host talks to
func initUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// usbRead copies buffered USB bytes into buf without blocking
func usbRead(buf []byte) int {
	n := 0
	for n < len(buf) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		buf[n] = b
		n++
	}
	return n
}

// usbWriter writes whole response blocks to USB
type usbWriter struct {
	failures uint32
}

func (w *usbWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := machine.Serial.Write(p[written:])
		if err != nil {
			w.failures++
			return written, err
		}
		if n == 0 {
			w.failures++
			return written, errNoProgress
		}
		written += n
	}
	w.failures = 0
	return written, nil
}
