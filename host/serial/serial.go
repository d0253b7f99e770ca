// Package serial opens the host end of the link to the keyboard firmware.
package serial

import (
	"errors"
	"io"
)

// ErrNoDevice is returned when no device path is configured
var ErrNoDevice = errors.New("serial: no device configured")

// Port is a serial connection. Implementations: NativePort over
// github.com/tarm/serial, in-memory pipes in tests.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; ignored by USB CDC devices
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultBaud is the baud rate of the firmware's hardware UART
const DefaultBaud = 115200

// DefaultConfig returns the configuration for a firmware on device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}

// Validate checks a configuration before opening
func (c *Config) Validate() error {
	if c == nil || c.Device == "" {
		return ErrNoDevice
	}
	if c.Baud <= 0 {
		return errors.New("serial: baud rate must be positive")
	}
	if c.ReadTimeout < 0 {
		return errors.New("serial: read timeout must not be negative")
	}
	return nil
}
