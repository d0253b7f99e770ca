// Package config loads the host tool configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"ps2kbd/host/serial"
	"ps2kbd/ps2"
)

// Backends
const (
	BackendSerial = "serial" // firmware on a microcontroller
	BackendPeriph = "periph" // local GPIO through periph.io
	BackendRPIO   = "rpio"   // local GPIO through /dev/gpiomem
)

// Config is the host tool configuration
type Config struct {
	Backend        string     `json:"backend"`
	Device         string     `json:"device"`
	Baud           int        `json:"baud"`
	ReadTimeoutMs  int        `json:"read_timeout_ms"`
	ReplyTimeoutMs int        `json:"reply_timeout_ms"`
	Pins           Pins       `json:"pins"`
	Validation     Validation `json:"validation"`
	EdgeTimeoutMs  int        `json:"edge_timeout_ms"`
	InhibitUs      int        `json:"inhibit_us"`
	Verbose        bool       `json:"verbose"`
}

// Pins are GPIO numbers: RP2040 GPn for the serial backend, BCM numbers for
// the local backends.
type Pins struct {
	Clock         uint32 `json:"clock"`
	Data          uint32 `json:"data"`
	ClockPulldown uint32 `json:"clock_pulldown"`
	DataPulldown  uint32 `json:"data_pulldown"`
}

// Validation holds receive checks as flags: 0 uses a check, 1 ignores it
type Validation struct {
	Start  int `json:"start"`
	Stop   int `json:"stop"`
	Parity int `json:"parity"`
}

// DefaultPins is used when the file names no pins
var DefaultPins = Pins{Clock: 2, Data: 3, ClockPulldown: 4, DataPulldown: 5}

// Load reads and validates the configuration file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a JSON configuration, fills in defaults and validates it
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used without a file
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults fills in missing configuration values
func applyDefaults(cfg *Config) {
	if cfg.Backend == "" {
		cfg.Backend = BackendSerial
	}
	if cfg.Backend == BackendSerial && cfg.Device == "" {
		cfg.Device = "/dev/ttyACM0"
	}
	if cfg.Baud == 0 {
		cfg.Baud = serial.DefaultBaud
	}
	if cfg.ReadTimeoutMs == 0 {
		cfg.ReadTimeoutMs = 100
	}
	if cfg.ReplyTimeoutMs == 0 {
		cfg.ReplyTimeoutMs = 2000
	}
	if cfg.Pins == (Pins{}) {
		cfg.Pins = DefaultPins
	}
	if cfg.InhibitUs == 0 {
		cfg.InhibitUs = ps2.DefaultInhibitMicros
	}
}

// Validate reports the first problem with the configuration
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSerial:
		if c.Device == "" {
			return errors.New("config: serial backend needs a device")
		}
	case BackendPeriph, BackendRPIO:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	pins := []uint32{c.Pins.Clock, c.Pins.Data, c.Pins.ClockPulldown, c.Pins.DataPulldown}
	for i := range pins {
		for j := i + 1; j < len(pins); j++ {
			if pins[i] == pins[j] {
				return fmt.Errorf("config: pin %d assigned twice", pins[i])
			}
		}
	}

	checks := []struct {
		name string
		flag int
	}{
		{"start", c.Validation.Start},
		{"stop", c.Validation.Stop},
		{"parity", c.Validation.Parity},
	}
	for _, chk := range checks {
		if chk.flag != ps2.Use && chk.flag != ps2.Ignore {
			return fmt.Errorf("config: validation %s must be %d (use) or %d (ignore), got %d",
				chk.name, ps2.Use, ps2.Ignore, chk.flag)
		}
	}

	switch {
	case c.Baud < 0:
		return errors.New("config: baud must be positive")
	case c.ReadTimeoutMs < 0, c.ReplyTimeoutMs < 0, c.EdgeTimeoutMs < 0:
		return errors.New("config: timeouts must not be negative")
	case c.InhibitUs != 0 && c.InhibitUs < ps2.MinInhibitMicros:
		return fmt.Errorf("config: inhibit_us must be at least %d", ps2.MinInhibitMicros)
	}
	return nil
}

// PS2Pins returns the pin assignment for a link
func (c *Config) PS2Pins() ps2.Pins {
	return ps2.Pins{
		Clock:         ps2.PinID(c.Pins.Clock),
		Data:          ps2.PinID(c.Pins.Data),
		ClockPulldown: ps2.PinID(c.Pins.ClockPulldown),
		DataPulldown:  ps2.PinID(c.Pins.DataPulldown),
	}
}

// Policy returns the receive validation policy
func (c *Config) Policy() ps2.ValidationPolicy {
	return ps2.PolicyFromFlags(c.Validation.Start, c.Validation.Stop, c.Validation.Parity)
}

// EdgeTimeout returns the bounded edge wait, zero for unbounded
func (c *Config) EdgeTimeout() time.Duration {
	return time.Duration(c.EdgeTimeoutMs) * time.Millisecond
}

// ReplyTimeout returns how long the host waits for the firmware
func (c *Config) ReplyTimeout() time.Duration {
	return time.Duration(c.ReplyTimeoutMs) * time.Millisecond
}

// LinkOptions returns the options for a local link
func (c *Config) LinkOptions() []ps2.LinkOption {
	opts := []ps2.LinkOption{ps2.WithPolicy(c.Policy())}
	if c.EdgeTimeoutMs > 0 {
		opts = append(opts, ps2.WithEdgeTimeout(c.EdgeTimeout()))
	}
	if c.InhibitUs > 0 {
		opts = append(opts, ps2.WithInhibitTime(uint32(c.InhibitUs)))
	}
	return opts
}

// SerialConfig returns the serial port settings
func (c *Config) SerialConfig() *serial.Config {
	return &serial.Config{
		Device:      c.Device,
		Baud:        c.Baud,
		ReadTimeout: c.ReadTimeoutMs,
	}
}
