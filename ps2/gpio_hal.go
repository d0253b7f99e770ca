package ps2

// PinID identifies a platform GPIO pin.
// Mapping it to a physical port and pin mask is up to the driver.
type PinID uint32

// Level is a logic level on a pin
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Direction selects whether a pin is sampled or driven
type Direction uint8

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// GPIODriver is the platform capability the link layer needs.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// SetDirection configures a pin as input or output
	SetDirection(pin PinID, dir Direction) error

	// SetLevel drives an output pin high or low
	SetLevel(pin PinID, level Level) error

	// GetLevel samples the current pin level.
	// It is called in tight polling loops and must not block.
	GetLevel(pin PinID) Level

	// DelayMicroseconds busy-waits for at least us microseconds
	DelayMicroseconds(us uint32)
}

// LimitPins wraps drv for a board with count GPIOs. Pins at or above count
// fail SetDirection and SetLevel with ErrInvalidPin and read High, the idle
// bus level.
func LimitPins(drv GPIODriver, count PinID) GPIODriver {
	return limitedDriver{drv: drv, count: count}
}

type limitedDriver struct {
	drv   GPIODriver
	count PinID
}

func (d limitedDriver) SetDirection(pin PinID, dir Direction) error {
	if pin >= d.count {
		return ErrInvalidPin
	}
	return d.drv.SetDirection(pin, dir)
}

func (d limitedDriver) SetLevel(pin PinID, level Level) error {
	if pin >= d.count {
		return ErrInvalidPin
	}
	return d.drv.SetLevel(pin, level)
}

func (d limitedDriver) GetLevel(pin PinID) Level {
	if pin >= d.count {
		return High
	}
	return d.drv.GetLevel(pin)
}

func (d limitedDriver) DelayMicroseconds(us uint32) { d.drv.DelayMicroseconds(us) }
