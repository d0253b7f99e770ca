package ps2

import (
	"errors"
	"strings"
)

var (
	// ErrFraming is returned when a received frame fails an enabled
	// start, stop or parity check
	ErrFraming = errors.New("ps2: framing violation")

	// ErrAbort is returned when a multi-step command did not get an ACK
	ErrAbort = errors.New("ps2: command aborted, no ACK")

	// ErrInvalidArgument is returned for parameters the keyboard has no code for
	ErrInvalidArgument = errors.New("ps2: invalid argument")

	// ErrTimeout is returned by a link configured with an edge timeout
	ErrTimeout = errors.New("ps2: timed out waiting for clock edge")

	// ErrInvalidPin is returned for a pin the board does not have
	ErrInvalidPin = errors.New("ps2: no such pin")

	// ErrNotConfigured is returned when no link has been initialised
	ErrNotConfigured = errors.New("ps2: keyboard not configured")
)

// FramingError describes which checks a received frame failed
type FramingError struct {
	Frame     Frame
	BadStart  bool
	BadStop   bool
	BadParity bool
}

func (e *FramingError) Error() string {
	var failed []string
	if e.BadStart {
		failed = append(failed, "start")
	}
	if e.BadStop {
		failed = append(failed, "stop")
	}
	if e.BadParity {
		failed = append(failed, "parity")
	}
	return ErrFraming.Error() + " (" + strings.Join(failed, ", ") + "; frame=0x" + hex16(uint16(e.Frame)) + ")"
}

func (e *FramingError) Unwrap() error { return ErrFraming }

// AbortError reports where a multi-step command stopped.
// Step 0 is the ACK for the command byte, step n the ACK for list item n.
// Err holds the receive error when no valid byte arrived at all.
type AbortError struct {
	Command byte
	Step    int
	Got     byte
	Err     error
}

func (e *AbortError) Error() string {
	msg := ErrAbort.Error() + " (command 0x" + hex8(e.Command) + " step " + itoa(e.Step)
	if e.Err != nil {
		return msg + ": " + e.Err.Error() + ")"
	}
	return msg + " got 0x" + hex8(e.Got) + ")"
}

func (e *AbortError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAbort, e.Err}
	}
	return []error{ErrAbort}
}
