package remote

import (
	"errors"
	"fmt"

	"ps2kbd/protocol"
	"ps2kbd/ps2"
)

var (
	// ErrReplyTimeout is returned when the firmware does not answer in time
	ErrReplyTimeout = errors.New("remote: no reply from firmware")

	// ErrClosed is returned once the client or its port is closed
	ErrClosed = errors.New("remote: connection closed")

	ErrUnknownCommand = errors.New("remote: firmware does not know the command")
	ErrMalformed      = errors.New("remote: firmware rejected malformed request")
)

// FirmwareError carries the message of an unclassified firmware failure
type FirmwareError struct {
	Command uint16
	Msg     string
}

func (e *FirmwareError) Error() string {
	return fmt.Sprintf("remote: firmware error on command %d: %s", e.Command, e.Msg)
}

// Err turns a non-OK response into the error the firmware handler
// returned, so errors.Is and errors.As work as they do locally.
func (r *Response) Err() error {
	data := r.Data
	switch r.Status {
	case protocol.StatusOK:
		return nil
	case protocol.StatusFraming:
		if fe := decodeFraming(&data); fe != nil {
			return fe
		}
		return ps2.ErrFraming
	case protocol.StatusAbort:
		return decodeAbort(&data)
	case protocol.StatusInvalidArgument:
		return fmt.Errorf("%w (command %d)", ps2.ErrInvalidArgument, r.Command)
	case protocol.StatusTimeout:
		return ps2.ErrTimeout
	case protocol.StatusNotConfigured:
		return ps2.ErrNotConfigured
	case protocol.StatusUnknownCommand:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, r.Command)
	case protocol.StatusMalformed:
		return fmt.Errorf("%w: command %d", ErrMalformed, r.Command)
	default:
		msg, err := protocol.DecodeVLQString(&data)
		if err != nil {
			msg = r.Status.String()
		}
		return &FirmwareError{Command: r.Command, Msg: msg}
	}
}

func decodeAbort(data *[]byte) error {
	var v [4]uint32
	for i := range v {
		var err error
		if v[i], err = protocol.DecodeVLQUint(data); err != nil {
			return ps2.ErrAbort
		}
	}
	abort := &ps2.AbortError{Command: byte(v[0]), Step: int(v[1]), Got: byte(v[2])}
	switch protocol.Status(v[3]) {
	case protocol.StatusOK:
	case protocol.StatusFraming:
		if fe := decodeFraming(data); fe != nil {
			abort.Err = fe
		} else {
			abort.Err = ps2.ErrFraming
		}
	case protocol.StatusTimeout:
		abort.Err = ps2.ErrTimeout
	default:
		abort.Err = &FirmwareError{Msg: protocol.Status(v[3]).String()}
	}
	return abort
}

func decodeFraming(data *[]byte) *ps2.FramingError {
	flags, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return nil
	}
	frame, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return nil
	}
	return &ps2.FramingError{
		Frame:     ps2.Frame(frame),
		BadStart:  flags&protocol.FramingBadStart != 0,
		BadStop:   flags&protocol.FramingBadStop != 0,
		BadParity: flags&protocol.FramingBadParity != 0,
	}
}
