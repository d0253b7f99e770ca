package core

import (
	"errors"

	"ps2kbd/protocol"
	"ps2kbd/ps2"
)

// maxErrorText bounds the message carried by StatusError responses
const maxErrorText = 40

// StatusOf maps a handler error to its wire status
func StatusOf(err error) protocol.Status {
	var abort *ps2.AbortError
	switch {
	case err == nil:
		return protocol.StatusOK
	case errors.As(err, &abort):
		return protocol.StatusAbort
	case errors.Is(err, ps2.ErrFraming):
		return protocol.StatusFraming
	case errors.Is(err, ps2.ErrInvalidArgument):
		return protocol.StatusInvalidArgument
	case errors.Is(err, ps2.ErrTimeout):
		return protocol.StatusTimeout
	case errors.Is(err, ps2.ErrNotConfigured):
		return protocol.StatusNotConfigured
	case errors.Is(err, ErrUnknownCommand):
		return protocol.StatusUnknownCommand
	case errors.Is(err, ErrMalformed),
		errors.Is(err, protocol.ErrBufferTooSmall),
		errors.Is(err, protocol.ErrInvalidVLQ):
		return protocol.StatusMalformed
	default:
		return protocol.StatusError
	}
}

// EncodeStatus writes the status for err followed by its details:
//
//	framing: flags frame
//	abort:   command step got cause
//	error:   message
func EncodeStatus(out protocol.OutputBuffer, err error) {
	st := StatusOf(err)
	protocol.EncodeVLQUint(out, uint32(st))

	switch st {
	case protocol.StatusAbort:
		var abort *ps2.AbortError
		errors.As(err, &abort)
		protocol.EncodeVLQUint(out, uint32(abort.Command))
		protocol.EncodeVLQUint(out, uint32(abort.Step))
		protocol.EncodeVLQUint(out, uint32(abort.Got))
		protocol.EncodeVLQUint(out, uint32(StatusOf(abort.Err)))
		encodeFraming(out, abort.Err)
	case protocol.StatusFraming:
		encodeFraming(out, err)
	case protocol.StatusError:
		msg := err.Error()
		if len(msg) > maxErrorText {
			msg = msg[:maxErrorText]
		}
		protocol.EncodeVLQString(out, msg)
	}
}

// encodeFraming writes the failed checks and raw frame of a framing error
func encodeFraming(out protocol.OutputBuffer, err error) {
	var fe *ps2.FramingError
	if !errors.As(err, &fe) {
		return
	}
	var flags uint32
	if fe.BadStart {
		flags |= protocol.FramingBadStart
	}
	if fe.BadStop {
		flags |= protocol.FramingBadStop
	}
	if fe.BadParity {
		flags |= protocol.FramingBadParity
	}
	protocol.EncodeVLQUint(out, flags)
	protocol.EncodeVLQUint(out, uint32(fe.Frame))
}
