// Package remote drives a keyboard attached to a microcontroller running
// the ps2kbd firmware, over the framed serial protocol.
package remote

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"ps2kbd/protocol"
	"ps2kbd/ps2"
)

// DefaultTimeout bounds the wait for a reply to a command
const DefaultTimeout = 2 * time.Second

// Client implements ps2.Controller against the firmware
type Client struct {
	t              *transport
	closer         io.Closer
	timeout        time.Duration
	receiveTimeout time.Duration
	logger         *log.Logger
}

var _ ps2.Controller = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the reply timeout for ordinary commands
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithReceiveTimeout bounds Receive, which otherwise waits until a key
// event arrives.
func WithReceiveTimeout(d time.Duration) Option {
	return func(c *Client) { c.receiveTimeout = d }
}

// WithLogger logs every request and its outcome
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New starts a client on port. Closing the client closes port when it
// implements io.Closer.
func New(port io.ReadWriter, opts ...Option) *Client {
	c := &Client{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if cl, ok := port.(io.Closer); ok {
		c.closer = cl
	}
	c.t = newTransport(port)
	return c
}

// Close stops the client and closes its port
func (c *Client) Close() error {
	return c.t.close(c.closer)
}

// Call sends command id and returns the result values of a successful reply
func (c *Client) Call(id uint16, args func(protocol.OutputBuffer)) ([]byte, error) {
	return c.call(id, args, c.timeout)
}

func (c *Client) call(id uint16, args func(protocol.OutputBuffer), timeout time.Duration) ([]byte, error) {
	resp, err := c.t.roundTrip(id, args, timeout)
	if errors.Is(err, protocol.ErrMessageTooLong) {
		err = fmt.Errorf("%w: request does not fit one message", ps2.ErrInvalidArgument)
	}
	if err == nil {
		err = resp.Err()
	}
	if c.logger != nil {
		if err != nil {
			c.logger.Printf("remote: command %d: %v", id, err)
		} else {
			c.logger.Printf("remote: command %d: ok", id)
		}
	}
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) callByte(id uint16, args func(protocol.OutputBuffer)) (byte, error) {
	data, err := c.Call(id, args)
	if err != nil {
		return 0, err
	}
	return protocol.DecodeVLQByte(&data)
}

// Identify returns the firmware protocol version
func (c *Client) Identify() (string, error) {
	data, err := c.Call(protocol.CmdIdentify, nil)
	if err != nil {
		return "", err
	}
	return protocol.DecodeVLQString(&data)
}

// Configure initialises the firmware's link on pins. Zero edgeTimeout keeps
// edge waits unbounded; zero inhibitUs keeps the default hold time.
func (c *Client) Configure(pins ps2.Pins, edgeTimeout time.Duration, inhibitUs uint32) error {
	_, err := c.Call(protocol.CmdConfigKeyboard, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(pins.Clock))
		protocol.EncodeVLQUint(out, uint32(pins.Data))
		protocol.EncodeVLQUint(out, uint32(pins.ClockPulldown))
		protocol.EncodeVLQUint(out, uint32(pins.DataPulldown))
		protocol.EncodeVLQUint(out, uint32(edgeTimeout/time.Millisecond))
		protocol.EncodeVLQUint(out, inhibitUs)
	})
	return err
}

// Status is the firmware's view of the keyboard
type Status struct {
	Configured    bool
	State         ps2.SequenceState
	LastSendAcked bool
}

// KeyboardStatus reports whether the link is configured and what the
// command engine is doing
func (c *Client) KeyboardStatus() (Status, error) {
	data, err := c.Call(protocol.CmdGetKeyboardStatus, nil)
	if err != nil {
		return Status{}, err
	}
	var st Status
	var state uint32
	if st.Configured, err = protocol.DecodeVLQBool(&data); err != nil {
		return Status{}, err
	}
	if state, err = protocol.DecodeVLQUint(&data); err != nil {
		return Status{}, err
	}
	st.State = ps2.SequenceState(state)
	if st.LastSendAcked, err = protocol.DecodeVLQBool(&data); err != nil {
		return Status{}, err
	}
	return st, nil
}

// SetValidation replaces the firmware's receive validation policy
func (c *Client) SetValidation(p ps2.ValidationPolicy) error {
	start, stop, parity := p.Flags()
	_, err := c.Call(protocol.CmdSetValidation, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(start))
		protocol.EncodeVLQUint(out, uint32(stop))
		protocol.EncodeVLQUint(out, uint32(parity))
	})
	return err
}

// Validation reads the firmware's receive validation policy
func (c *Client) Validation() (ps2.ValidationPolicy, error) {
	data, err := c.Call(protocol.CmdGetValidation, nil)
	if err != nil {
		return ps2.ValidationPolicy{}, err
	}
	var flags [3]uint32
	for i := range flags {
		if flags[i], err = protocol.DecodeVLQUint(&data); err != nil {
			return ps2.ValidationPolicy{}, err
		}
	}
	return ps2.PolicyFromFlags(int(flags[0]), int(flags[1]), int(flags[2])), nil
}

// Receive waits for one byte from the keyboard
func (c *Client) Receive() (byte, error) {
	data, err := c.call(protocol.CmdReceive, nil, c.receiveTimeout)
	if err != nil {
		return 0, err
	}
	return protocol.DecodeVLQByte(&data)
}

// Send writes one raw byte to the keyboard
func (c *Client) Send(b byte) error {
	_, err := c.Call(protocol.CmdSend, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(b))
	})
	return err
}

// SetLEDs switches the lock indicators
func (c *Client) SetLEDs(num, caps, scroll bool) error {
	_, err := c.Call(protocol.CmdSetLEDs, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQBool(out, num)
		protocol.EncodeVLQBool(out, caps)
		protocol.EncodeVLQBool(out, scroll)
	})
	return err
}

// ConfigureKeyEvents sets which events the listed keys report
func (c *Client) ConfigureKeyEvents(keys []byte, ignoreBreak, ignoreTypematic bool) error {
	_, err := c.Call(protocol.CmdKeyEvents, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQBool(out, ignoreBreak)
		protocol.EncodeVLQBool(out, ignoreTypematic)
		protocol.EncodeVLQBytes(out, keys)
	})
	return err
}

// ConfigureAllKeyEvents sets which events every key reports
func (c *Client) ConfigureAllKeyEvents(ignoreBreak, ignoreTypematic bool) error {
	_, err := c.Call(protocol.CmdAllKeyEvents, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQBool(out, ignoreBreak)
		protocol.EncodeVLQBool(out, ignoreTypematic)
	})
	return err
}

// SetRepeatRateAndDelay sets the closest supported typematic values and
// returns them
func (c *Client) SetRepeatRateAndDelay(rate, delayMs int) (int, int, error) {
	data, err := c.Call(protocol.CmdSetTypematic, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQInt(out, int32(rate))
		protocol.EncodeVLQInt(out, int32(delayMs))
	})
	if err != nil {
		return 0, 0, err
	}
	actualRate, err := protocol.DecodeVLQInt(&data)
	if err != nil {
		return 0, 0, err
	}
	actualDelay, err := protocol.DecodeVLQInt(&data)
	if err != nil {
		return 0, 0, err
	}
	return int(actualRate), int(actualDelay), nil
}

// SetScanCodeSet selects scan code set 1, 2 or 3
func (c *Client) SetScanCodeSet(set int) error {
	_, err := c.Call(protocol.CmdSetScanCodeSet, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQInt(out, int32(set))
	})
	return err
}

// Enable resumes key scanning
func (c *Client) Enable() error {
	_, err := c.Call(protocol.CmdEnable, nil)
	return err
}

// Disable stops key scanning
func (c *Client) Disable() error {
	_, err := c.Call(protocol.CmdDisable, nil)
	return err
}

// ResetToDefault restores the keyboard's default settings
func (c *Client) ResetToDefault() error {
	_, err := c.Call(protocol.CmdDefault, nil)
	return err
}

// Reset restarts the keyboard and returns its first response
func (c *Client) Reset() (byte, error) { return c.callByte(protocol.CmdReset, nil) }

// Resend asks the keyboard for its last byte again
func (c *Client) Resend() (byte, error) { return c.callByte(protocol.CmdResend, nil) }

// Echo returns the keyboard's reply to an echo request
func (c *Client) Echo() (byte, error) { return c.callByte(protocol.CmdEcho, nil) }
