package ps2

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Keyboard command codes
const (
	CmdSetLEDs         = 0xED
	CmdEcho            = 0xEE
	CmdSetScanCodeSet  = 0xF0
	CmdSetTypematic    = 0xF3
	CmdEnable          = 0xF4
	CmdDisable         = 0xF5
	CmdDefault         = 0xF6
	CmdAllMakeType     = 0xF7 // all keys: make and typematic
	CmdAllMakeBreak    = 0xF8 // all keys: make and break
	CmdAllMakeOnly     = 0xF9 // all keys: make only
	CmdAllMakeBreakTyp = 0xFA // all keys: make, break and typematic
	CmdKeyMakeType     = 0xFB // listed keys: make and typematic
	CmdKeyMakeBreak    = 0xFC // listed keys: make and break
	CmdKeyMakeOnly     = 0xFD // listed keys: make only
	CmdResend          = 0xFE
	CmdReset           = 0xFF
)

// Keyboard response codes
const (
	ACK       = 0xFA
	ECHO      = 0xEE
	BATPassed = 0xAA
	RespError = 0xFC
	RespAgain = 0xFE

	// ErrorSentinel is the byte scripting bindings report for a failed
	// receive. Receive returns failures as errors instead.
	ErrorSentinel = 0
)

// LED bits of the set-LEDs parameter
const (
	LEDScroll = 1 << 0
	LEDNum    = 1 << 1
	LEDCaps   = 1 << 2
)

// Controller is the keyboard operation set, local or remote
type Controller interface {
	SetValidation(p ValidationPolicy) error
	Validation() (ValidationPolicy, error)
	Receive() (byte, error)
	Send(b byte) error
	SetLEDs(num, caps, scroll bool) error
	ConfigureKeyEvents(keys []byte, ignoreBreak, ignoreTypematic bool) error
	ConfigureAllKeyEvents(ignoreBreak, ignoreTypematic bool) error
	SetRepeatRateAndDelay(rate, delayMs int) (actualRate, actualDelay int, err error)
	SetScanCodeSet(set int) error
	Enable() error
	Disable() error
	ResetToDefault() error
	Reset() (byte, error)
	Resend() (byte, error)
	Echo() (byte, error)
}

// SequenceState tracks a multi-step command
type SequenceState uint32

const (
	StateIdle SequenceState = iota
	StateAwaitingFirstAck
	StateSendingListItems
	StateAwaitingItemAck
	StateSendingTerminator
)

func (s SequenceState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstAck:
		return "awaiting-first-ack"
	case StateSendingListItems:
		return "sending-list-items"
	case StateAwaitingItemAck:
		return "awaiting-item-ack"
	case StateSendingTerminator:
		return "sending-terminator"
	default:
		return "unknown"
	}
}

// Keyboard runs keyboard commands over a Link. Commands are serialised:
// one caller at a time owns the bus. No command retries on its own.
type Keyboard struct {
	mu    sync.Mutex
	link  *Link
	state uint32 // SequenceState, atomic
	debug DebugWriter
}

var _ Controller = (*Keyboard)(nil)

// NewKeyboard wraps an initialised link
func NewKeyboard(link *Link) *Keyboard {
	return &Keyboard{link: link}
}

// SetDebugWriter traces state transitions to w
func (k *Keyboard) SetDebugWriter(w DebugWriter) {
	k.mu.Lock()
	k.debug = w
	k.mu.Unlock()
}

// Link returns the underlying link
func (k *Keyboard) Link() *Link { return k.link }

// State returns the state of the running multi-step command
func (k *Keyboard) State() SequenceState {
	return SequenceState(atomic.LoadUint32(&k.state))
}

func (k *Keyboard) setState(s SequenceState) {
	atomic.StoreUint32(&k.state, uint32(s))
	if k.debug != nil {
		k.debug("ps2: state " + s.String())
	}
}

// SetValidation replaces the receive validation policy
func (k *Keyboard) SetValidation(p ValidationPolicy) error {
	k.link.SetPolicy(p)
	return nil
}

// Validation returns the receive validation policy
func (k *Keyboard) Validation() (ValidationPolicy, error) {
	return k.link.Policy(), nil
}

// Receive waits for one byte from the keyboard
func (k *Keyboard) Receive() (byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.link.ReceiveByte()
}

// Send writes one raw byte to the keyboard
func (k *Keyboard) Send(b byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.link.SendByte(b)
}

// SetLEDs switches the Num, Caps and Scroll Lock indicators
func (k *Keyboard) SetLEDs(num, caps, scroll bool) error {
	var leds byte
	if scroll {
		leds |= LEDScroll
	}
	if num {
		leds |= LEDNum
	}
	if caps {
		leds |= LEDCaps
	}
	return k.withParam(CmdSetLEDs, leds, false)
}

// ConfigureKeyEvents sets which events the listed keys report. The keyboard
// has no per-key code for reporting everything, so clearing both ignore
// flags is rejected without touching the bus.
func (k *Keyboard) ConfigureKeyEvents(keys []byte, ignoreBreak, ignoreTypematic bool) error {
	code, ok := KeyEventsCode(ignoreBreak, ignoreTypematic)
	if !ok {
		return fmt.Errorf("%w: listed keys always report make codes, ignore break or typematic", ErrInvalidArgument)
	}
	return k.list(code, keys)
}

// ConfigureAllKeyEvents sets which events every key reports
func (k *Keyboard) ConfigureAllKeyEvents(ignoreBreak, ignoreTypematic bool) error {
	return k.list(AllKeyEventsCode(ignoreBreak, ignoreTypematic), nil)
}

// SetRepeatRateAndDelay sets the typematic rate and delay to the supported
// values closest to the requested ones and returns those values.
func (k *Keyboard) SetRepeatRateAndDelay(rate, delayMs int) (int, int, error) {
	code, actualRate, actualDelay := SelectTypematic(rate, delayMs)
	if err := k.withParam(CmdSetTypematic, code, false); err != nil {
		return 0, 0, err
	}
	return actualRate, actualDelay, nil
}

// SetScanCodeSet selects scan code set 1, 2 or 3
func (k *Keyboard) SetScanCodeSet(set int) error {
	if set < 1 || set > 3 {
		return fmt.Errorf("%w: scan code set %d, want 1..3", ErrInvalidArgument, set)
	}
	return k.withParam(CmdSetScanCodeSet, byte(set), true)
}

// Enable resumes key scanning
func (k *Keyboard) Enable() error { return k.command(CmdEnable) }

// Disable stops key scanning and restores the default configuration
func (k *Keyboard) Disable() error { return k.command(CmdDisable) }

// ResetToDefault restores the default typematic settings, key event types
// and scan code set 2
func (k *Keyboard) ResetToDefault() error { return k.command(CmdDefault) }

// Reset restarts the keyboard and returns its first response, normally ACK
func (k *Keyboard) Reset() (byte, error) { return k.query(CmdReset) }

// Resend asks the keyboard for its last byte again
func (k *Keyboard) Resend() (byte, error) { return k.query(CmdResend) }

// Echo returns the keyboard's reply to an echo request, normally ECHO
func (k *Keyboard) Echo() (byte, error) { return k.query(CmdEcho) }

// KeyEventsCode returns the listed-keys command for the ignore flags.
// ok is false when both flags are clear.
func KeyEventsCode(ignoreBreak, ignoreTypematic bool) (code byte, ok bool) {
	switch {
	case ignoreBreak && ignoreTypematic:
		return CmdKeyMakeOnly, true
	case ignoreBreak:
		return CmdKeyMakeType, true
	case ignoreTypematic:
		return CmdKeyMakeBreak, true
	default:
		return 0, false
	}
}

// AllKeyEventsCode returns the all-keys command for the ignore flags
func AllKeyEventsCode(ignoreBreak, ignoreTypematic bool) byte {
	switch {
	case ignoreBreak && ignoreTypematic:
		return CmdAllMakeOnly
	case ignoreBreak:
		return CmdAllMakeType
	case ignoreTypematic:
		return CmdAllMakeBreak
	default:
		return CmdAllMakeBreakTyp
	}
}

// command sends a single byte and does not wait for anything
func (k *Keyboard) command(code byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.link.SendByte(code)
}

// query sends a single byte and returns the next byte received
func (k *Keyboard) query(code byte) (byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.link.SendByte(code); err != nil {
		return 0, err
	}
	return k.link.ReceiveByte()
}

// withParam sends a command and its parameter, optionally requiring an ACK
// in between
func (k *Keyboard) withParam(code, param byte, awaitAck bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.link.SendByte(code); err != nil {
		return err
	}
	if awaitAck {
		k.setState(StateAwaitingFirstAck)
		err := k.expectAck(code, 0)
		k.setState(StateIdle)
		if err != nil {
			return err
		}
	}
	return k.link.SendByte(param)
}

// list sends a command, each item of a key list with an ACK after every
// byte, and ends the list with ECHO. The first missing ACK aborts.
func (k *Keyboard) list(code byte, items []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	defer k.setState(StateIdle)

	k.setState(StateAwaitingFirstAck)
	if err := k.link.SendByte(code); err != nil {
		return err
	}
	if err := k.expectAck(code, 0); err != nil {
		return err
	}

	for i, item := range items {
		k.setState(StateSendingListItems)
		if err := k.link.SendByte(item); err != nil {
			return err
		}
		k.setState(StateAwaitingItemAck)
		if err := k.expectAck(code, i+1); err != nil {
			return err
		}
	}

	k.setState(StateSendingTerminator)
	if err := k.link.SendByte(CmdEcho); err != nil {
		return err
	}
	// the keyboard answers the terminator like an echo request; drain it
	if _, err := k.link.ReceiveByte(); err != nil && !errors.Is(err, ErrFraming) {
		return err
	}
	return nil
}

// expectAck reads one byte and turns anything but ACK into an AbortError
func (k *Keyboard) expectAck(code byte, step int) error {
	b, err := k.link.ReceiveByte()
	if err == nil && b == ACK {
		return nil
	}
	return &AbortError{Command: code, Step: step, Got: b, Err: err}
}
