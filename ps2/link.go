package ps2

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Request-to-send timing, in microseconds
const (
	DefaultInhibitMicros = 120
	MinInhibitMicros     = 100
)

// Pins holds the four lines of a bus. Clock and Data are sampled,
// the pulldowns drive the lines low when set Low and release them when set High.
type Pins struct {
	Clock         PinID
	Data          PinID
	ClockPulldown PinID
	DataPulldown  PinID
}

// Edge names the clock transition a wait is for
type Edge uint8

const (
	Rising  Edge = iota // clock high
	Falling             // clock low
)

// DebugWriter receives trace lines
type DebugWriter func(string)

// Link moves single bytes over the bus. Only one transfer may run at a time;
// Keyboard provides that serialisation.
//
// Every clock wait is a busy poll. With no edge timeout (the default) a
// keyboard that stops clocking blocks the caller forever.
type Link struct {
	drv  GPIODriver
	pins Pins

	policy  uint32 // ValidationPolicy.bits, atomic
	lastAck uint32 // 1 if the last send saw the device ACK bit, atomic

	edgeTimeout time.Duration
	inhibitUs   uint32
	debug       DebugWriter
}

// LinkOption customises a Link
type LinkOption func(*Link)

// WithEdgeTimeout bounds every clock wait. Waits that run past d fail with
// ErrTimeout. Zero keeps the blocking behavior.
func WithEdgeTimeout(d time.Duration) LinkOption {
	return func(l *Link) { l.edgeTimeout = d }
}

// WithInhibitTime sets how long the clock is held low before a send.
// Values under MinInhibitMicros are raised to it.
func WithInhibitTime(us uint32) LinkOption {
	return func(l *Link) {
		if us < MinInhibitMicros {
			us = MinInhibitMicros
		}
		l.inhibitUs = us
	}
}

// WithPolicy sets the initial validation policy
func WithPolicy(p ValidationPolicy) LinkOption {
	return func(l *Link) { l.policy = p.bits() }
}

// WithDebug traces every frame to w
func WithDebug(w DebugWriter) LinkOption {
	return func(l *Link) { l.debug = w }
}

// NewLink configures the pins and releases both lines.
func NewLink(drv GPIODriver, pins Pins, opts ...LinkOption) (*Link, error) {
	if drv == nil {
		return nil, errors.New("ps2: nil GPIO driver")
	}

	l := &Link{
		drv:       drv,
		pins:      pins,
		policy:    DefaultPolicy().bits(),
		inhibitUs: DefaultInhibitMicros,
	}
	for _, opt := range opts {
		opt(l)
	}

	dirs := []struct {
		pin PinID
		dir Direction
	}{
		{pins.ClockPulldown, Output},
		{pins.DataPulldown, Output},
		{pins.Data, Input},
		{pins.Clock, Input},
	}
	for _, d := range dirs {
		if err := drv.SetDirection(d.pin, d.dir); err != nil {
			return nil, fmt.Errorf("ps2: pin %d as %s: %w", d.pin, d.dir, err)
		}
	}

	if err := l.release(); err != nil {
		return nil, err
	}
	return l, nil
}

// Pins returns the lines the link was configured with
func (l *Link) Pins() Pins { return l.pins }

// Policy returns the current validation policy
func (l *Link) Policy() ValidationPolicy {
	return policyFromBits(atomic.LoadUint32(&l.policy))
}

// SetPolicy replaces the validation policy. It takes effect on the next receive.
func (l *Link) SetPolicy(p ValidationPolicy) {
	atomic.StoreUint32(&l.policy, p.bits())
}

// LastSendAcked reports whether the device pulled data low during the ACK
// bit of the last SendByte. It is informational only.
func (l *Link) LastSendAcked() bool {
	return atomic.LoadUint32(&l.lastAck) == 1
}

// awaitEdge spins until the clock reaches the level e names. It returns at
// once when the clock is already there, so callers alternate Rising and
// Falling waits to follow the device's clock.
func (l *Link) awaitEdge(e Edge) error {
	want := High
	if e == Falling {
		want = Low
	}

	if l.edgeTimeout <= 0 {
		for l.drv.GetLevel(l.pins.Clock) != want {
		}
		return nil
	}

	deadline := time.Now().Add(l.edgeTimeout)
	for n := 0; l.drv.GetLevel(l.pins.Clock) != want; n++ {
		// check the deadline every 64 polls
		if n&0x3F == 0 && time.Now().After(deadline) {
			return ErrTimeout
		}
	}
	return nil
}

// ReceiveByte clocks in one frame from the keyboard and checks it against
// the current policy.
func (l *Link) ReceiveByte() (byte, error) {
	var f Frame
	for i := 0; i < FrameBits; i++ {
		if err := l.awaitEdge(Rising); err != nil {
			return 0, err
		}
		// the stop bit is sampled on the rising edge, the rest once clock drops
		if i < FrameBits-1 {
			if err := l.awaitEdge(Falling); err != nil {
				return 0, err
			}
		}
		if l.drv.GetLevel(l.pins.Data) == High {
			f |= 1 << uint(i)
		}
	}

	b, err := DecodeFrame(f, l.Policy())
	if l.debug != nil {
		if err != nil {
			l.debug("ps2: rx " + err.Error())
		} else {
			l.debug("ps2: rx 0x" + hex8(b))
		}
	}
	return b, err
}

// SendByte runs the request-to-send handshake and clocks b out to the
// keyboard. The device ACK bit is sampled but never checked.
func (l *Link) SendByte(b byte) error {
	f := NewFrame(b)

	// inhibit, then present the start bit and hand the clock back
	if err := l.drv.SetLevel(l.pins.ClockPulldown, Low); err != nil {
		return fmt.Errorf("ps2: inhibit clock: %w", err)
	}
	l.drv.DelayMicroseconds(l.inhibitUs)
	if err := l.drv.SetLevel(l.pins.DataPulldown, Low); err != nil {
		_ = l.release()
		return fmt.Errorf("ps2: start bit: %w", err)
	}
	if err := l.drv.SetLevel(l.pins.ClockPulldown, High); err != nil {
		_ = l.release()
		return fmt.Errorf("ps2: release clock: %w", err)
	}

	acked := false
	for i := 1; i <= FrameBits; i++ {
		if err := l.awaitEdge(Falling); err != nil {
			_ = l.release()
			return err
		}

		if i < FrameBits {
			// data bits, parity, stop
			if err := l.drv.SetLevel(l.pins.DataPulldown, Level(f.Bit(i) == 1)); err != nil {
				_ = l.release()
				return fmt.Errorf("ps2: bit %d: %w", i, err)
			}
		} else {
			acked = l.drv.GetLevel(l.pins.Data) == Low
		}

		if err := l.awaitEdge(Rising); err != nil {
			_ = l.release()
			return err
		}
	}

	if acked {
		atomic.StoreUint32(&l.lastAck, 1)
	} else {
		atomic.StoreUint32(&l.lastAck, 0)
	}
	if l.debug != nil {
		msg := "ps2: tx 0x" + hex8(b)
		if !acked {
			msg += " (no line ack)"
		}
		l.debug(msg)
	}
	return nil
}

// release lets both lines float high
func (l *Link) release() error {
	if err := l.drv.SetLevel(l.pins.DataPulldown, High); err != nil {
		return fmt.Errorf("ps2: release data: %w", err)
	}
	if err := l.drv.SetLevel(l.pins.ClockPulldown, High); err != nil {
		return fmt.Errorf("ps2: release clock: %w", err)
	}
	return nil
}
