// Package ps2test provides a simulated PS/2 keyboard for testing code that
// drives a ps2.Link. The simulation is single threaded: every poll of the
// clock pin advances the keyboard by one step, so no real timing is involved.
package ps2test

import (
	"errors"
	"sync"

	"ps2kbd/ps2"
)

// DefaultPins is the pin assignment NewKeyboard uses
var DefaultPins = ps2.Pins{Clock: 1, Data: 2, ClockPulldown: 3, DataPulldown: 4}

// Transfer is one byte the keyboard clocked in from the host
type Transfer struct {
	Data     byte
	Frame    ps2.Frame
	ParityOK bool
	StopOK   bool
	Acked    bool // the host waited through the ACK bit
}

// InterceptFunc can replace the keyboard's reply to the n-th received byte
// (counting from 0). Returning handled=false falls through to the normal reply.
// It runs with the keyboard locked and must not call the keyboard's methods.
type InterceptFunc func(n int, b byte) (reply []byte, handled bool)

type phase struct {
	clock ps2.Level
	data  ps2.Level
	polls int
	begin func()
}

// Keyboard implements ps2.GPIODriver as seen from the host side of a bus
// with a keyboard attached.
type Keyboard struct {
	mu sync.Mutex

	pins ps2.Pins

	// HalfPeriod is the number of clock polls each clock phase lasts
	HalfPeriod int
	// IdleLimit is how many clock polls the host may spend waiting on an
	// idle keyboard before the simulation panics instead of hanging
	IdleLimit int
	// Intercept overrides replies, e.g. to inject a NAK
	Intercept InterceptFunc
	// CorruptReply reports whether the reply to the n-th received byte goes
	// out with its parity bit flipped
	CorruptReply func(n int) bool

	dirs   map[ps2.PinID]ps2.Direction
	levels map[ps2.PinID]ps2.Level

	devClock ps2.Level
	devData  ps2.Level

	wave    []phase
	pos     int
	left    int
	txFrame ps2.Frame
	txDone  bool
	txBusy  bool

	rts       bool
	rxFrame   ps2.Frame
	inhibitUs uint32
	inhibit   bool
	idlePolls int

	out      []ps2.Frame
	received []Transfer
	sent     []ps2.Frame
	delays   []uint32
	inhibits []uint32

	state State
}

// NewKeyboard returns a keyboard on DefaultPins
func NewKeyboard() *Keyboard {
	return NewKeyboardOn(DefaultPins)
}

// NewKeyboardOn returns a keyboard wired to pins
func NewKeyboardOn(pins ps2.Pins) *Keyboard {
	return &Keyboard{
		pins:       pins,
		HalfPeriod: 2,
		IdleLimit:  100000,
		dirs:       make(map[ps2.PinID]ps2.Direction),
		levels:     make(map[ps2.PinID]ps2.Level),
		devClock:   ps2.High,
		devData:    ps2.High,
		state:      defaultState(),
	}
}

// Pins returns the keyboard's pin assignment
func (k *Keyboard) Pins() ps2.Pins { return k.pins }

// SetDirection implements ps2.GPIODriver
func (k *Keyboard) SetDirection(pin ps2.PinID, dir ps2.Direction) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.known(pin) {
		return errors.New("ps2test: unknown pin")
	}
	k.dirs[pin] = dir
	if dir == ps2.Output {
		if _, ok := k.levels[pin]; !ok {
			k.levels[pin] = ps2.High
		}
	}
	return nil
}

// SetLevel implements ps2.GPIODriver
func (k *Keyboard) SetLevel(pin ps2.PinID, level ps2.Level) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.dirs[pin] != ps2.Output {
		return errors.New("ps2test: pin is not an output")
	}
	prev := k.pulldown(pin)
	k.levels[pin] = level

	if pin == k.pins.ClockPulldown {
		switch {
		case prev == ps2.High && level == ps2.Low:
			k.inhibit = true
			k.inhibitUs = 0
			k.abortTransmit()
		case prev == ps2.Low && level == ps2.High:
			k.inhibit = false
			k.inhibits = append(k.inhibits, k.inhibitUs)
			// clock released with data held low is a request to send
			if k.pulldown(k.pins.DataPulldown) == ps2.Low {
				k.rts = true
			}
		}
	}
	return nil
}

// GetLevel implements ps2.GPIODriver. Reading the clock advances the keyboard.
func (k *Keyboard) GetLevel(pin ps2.PinID) ps2.Level {
	k.mu.Lock()
	defer k.mu.Unlock()
	switch pin {
	case k.pins.Clock:
		k.tick()
		return k.devClock && k.pulldown(k.pins.ClockPulldown)
	case k.pins.Data:
		return k.devData && k.pulldown(k.pins.DataPulldown)
	default:
		return k.pulldown(pin)
	}
}

// DelayMicroseconds implements ps2.GPIODriver
func (k *Keyboard) DelayMicroseconds(us uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.delays = append(k.delays, us)
	if k.inhibit {
		k.inhibitUs += us
	}
}

// Queue makes the keyboard transmit bytes to the host, e.g. scan codes
func (k *Keyboard) Queue(data ...byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, b := range data {
		k.out = append(k.out, ps2.NewFrame(b))
	}
}

// QueueFrame makes the keyboard transmit a raw, possibly malformed, frame
func (k *Keyboard) QueueFrame(f ps2.Frame) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.out = append(k.out, f)
}

// Received returns every byte the host sent
func (k *Keyboard) Received() []Transfer {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]Transfer(nil), k.received...)
}

// ReceivedBytes returns the data of every byte the host sent
func (k *Keyboard) ReceivedBytes() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]byte, 0, len(k.received))
	for _, t := range k.received {
		out = append(out, t.Data)
	}
	return out
}

// Sent returns every frame the host clocked in completely
func (k *Keyboard) Sent() []ps2.Frame {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]ps2.Frame(nil), k.sent...)
}

// Pending returns how many frames are still waiting to be transmitted
func (k *Keyboard) Pending() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.out)
}

// Inhibits returns how long, in microseconds of requested delay, the host held
// the clock low before each release
func (k *Keyboard) Inhibits() []uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]uint32(nil), k.inhibits...)
}

// Level returns the level the host is driving on an output pin
func (k *Keyboard) Level(pin ps2.PinID) ps2.Level {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pulldown(pin)
}

// Direction returns the direction the host configured for pin
func (k *Keyboard) Direction(pin ps2.PinID) (ps2.Direction, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	d, ok := k.dirs[pin]
	return d, ok
}

// KeyboardState returns the configuration the keyboard has accepted so far
func (k *Keyboard) KeyboardState() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	s := k.state
	s.KeyTypes = make(map[byte]byte, len(k.state.KeyTypes))
	for code, t := range k.state.KeyTypes {
		s.KeyTypes[code] = t
	}
	return s
}

func (k *Keyboard) known(pin ps2.PinID) bool {
	return pin == k.pins.Clock || pin == k.pins.Data ||
		pin == k.pins.ClockPulldown || pin == k.pins.DataPulldown
}

// pulldown returns a host output level; unconfigured lines float high
func (k *Keyboard) pulldown(pin ps2.PinID) ps2.Level {
	level, ok := k.levels[pin]
	if !ok {
		return ps2.High
	}
	return level
}

// tick advances the keyboard by one clock poll
func (k *Keyboard) tick() {
	if k.wave == nil {
		if k.inhibit {
			return
		}
		switch {
		case k.rts:
			k.rts = false
			k.startReceive()
		case len(k.out) > 0:
			f := k.out[0]
			k.out = k.out[1:]
			k.startTransmit(f)
		default:
			k.idlePolls++
			if k.IdleLimit > 0 && k.idlePolls > k.IdleLimit {
				panic("ps2test: host is waiting on a keyboard with nothing to send")
			}
		}
		// this poll sees the first phase of whatever started
		return
	}
	k.idlePolls = 0

	k.left--
	if k.left > 0 {
		return
	}
	k.pos++
	if k.pos >= len(k.wave) {
		k.wave = nil
		k.txBusy = false
		k.devClock, k.devData = ps2.High, ps2.High
		return
	}
	k.enter(k.pos)
}

func (k *Keyboard) enter(i int) {
	p := k.wave[i]
	k.devClock, k.devData = p.clock, p.data
	k.left = p.polls
	if k.left < 1 {
		k.left = 1
	}
	if p.begin != nil {
		p.begin()
	}
}

func (k *Keyboard) run(wave []phase) {
	k.wave = wave
	k.pos = 0
	k.enter(0)
}

// startTransmit clocks f out: data changes as the clock rises and is held
// through the low half of each bit. The host samples the stop bit on the
// rising edge and is done with the frame; on real hardware the last clock
// pulse passes while the host handles the byte, so it is left out here and
// back to back receives line up with the next start bit.
func (k *Keyboard) startTransmit(f ps2.Frame) {
	hp := k.HalfPeriod
	wave := make([]phase, 0, 2*ps2.FrameBits)
	for i := 0; i < ps2.FrameBits-1; i++ {
		bit := ps2.Level(f.Bit(i) == 1)
		wave = append(wave,
			phase{clock: ps2.High, data: bit, polls: hp},
			phase{clock: ps2.Low, data: bit, polls: hp})
	}
	wave = append(wave, phase{
		clock: ps2.High,
		data:  ps2.Level(f.Stop() == 1),
		polls: hp,
		begin: func() {
			k.txDone = true
			k.sent = append(k.sent, f)
		},
	})

	k.txFrame = f
	k.txDone = false
	k.txBusy = true
	k.run(wave)
}

// abortTransmit handles the host inhibiting the clock mid-transfer. A frame
// the host has not fully sampled goes back to the head of the queue.
func (k *Keyboard) abortTransmit() {
	if k.wave == nil {
		return
	}
	if k.txBusy && !k.txDone {
		k.out = append([]ps2.Frame{k.txFrame}, k.out...)
	}
	k.wave = nil
	k.txBusy = false
	k.devClock, k.devData = ps2.High, ps2.High
}

// startReceive generates the 11 clock pulses of a host to device transfer.
// The host changes data while the clock is low; the keyboard samples it as
// the clock rises and pulls data low for the ACK bit.
func (k *Keyboard) startReceive() {
	hp := k.HalfPeriod
	k.rxFrame = 0 // start bit, held low by the host at release

	wave := []phase{{clock: ps2.High, data: ps2.High, polls: hp}}
	for i := 1; i <= ps2.FrameBits; i++ {
		bit := i
		low := phase{clock: ps2.Low, data: ps2.High, polls: hp}
		high := phase{clock: ps2.High, data: ps2.High, polls: hp}
		if bit < ps2.FrameBits {
			high.begin = func() {
				if k.pulldown(k.pins.DataPulldown) == ps2.High {
					k.rxFrame |= 1 << uint(bit)
				}
			}
		} else {
			low.data = ps2.Low
			high.begin = k.finishReceive
		}
		wave = append(wave, low, high)
	}
	k.run(wave)
}

func (k *Keyboard) finishReceive() {
	f := k.rxFrame
	t := Transfer{
		Data:     f.Data(),
		Frame:    f,
		ParityOK: f.ParityOK(),
		StopOK:   f.Stop() == 1,
		Acked:    true,
	}
	n := len(k.received)
	k.received = append(k.received, t)

	// a new command replaces whatever the keyboard had left to say
	k.out = k.out[:0]

	var reply []byte
	handled := false
	if k.Intercept != nil {
		reply, handled = k.Intercept(n, t.Data)
	}
	if !handled {
		if !t.ParityOK || !t.StopOK {
			reply = []byte{ps2.RespAgain}
		} else {
			reply = k.state.handle(t.Data)
		}
	}
	corrupt := k.CorruptReply != nil && k.CorruptReply(n)
	for _, b := range reply {
		f := ps2.NewFrame(b)
		if corrupt {
			f ^= 1 << 9
		}
		k.out = append(k.out, f)
	}
}
