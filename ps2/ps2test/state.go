package ps2test

import "ps2kbd/ps2"

// DefaultTypematic is the power-on typematic byte: 10.9 cps after 500ms
const DefaultTypematic = 0x2B

// State is the configuration a simulated keyboard has accepted
type State struct {
	Enabled     bool
	LEDs        byte
	Typematic   byte
	ScanCodeSet int
	AllKeys     byte          // last all-keys event command
	KeyTypes    map[byte]byte // per-key event command by key code
	Resets      int

	pending byte // command waiting for its parameter byte
	listing byte // key type command collecting key codes
	last    byte // last byte transmitted, for resend
}

func defaultState() State {
	s := State{KeyTypes: make(map[byte]byte)}
	s.defaults()
	return s
}

func (s *State) defaults() {
	s.Enabled = true
	s.Typematic = DefaultTypematic
	s.ScanCodeSet = 2
	s.AllKeys = ps2.CmdAllMakeBreakTyp
	s.KeyTypes = make(map[byte]byte)
}

// handle returns the keyboard's reply to one byte from the host
func (s *State) handle(b byte) []byte {
	if b == ps2.CmdResend && s.pending == 0 {
		return []byte{s.last}
	}
	reply := s.reply(b)
	if len(reply) > 0 {
		s.last = reply[len(reply)-1]
	}
	return reply
}

func (s *State) reply(b byte) []byte {
	ack := []byte{ps2.ACK}

	if cmd := s.pending; cmd != 0 {
		s.pending = 0
		switch cmd {
		case ps2.CmdSetLEDs:
			s.LEDs = b & 0x07
			return ack
		case ps2.CmdSetTypematic:
			s.Typematic = b & 0x7F
			return ack
		case ps2.CmdSetScanCodeSet:
			switch {
			case b == 0:
				return []byte{ps2.ACK, byte(s.ScanCodeSet)}
			case b <= 3:
				s.ScanCodeSet = int(b)
				return ack
			default:
				return []byte{ps2.RespAgain}
			}
		}
	}

	if s.listing != 0 {
		if b < ps2.CmdSetLEDs {
			s.KeyTypes[b] = s.listing
			return ack
		}
		// any command byte ends the key list
		s.listing = 0
	}

	switch b {
	case ps2.CmdSetLEDs, ps2.CmdSetTypematic, ps2.CmdSetScanCodeSet:
		s.pending = b
		return ack
	case ps2.CmdEcho:
		return []byte{ps2.ECHO}
	case ps2.CmdEnable:
		s.Enabled = true
		return ack
	case ps2.CmdDisable:
		s.defaults()
		s.Enabled = false
		return ack
	case ps2.CmdDefault:
		s.defaults()
		return ack
	case ps2.CmdAllMakeType, ps2.CmdAllMakeBreak, ps2.CmdAllMakeOnly, ps2.CmdAllMakeBreakTyp:
		s.AllKeys = b
		s.KeyTypes = make(map[byte]byte)
		return ack
	case ps2.CmdKeyMakeType, ps2.CmdKeyMakeBreak, ps2.CmdKeyMakeOnly:
		s.listing = b
		return ack
	case ps2.CmdReset:
		s.defaults()
		s.LEDs = 0
		s.Resets++
		return []byte{ps2.ACK, ps2.BATPassed}
	default:
		return []byte{ps2.RespAgain}
	}
}
