package core

import (
	"time"

	"ps2kbd/protocol"
	"ps2kbd/ps2"
)

func (s *Server) registerKeyboardCommands() {
	for _, c := range []Command{
		{protocol.CmdIdentify, "identify", "", s.handleIdentify},
		{protocol.CmdConfigKeyboard, "config_keyboard",
			"clock=%u data=%u clock_pd=%u data_pd=%u edge_timeout_ms=%u inhibit_us=%u", s.handleConfigKeyboard},
		{protocol.CmdSetValidation, "set_validation", "start=%c stop=%c parity=%c", s.handleSetValidation},
		{protocol.CmdGetValidation, "get_validation", "", s.handleGetValidation},
		{protocol.CmdReceive, "receive", "", s.handleReceive},
		{protocol.CmdSend, "send", "byte=%c", s.handleSend},
		{protocol.CmdSetLEDs, "set_leds", "num=%c caps=%c scroll=%c", s.handleSetLEDs},
		{protocol.CmdKeyEvents, "key_events", "ignore_break=%c ignore_typematic=%c keys=%*s", s.handleKeyEvents},
		{protocol.CmdAllKeyEvents, "all_key_events", "ignore_break=%c ignore_typematic=%c", s.handleAllKeyEvents},
		{protocol.CmdSetTypematic, "set_typematic", "rate=%u delay_ms=%u", s.handleSetTypematic},
		{protocol.CmdSetScanCodeSet, "set_scan_code_set", "set=%i", s.handleSetScanCodeSet},
		{protocol.CmdEnable, "enable", "", s.simple((*ps2.Keyboard).Enable)},
		{protocol.CmdDisable, "disable", "", s.simple((*ps2.Keyboard).Disable)},
		{protocol.CmdDefault, "set_default", "", s.simple((*ps2.Keyboard).ResetToDefault)},
		{protocol.CmdReset, "reset", "", s.query((*ps2.Keyboard).Reset)},
		{protocol.CmdResend, "resend", "", s.query((*ps2.Keyboard).Resend)},
		{protocol.CmdEcho, "echo", "", s.query((*ps2.Keyboard).Echo)},
		{protocol.CmdGetKeyboardStatus, "get_keyboard_status", "", s.handleGetKeyboardStatus},
		{protocol.CmdGetDictionary, "get_dictionary", "offset=%u count=%c", s.handleGetDictionary},
	} {
		if err := s.registry.Register(c.ID, c.Name, c.Format, c.Handler); err != nil {
			panic(err)
		}
	}
}

func (s *Server) handleIdentify(args *[]byte, out protocol.OutputBuffer) error {
	protocol.EncodeVLQString(out, protocol.Version)
	return nil
}

func (s *Server) handleConfigKeyboard(args *[]byte, out protocol.OutputBuffer) error {
	var v [6]uint32
	for i := range v {
		var err error
		if v[i], err = protocol.DecodeVLQUint(args); err != nil {
			return err
		}
	}
	pins := ps2.Pins{
		Clock:         ps2.PinID(v[0]),
		Data:          ps2.PinID(v[1]),
		ClockPulldown: ps2.PinID(v[2]),
		DataPulldown:  ps2.PinID(v[3]),
	}
	var opts []ps2.LinkOption
	if v[4] > 0 {
		opts = append(opts, ps2.WithEdgeTimeout(time.Duration(v[4])*time.Millisecond))
	}
	if v[5] > 0 {
		opts = append(opts, ps2.WithInhibitTime(v[5]))
	}
	return s.Configure(pins, opts...)
}

func (s *Server) handleSetValidation(args *[]byte, out protocol.OutputBuffer) error {
	kb, err := s.Keyboard()
	if err != nil {
		return err
	}
	var flags [3]uint32
	for i := range flags {
		if flags[i], err = protocol.DecodeVLQUint(args); err != nil {
			return err
		}
	}
	return kb.SetValidation(ps2.PolicyFromFlags(int(flags[0]), int(flags[1]), int(flags[2])))
}

func (s *Server) handleGetValidation(args *[]byte, out protocol.OutputBuffer) error {
	kb, err := s.Keyboard()
	if err != nil {
		return err
	}
	p, err := kb.Validation()
	if err != nil {
		return err
	}
	start, stop, parity := p.Flags()
	protocol.EncodeVLQUint(out, uint32(start))
	protocol.EncodeVLQUint(out, uint32(stop))
	protocol.EncodeVLQUint(out, uint32(parity))
	return nil
}

func (s *Server) handleReceive(args *[]byte, out protocol.OutputBuffer) error {
	kb, err := s.Keyboard()
	if err != nil {
		return err
	}
	b, err := kb.Receive()
	if err != nil {
		return err
	}
	protocol.EncodeVLQUint(out, uint32(b))
	return nil
}

func (s *Server) handleSend(args *[]byte, out protocol.OutputBuffer) error {
	kb, err := s.Keyboard()
	if err != nil {
		return err
	}
	b, err := protocol.DecodeVLQByte(args)
	if err != nil {
		return err
	}
	return kb.Send(b)
}

func (s *Server) handleSetLEDs(args *[]byte, out protocol.OutputBuffer) error {
	kb, err := s.Keyboard()
	if err != nil {
		return err
	}
	var leds [3]bool
	for i := range leds {
		if leds[i], err = protocol.DecodeVLQBool(args); err != nil {
			return err
		}
	}
	return kb.SetLEDs(leds[0], leds[1], leds[2])
}

func (s *Server) handleKeyEvents(args *[]byte, out protocol.OutputBuffer) error {
	kb, err := s.Keyboard()
	if err != nil {
		return err
	}
	ignoreBreak, ignoreTypematic, err := decodeIgnoreFlags(args)
	if err != nil {
		return err
	}
	keys, err := protocol.DecodeVLQBytes(args)
	if err != nil {
		return err
	}
	return kb.ConfigureKeyEvents(keys, ignoreBreak, ignoreTypematic)
}

func (s *Server) handleAllKeyEvents(args *[]byte, out protocol.OutputBuffer) error {
	kb, err := s.Keyboard()
	if err != nil {
		return err
	}
	ignoreBreak, ignoreTypematic, err := decodeIgnoreFlags(args)
	if err != nil {
		return err
	}
	return kb.ConfigureAllKeyEvents(ignoreBreak, ignoreTypematic)
}

func (s *Server) handleSetTypematic(args *[]byte, out protocol.OutputBuffer) error {
	kb, err := s.Keyboard()
	if err != nil {
		return err
	}
	rate, err := protocol.DecodeVLQInt(args)
	if err != nil {
		return err
	}
	delay, err := protocol.DecodeVLQInt(args)
	if err != nil {
		return err
	}
	actualRate, actualDelay, err := kb.SetRepeatRateAndDelay(int(rate), int(delay))
	if err != nil {
		return err
	}
	protocol.EncodeVLQInt(out, int32(actualRate))
	protocol.EncodeVLQInt(out, int32(actualDelay))
	return nil
}

func (s *Server) handleSetScanCodeSet(args *[]byte, out protocol.OutputBuffer) error {
	kb, err := s.Keyboard()
	if err != nil {
		return err
	}
	set, err := protocol.DecodeVLQInt(args)
	if err != nil {
		return err
	}
	return kb.SetScanCodeSet(int(set))
}

func (s *Server) handleGetKeyboardStatus(args *[]byte, out protocol.OutputBuffer) error {
	kb, err := s.Keyboard()
	if err != nil {
		protocol.EncodeVLQBool(out, false)
		protocol.EncodeVLQUint(out, uint32(ps2.StateIdle))
		protocol.EncodeVLQBool(out, false)
		return nil
	}
	protocol.EncodeVLQBool(out, true)
	protocol.EncodeVLQUint(out, uint32(kb.State()))
	protocol.EncodeVLQBool(out, kb.Link().LastSendAcked())
	return nil
}

// simple adapts a keyboard command without arguments or results
func (s *Server) simple(op func(*ps2.Keyboard) error) CommandHandler {
	return func(args *[]byte, out protocol.OutputBuffer) error {
		kb, err := s.Keyboard()
		if err != nil {
			return err
		}
		return op(kb)
	}
}

// query adapts a keyboard command answering with one byte
func (s *Server) query(op func(*ps2.Keyboard) (byte, error)) CommandHandler {
	return func(args *[]byte, out protocol.OutputBuffer) error {
		kb, err := s.Keyboard()
		if err != nil {
			return err
		}
		b, err := op(kb)
		if err != nil {
			return err
		}
		protocol.EncodeVLQUint(out, uint32(b))
		return nil
	}
}

func decodeIgnoreFlags(args *[]byte) (ignoreBreak, ignoreTypematic bool, err error) {
	if ignoreBreak, err = protocol.DecodeVLQBool(args); err != nil {
		return
	}
	ignoreTypematic, err = protocol.DecodeVLQBool(args)
	return
}
