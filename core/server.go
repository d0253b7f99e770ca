package core

import (
	"errors"
	"io"
	"strconv"
	"sync"

	"ps2kbd/protocol"
	"ps2kbd/ps2"
)

// Server is the firmware side of the serial protocol: it decodes request
// blocks, runs them against the keyboard and writes one response block per
// request, echoing the request's sequence byte.
type Server struct {
	mu       sync.Mutex
	registry *CommandRegistry
	decoder  *protocol.Decoder
	drv      ps2.GPIODriver
	kb       *ps2.Keyboard
	dict     *Dictionary
	events   EventRing
}

// NewServer returns a server driving the keyboard through drv. The keyboard
// is unusable until a config_keyboard request names its pins.
func NewServer(drv ps2.GPIODriver) *Server {
	s := &Server{
		registry: NewCommandRegistry(),
		decoder:  protocol.NewDecoder(),
		drv:      drv,
	}
	s.decoder.AcceptSeq(func(seq uint8) bool {
		return seq&^protocol.MessageSeqMask == protocol.MessageDest
	})
	s.registerKeyboardCommands()
	s.dict = NewDictionary(s.registry, protocol.Version)
	return s
}

// Registry returns the server's command registry
func (s *Server) Registry() *CommandRegistry { return s.registry }

// Dictionary returns the data dictionary served by get_dictionary
func (s *Server) Dictionary() *Dictionary { return s.dict }

// Events returns the ring of recently handled requests
func (s *Server) Events() *EventRing { return &s.events }

// Configure creates the link on pins, replacing any earlier one
func (s *Server) Configure(pins ps2.Pins, opts ...ps2.LinkOption) error {
	if s.drv == nil {
		return ps2.ErrNotConfigured
	}
	trace := ps2.DebugWriter(TraceWriter())
	opts = append(opts, ps2.WithDebug(trace))
	link, err := ps2.NewLink(s.drv, pins, opts...)
	if err != nil {
		return err
	}
	kb := ps2.NewKeyboard(link)
	kb.SetDebugWriter(trace)

	s.mu.Lock()
	s.kb = kb
	s.mu.Unlock()
	DebugPrintln("ps2: keyboard configured")
	return nil
}

// Keyboard returns the configured keyboard
func (s *Server) Keyboard() (*ps2.Keyboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kb == nil {
		return nil, ps2.ErrNotConfigured
	}
	return s.kb, nil
}

// Reset discards buffered request bytes. The keyboard stays configured.
func (s *Server) Reset() {
	s.decoder.Reset()
	DebugPrintln("core: input reset")
}

// Handle runs one decoded request and returns the response block
func (s *Server) Handle(msg *protocol.Message) ([]byte, error) {
	args := msg.Payload
	id, err := protocol.DecodeVLQUint(&args)
	if err != nil {
		return nil, err
	}
	cmd := uint16(id)

	result := protocol.NewScratchOutput()
	herr := s.registry.Dispatch(cmd, &args, result)
	if herr == nil && result.Overflow() {
		herr = protocol.ErrMessageTooLong
	}

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, uint32(cmd))
	EncodeStatus(out, herr)
	if herr == nil {
		out.Output(result.Result())
	}

	st := StatusOf(herr)
	s.events.Record(Event{Seq: msg.Sequence, Command: cmd, Status: st})
	if st != protocol.StatusOK {
		DebugPrintln("core: command " + strconv.Itoa(int(cmd)) + ": " + herr.Error())
	}
	return protocol.EncodeBlock(msg.Sequence, out.Result())
}

// Process feeds stream data to the decoder and answers every complete
// request in it.
func (s *Server) Process(data []byte, w io.Writer) error {
	_, _ = s.decoder.Write(data)
	for {
		msg, ok := s.decoder.Next()
		if !ok {
			return nil
		}
		resp, err := s.Handle(msg)
		if err != nil {
			DebugPrintln("core: dropped request: " + err.Error())
			continue
		}
		if _, err := w.Write(resp); err != nil {
			return err
		}
	}
}

// Serve answers requests read from r until r reports EOF
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	buf := make([]byte, protocol.MessageLengthMax)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if perr := s.Process(buf[:n], w); perr != nil {
				return perr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
