package remote

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"ps2kbd/protocol"
)

// Response is a decoded reply: the command it answers, its status and the
// status or result values that follow.
type Response struct {
	Sequence uint8
	Command  uint16
	Status   protocol.Status
	Data     []byte
}

const idlePoll = 10 * time.Millisecond

// transport sends request blocks and matches replies by sequence byte
type transport struct {
	port io.ReadWriter

	writeMu sync.Mutex
	seq     uint8

	decoder   *protocol.Decoder
	responses chan *Response
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	readErr   error
	errMu     sync.Mutex
}

func newTransport(port io.ReadWriter) *transport {
	t := &transport{
		port:      port,
		seq:       protocol.MessageDest,
		decoder:   protocol.NewDecoder(),
		responses: make(chan *Response, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// roundTrip sends one command and waits up to timeout for its reply. A zero
// timeout waits until the transport closes.
func (t *transport) roundTrip(id uint16, args func(protocol.OutputBuffer), timeout time.Duration) (*Response, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	seq := t.seq
	block, err := protocol.EncodeCommand(seq, id, args)
	if err != nil {
		return nil, err
	}
	t.drain()
	if _, err := t.port.Write(block); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}
	t.seq = protocol.NextSeq(seq)

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case resp := <-t.responses:
			if resp.Sequence != seq || resp.Command != id {
				// late reply to an earlier request that timed out
				continue
			}
			return resp, nil
		case <-deadline:
			return nil, fmt.Errorf("%w after %v (command %d)", ErrReplyTimeout, timeout, id)
		case <-t.done:
			if err := t.err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrClosed, err)
			}
			return nil, ErrClosed
		}
	}
}

// drain discards replies nobody waits for any more
func (t *transport) drain() {
	for {
		select {
		case <-t.responses:
		default:
			return
		}
	}
}

func (t *transport) readLoop() {
	defer close(t.done)
	buf := make([]byte, 256)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.decoder.Write(buf[:n])
			t.dispatch()
		}
		if err != nil {
			select {
			case <-t.stop:
				return
			default:
			}
			// a serial port with a read timeout reports EOF when idle
			if errors.Is(err, io.EOF) {
				time.Sleep(idlePoll)
				continue
			}
			t.setErr(err)
			return
		}
	}
}

func (t *transport) dispatch() {
	for {
		msg, ok := t.decoder.Next()
		if !ok {
			return
		}
		data := msg.Payload
		cmd, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			continue
		}
		st, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			continue
		}
		resp := &Response{Sequence: msg.Sequence, Command: uint16(cmd), Status: protocol.Status(st), Data: data}
		select {
		case t.responses <- resp:
		case <-t.stop:
			return
		}
	}
}

func (t *transport) setErr(err error) {
	t.errMu.Lock()
	t.readErr = err
	t.errMu.Unlock()
}

func (t *transport) err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.readErr
}

// close stops the read loop; closer unblocks a pending Read. Only the
// first call closes the port; every call waits for the read loop to end.
func (t *transport) close(closer io.Closer) error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stop)
		if closer != nil {
			err = closer.Close()
		}
	})
	<-t.done
	return err
}
