package protocol

import (
	"bytes"
	"errors"
)

// ErrMessageTooLong is returned for payloads that do not fit one block
var ErrMessageTooLong = errors.New("protocol: message too long")

// AppendBlock frames payload with sequence byte seq and appends the block
// to dst.
func AppendBlock(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	n := MessageLengthMin + len(payload)
	if n > MessageLengthMax {
		return dst, ErrMessageTooLong
	}
	start := len(dst)
	dst = append(dst, uint8(n), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync), nil
}

// EncodeBlock frames payload into a new block
func EncodeBlock(seq uint8, payload []byte) ([]byte, error) {
	return AppendBlock(make([]byte, 0, MessageLengthMin+len(payload)), seq, payload)
}

// EncodeCommand builds a block holding command id followed by its arguments
func EncodeCommand(seq uint8, id uint16, args func(out OutputBuffer)) ([]byte, error) {
	out := NewScratchOutput()
	EncodeVLQUint(out, uint32(id))
	if args != nil {
		args(out)
	}
	if out.Overflow() {
		return nil, ErrMessageTooLong
	}
	return EncodeBlock(seq, out.Result())
}

// Decoder splits a byte stream into message blocks. After a corrupt block
// it drops input up to the next sync byte and carries on.
type Decoder struct {
	buf      *FifoBuffer
	synced   bool
	dropped  int
	accepted func(seq uint8) bool
}

// NewDecoder returns a decoder buffering up to DefaultFifoSize bytes
func NewDecoder() *Decoder {
	return &Decoder{buf: NewFifoBuffer(DefaultFifoSize), synced: true}
}

// AcceptSeq restricts decoded blocks to sequence bytes ok accepts. Other
// blocks count as corrupt.
func (d *Decoder) AcceptSeq(ok func(seq uint8) bool) { d.accepted = ok }

// Write buffers stream data. Input beyond the buffer is dropped.
func (d *Decoder) Write(p []byte) (int, error) {
	n := d.buf.Write(p)
	d.dropped += len(p) - n
	return len(p), nil
}

// Dropped returns how many bytes were thrown away while resynchronising
func (d *Decoder) Dropped() int { return d.dropped }

// Buffered returns how many bytes wait for the rest of their block
func (d *Decoder) Buffered() int { return d.buf.Available() }

// Reset discards buffered input
func (d *Decoder) Reset() {
	d.buf.Reset()
	d.synced = true
}

// Next returns the next complete block, or false when more input is needed
func (d *Decoder) Next() (*Message, bool) {
	data := d.buf.Data()
	defer func(total int) {
		d.buf.Pop(total - len(data))
	}(len(data))

	for len(data) > 0 {
		if !d.synced {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				d.dropped += len(data)
				data = nil
				break
			}
			d.dropped += i
			data = data[i+1:]
			d.synced = true
			continue
		}
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}
		n := int(data[MessagePositionLen])
		if n < MessageLengthMin || n > MessageLengthMax {
			d.synced = false
			continue
		}
		if len(data) < n {
			break
		}
		seq := data[MessagePositionSeq]
		if data[n-MessageTrailerSync] != MessageValueSync ||
			(d.accepted != nil && !d.accepted(seq)) {
			d.synced = false
			continue
		}
		crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
		if crc != CRC16(data[:n-MessageTrailerSize]) {
			d.synced = false
			continue
		}

		msg := &Message{
			Length:   uint8(n),
			Sequence: seq,
			Payload:  append([]byte(nil), data[MessageHeaderSize:n-MessageTrailerSize]...),
			CRC:      crc,
		}
		data = data[n:]
		return msg, true
	}
	return nil, false
}
