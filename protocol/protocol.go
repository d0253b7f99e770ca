// Package protocol implements the framed serial link between a host and a
// microcontroller running the keyboard firmware.
//
// A message block is
//
//	len(1) seq(1) payload(n) crc16(2, big endian) sync(0x7E)
//
// where len counts the whole block. Payloads are a VLQ command id followed by
// VLQ arguments; responses repeat the command id and add a status code.
package protocol

// Version is the firmware protocol version reported by identify
const Version = "ps2kbd-0.3.0"

// Message block layout
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// MessageDest is set in every sequence byte; the low nibble counts
	MessageDest     = 0x10
	MessageSeqMask  = 0x0F
	ScratchSize     = 256
	DefaultFifoSize = 512
)

// NextSeq returns the sequence byte following seq
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

// Message is one decoded message block
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // between header and trailer
	CRC      uint16
}
