// Package tinycompress writes zlib streams made of stored DEFLATE blocks.
// It needs no compression tables, which keeps it small enough for
// microcontroller firmware, and any zlib reader can inflate its output.
package tinycompress

import (
	"hash/adler32"
	"io"
)

// maxStored is the largest payload of one stored DEFLATE block
const maxStored = 0xFFFF

// zlib header: deflate, 32K window, default level, FCHECK so that the
// header is a multiple of 31
var header = [2]byte{0x78, 0x9C}

// Writer buffers everything written to it and emits the zlib stream on
// Close.
type Writer struct {
	output io.Writer
	buf    []byte
	closed bool
}

// NewWriter returns a writer emitting to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{output: w, buf: make([]byte, 0, 1024)}
}

// Write implements io.Writer
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Close writes the stream. The writer cannot be used afterwards.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.output.Write(Compress(w.buf))
	return err
}

// Compress returns data as a complete zlib stream
func Compress(data []byte) []byte {
	blocks := (len(data) + maxStored - 1) / maxStored
	if blocks == 0 {
		blocks = 1
	}
	out := make([]byte, 0, len(header)+blocks*5+len(data)+4)
	out = append(out, header[:]...)

	rest := data
	for {
		n := len(rest)
		if n > maxStored {
			n = maxStored
		}
		final := n == len(rest)

		var bfinal byte
		if final {
			bfinal = 0x01
		}
		length := uint16(n)
		nlength := ^length
		out = append(out, bfinal,
			byte(length), byte(length>>8),
			byte(nlength), byte(nlength>>8))
		out = append(out, rest[:n]...)
		rest = rest[n:]
		if final {
			break
		}
	}

	sum := adler32.Checksum(data)
	return append(out, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}
