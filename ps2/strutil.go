package ps2

import "strconv"

// Formatting helpers for error messages built on hot paths

func itoa(n int) string {
	return strconv.Itoa(n)
}

func hex8(b byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}

func hex16(v uint16) string {
	return hex8(byte(v>>8)) + hex8(byte(v))
}
