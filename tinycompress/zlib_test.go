package tinycompress

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"
)

func inflate(t *testing.T, stream []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	return out
}

func TestCompressInflates(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte(`{"version":"x"}`)},
		{"one block", bytes.Repeat([]byte{0xAB}, maxStored)},
		{"two blocks", bytes.Repeat([]byte("ps2kbd"), 20000)},
	}
	for _, tt := range tests {
		got := inflate(t, Compress(tt.data))
		if !bytes.Equal(got, tt.data) {
			t.Errorf("%s: inflated %d bytes, want %d", tt.name, len(got), len(tt.data))
		}
	}
}

func TestWriterClose(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Write([]byte("hello "))
	w.Write([]byte("keyboard"))
	if buf.Len() != 0 {
		t.Fatal("writer emitted before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := inflate(t, buf.Bytes()); string(got) != "hello keyboard" {
		t.Errorf("inflated %q", got)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("Write after Close succeeded")
	}
}
