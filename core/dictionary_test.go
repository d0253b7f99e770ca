package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"

	"ps2kbd/protocol"
)

type dictionaryJSON struct {
	Version      string                    `json:"version"`
	Config       map[string]string         `json:"config"`
	Commands     map[string]int            `json:"commands"`
	Enumerations map[string]map[string]int `json:"enumerations"`
}

func TestDictionaryJSON(t *testing.T) {
	s := NewServer(nil)
	d := s.Dictionary()
	d.AddConstant("MCU", "rp2040")
	d.AddEnumeration("pins", []string{"gpio0", "", "gpio2"})

	var got dictionaryJSON
	if err := json.Unmarshal(d.JSON(), &got); err != nil {
		t.Fatalf("dictionary is not JSON: %v\n%s", err, d.JSON())
	}
	if got.Version != protocol.Version {
		t.Errorf("version = %q", got.Version)
	}
	if got.Config["MCU"] != "rp2040" {
		t.Errorf("config = %v", got.Config)
	}
	if id, ok := got.Commands["set_leds num=%c caps=%c scroll=%c"]; !ok || id != int(protocol.CmdSetLEDs) {
		t.Errorf("set_leds = %d, %v", id, ok)
	}
	if id, ok := got.Commands["echo"]; !ok || id != int(protocol.CmdEcho) {
		t.Errorf("echo = %d, %v", id, ok)
	}
	if len(got.Commands) != s.Registry().Count() {
		t.Errorf("%d commands, registry has %d", len(got.Commands), s.Registry().Count())
	}
	if got.Enumerations["status"]["abort"] != int(protocol.StatusAbort) {
		t.Errorf("status enumeration = %v", got.Enumerations["status"])
	}
	if pins := got.Enumerations["pins"]; len(pins) != 2 || pins["gpio2"] != 2 {
		t.Errorf("pins enumeration = %v", pins)
	}
}

func TestDictionaryChunks(t *testing.T) {
	s := NewServer(nil)
	var stream []byte
	for {
		r := call(t, s, protocol.CmdGetDictionary, int32(len(stream)), 255)
		if r.status != protocol.StatusOK {
			t.Fatalf("status = %v", r.status)
		}
		if off := r.next(t); off != uint32(len(stream)) {
			t.Fatalf("offset = %d, want %d", off, len(stream))
		}
		chunk, err := protocol.DecodeVLQBytes(&r.data)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunk) > DictionaryChunkMax {
			t.Fatalf("chunk of %d bytes", len(chunk))
		}
		if len(chunk) == 0 {
			break
		}
		stream = append(stream, chunk...)
	}

	zr, err := zlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		t.Fatal(err)
	}
	inflated, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(inflated, s.Dictionary().JSON()) {
		t.Error("reassembled dictionary differs")
	}
}

func TestDictionaryCacheInvalidated(t *testing.T) {
	d := NewDictionary(NewCommandRegistry(), "v")
	before := d.Compressed()
	d.AddConstant("X", "1")
	if bytes.Equal(before, d.Compressed()) {
		t.Error("constant change did not rebuild the dictionary")
	}
	if d.Chunk(uint32(len(d.Compressed())), 10) != nil {
		t.Error("chunk past the end is not empty")
	}
}
