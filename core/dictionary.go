package core

import (
	"sort"
	"strconv"
	"sync"

	"ps2kbd/protocol"
	"ps2kbd/tinycompress"
)

// DictionaryChunkMax is the most dictionary bytes one response carries
const DictionaryChunkMax = 40

// statusNames are the enumeration entries for protocol.Status, by value
var statusNames = []string{
	"ok", "framing", "abort", "invalid_argument", "timeout",
	"not_configured", "unknown_command", "malformed", "error",
}

// Dictionary describes the firmware to the host: its version, constants,
// commands and enumerations, as zlib-compressed JSON fetched in chunks.
type Dictionary struct {
	mu           sync.Mutex
	registry     *CommandRegistry
	version      string
	constants    map[string]string
	enumerations map[string][]string
	cached       []byte
}

// NewDictionary describes the commands in registry
func NewDictionary(registry *CommandRegistry, version string) *Dictionary {
	return &Dictionary{
		registry:     registry,
		version:      version,
		constants:    make(map[string]string),
		enumerations: map[string][]string{"status": statusNames},
	}
}

// AddConstant sets a config entry, e.g. the MCU name
func (d *Dictionary) AddConstant(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = value
	d.cached = nil
}

// AddEnumeration names the values 0..len(values)-1. Empty names are skipped.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	v := make([]string, len(values))
	copy(v, values)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerations[name] = v
	d.cached = nil
}

// JSON returns the uncompressed dictionary
func (d *Dictionary) JSON() []byte {
	cmds := d.registry.Commands()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buildJSON(cmds)
}

// Compressed returns the dictionary as a zlib stream, built once until
// constants change
func (d *Dictionary) Compressed() []byte {
	cmds := d.registry.Commands()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil {
		d.cached = tinycompress.Compress(d.buildJSON(cmds))
	}
	return d.cached
}

// Chunk returns up to count compressed bytes starting at offset. It is
// empty past the end.
func (d *Dictionary) Chunk(offset uint32, count int) []byte {
	data := d.Compressed()
	if count > DictionaryChunkMax {
		count = DictionaryChunkMax
	}
	if offset >= uint32(len(data)) || count <= 0 {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// buildJSON must be called with the lock held
func (d *Dictionary) buildJSON(cmds []*Command) []byte {
	out := make([]byte, 0, 1024)
	out = append(out, `{"version":`...)
	out = strconv.AppendQuote(out, d.version)

	out = append(out, `,"config":{`...)
	for i, name := range sortedKeys(d.constants) {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendQuote(out, name)
		out = append(out, ':')
		out = strconv.AppendQuote(out, d.constants[name])
	}

	out = append(out, `},"commands":{`...)
	for i, cmd := range cmds {
		if i > 0 {
			out = append(out, ',')
		}
		key := cmd.Name
		if cmd.Format != "" {
			key += " " + cmd.Format
		}
		out = strconv.AppendQuote(out, key)
		out = append(out, ':')
		out = strconv.AppendUint(out, uint64(cmd.ID), 10)
	}

	out = append(out, `},"enumerations":{`...)
	names := make([]string, 0, len(d.enumerations))
	for name := range d.enumerations {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendQuote(out, name)
		out = append(out, `:{`...)
		first := true
		for v, value := range d.enumerations[name] {
			if value == "" {
				continue
			}
			if !first {
				out = append(out, ',')
			}
			out = strconv.AppendQuote(out, value)
			out = append(out, ':')
			out = strconv.AppendInt(out, int64(v), 10)
			first = false
		}
		out = append(out, '}')
	}
	return append(out, `}}`...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) handleGetDictionary(args *[]byte, out protocol.OutputBuffer) error {
	offset, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return err
	}
	protocol.EncodeVLQUint(out, offset)
	protocol.EncodeVLQBytes(out, s.dict.Chunk(offset, int(count)))
	return nil
}
