package remote

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"

	"ps2kbd/protocol"
)

// dictionaryChunk is the count asked for per get_dictionary request
const dictionaryChunk = 40

// Dictionary is the firmware's self-description
type Dictionary struct {
	Version      string                    `json:"version"`
	Config       map[string]string         `json:"config"`
	Commands     map[string]int            `json:"commands"`
	Enumerations map[string]map[string]int `json:"enumerations"`
}

// Dictionary downloads and decodes the firmware's data dictionary
func (c *Client) Dictionary() (*Dictionary, error) {
	var stream []byte
	for {
		offset := uint32(len(stream))
		data, err := c.Call(protocol.CmdGetDictionary, func(out protocol.OutputBuffer) {
			protocol.EncodeVLQUint(out, offset)
			protocol.EncodeVLQUint(out, dictionaryChunk)
		})
		if err != nil {
			return nil, err
		}
		got, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			return nil, err
		}
		if got != offset {
			return nil, fmt.Errorf("remote: dictionary chunk at %d, asked for %d", got, offset)
		}
		chunk, err := protocol.DecodeVLQBytes(&data)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		stream = append(stream, chunk...)
	}

	zr, err := zlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		return nil, fmt.Errorf("remote: dictionary: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("remote: dictionary: %w", err)
	}

	var d Dictionary
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("remote: dictionary: %w", err)
	}
	return &d, nil
}
