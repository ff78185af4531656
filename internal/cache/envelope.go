package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Stored values are wrapped in an envelope:
//
//	magic (4) | codec id (1) | xxhash64 of payload (8, big endian) | payload
//
// where payload is the codec-compressed JSON encoding of the value.
var magic = []byte("CCH1")

const headerSize = 4 + 1 + 8

func (c *Cache) encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling: %w", err)
	}
	payload, err := c.codec.Encode(raw)
	if err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}

	buf := make([]byte, headerSize+len(payload))
	copy(buf, magic)
	buf[4] = c.codec.ID()
	binary.BigEndian.PutUint64(buf[5:headerSize], xxhash.Sum64(payload))
	copy(buf[headerSize:], payload)
	return buf, nil
}

// decode unwraps an envelope into v. Every failure is reported as
// ErrCorrupt.
func (c *Cache) decode(data []byte, v any) error {
	if len(data) < headerSize || !bytes.Equal(data[:4], magic) {
		return fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	cd, err := c.codecs.ByID(data[4])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	payload := data[headerSize:]
	if binary.BigEndian.Uint64(data[5:headerSize]) != xxhash.Sum64(payload) {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	raw, err := cd.Decode(payload)
	if err != nil {
		return fmt.Errorf("%w: decompressing: %v", ErrCorrupt, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decoding: %v", ErrCorrupt, err)
	}
	return nil
}
