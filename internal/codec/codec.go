// Package codec provides compression for cache payloads.
package codec

import "fmt"

// Codec compresses and decompresses whole payloads. Encode must be
// deterministic: the same input always yields the same bytes.
type Codec interface {
	// ID identifies the codec in stored envelopes. IDs are never reused.
	ID() byte

	// Name returns the configuration name (e.g., "zstd", "gzip", "none").
	Name() string

	// Encode compresses src.
	Encode(src []byte) ([]byte, error)

	// Decode decompresses src.
	Decode(src []byte) ([]byte, error)
}

// Codec IDs.
const (
	IDNone byte = 0
	IDZstd byte = 1
	IDGzip byte = 2
)

// Registry resolves codecs by envelope ID and by name.
type Registry struct {
	byID   map[byte]Codec
	byName map[string]Codec
}

// NewRegistry creates a registry of the given codecs.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{
		byID:   make(map[byte]Codec, len(codecs)),
		byName: make(map[string]Codec, len(codecs)),
	}
	for _, c := range codecs {
		r.byID[c.ID()] = c
		r.byName[c.Name()] = c
	}
	return r
}

// ByID returns the codec with the given envelope ID.
func (r *Registry) ByID(id byte) (Codec, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown codec id %d", id)
	}
	return c, nil
}

// ByName returns the codec with the given name.
func (r *Registry) ByName(name string) (Codec, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", name)
	}
	return c, nil
}
