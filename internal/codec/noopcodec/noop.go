// Package noopcodec provides a no-op codec (no compression).
package noopcodec

import "github.com/discochess/coach/internal/codec"

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements no compression.
type Codec struct{}

// New returns a new no-op codec.
func New() *Codec {
	return &Codec{}
}

// ID returns codec.IDNone.
func (c *Codec) ID() byte { return codec.IDNone }

// Name returns "none".
func (c *Codec) Name() string { return "none" }

// Encode returns a copy of src.
func (c *Codec) Encode(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

// Decode returns a copy of src.
func (c *Codec) Decode(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}
