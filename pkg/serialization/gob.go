package serialization

import (
	"encoding/gob"
	"io"
)

// Gob wraps gob.Decoder and gob.Encoder.
type Gob struct {
	dec *gob.Decoder
	enc *gob.Encoder
}

// Decode decodes the next gob value into v.
func (g *Gob) Decode(v any) error {
	return g.dec.Decode(v)
}

// Encode writes v as gob.
func (g *Gob) Encode(v any) error {
	return g.enc.Encode(v)
}

// GobDecoder returns a Decoder reading gob from r.
func GobDecoder(r io.Reader) Decoder {
	return &Gob{dec: gob.NewDecoder(r)}
}

// GobEncoder returns an Encoder writing gob to w.
func GobEncoder(w io.Writer) Encoder {
	return &Gob{enc: gob.NewEncoder(w)}
}
