package serialization

const (
	// JSONType represents the serialization type for JSON format.
	JSONType = "json"

	// GobType represents the serialization type for Gob format.
	// Gob payloads must be registered concrete types; plain JSON is the default for cached rows.
	GobType = "gob"
)

// Decoder reads one value from an underlying stream.
type Decoder interface {
	Decode(v any) error
}

// Encoder writes one value to an underlying stream.
type Encoder interface {
	Encode(v any) error
}
