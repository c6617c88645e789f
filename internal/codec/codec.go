// Package codec provides encode/decode interfaces for state snapshot
// serialization.
package codec

// Codec encodes and decodes exported clock state.
type Codec interface {
	// Marshal serializes v into bytes.
	Marshal(v any) ([]byte, error)
	// Unmarshal deserializes data into v (must be a pointer).
	Unmarshal(data []byte, v any) error
	// Name returns the codec identifier used for diagnostics.
	Name() string
}

// Default is the codec used when the host does not pick one.
var Default Codec = JSON{}
