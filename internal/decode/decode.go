// Package decode defines the boundary for signal decoders. The core treats
// payloads as opaque bytes; a Decoder plugged into a dispatcher subscription
// is the only place payload semantics exist.
package decode

import "github.com/canscope/canscope/internal/frame"

// Signal is one decoded physical value extracted from a frame payload.
type Signal struct {
	Name  string
	Value float64
	Unit  string
}

// Decoder extracts signals from frames it understands. Frames the decoder
// does not recognize return a nil slice and no error.
type Decoder interface {
	Decode(f frame.Frame) ([]Signal, error)
}
