package demo

import (
	"encoding/binary"
	"math"
)

// Floats packs v as little-endian float32 words, the layout every kernel
// buffer uses.
func Floats(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

// ToFloats unpacks little-endian float32 words. Trailing bytes are ignored.
func ToFloats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

// Near reports whether got is within tol of want, relative to want when
// |want| exceeds 1.
func Near(got, want, tol float32) bool {
	return math.Abs(float64(got-want)) <= float64(tol)*max(1, math.Abs(float64(want)))
}
