// Package vecblob encodes embedding vectors as little-endian float32 blobs,
// the format shared by the SQLite backend and the Redis embedding cache.
package vecblob

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrLength is returned when a blob is not a whole number of float32 values.
var ErrLength = errors.New("vector blob length is not a multiple of 4")

// Encode packs v into 4*len(v) bytes.
func Encode(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

// Decode unpacks a blob produced by Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, ErrLength
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
