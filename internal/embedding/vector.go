package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// CosineSimilarity computes the cosine of the angle between two equal-length
// vectors: dot(a,b) / (|a| * |b|), always in [-1, 1].
//
// Mismatched lengths fail with ErrDimensionMismatch and a zero-norm operand
// fails with ErrZeroVector. Division by zero is never allowed to propagate a
// NaN downstream.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, ErrZeroVector
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Encode serializes a vector as packed little-endian IEEE 754 float64 values.
// The encoding is exact: Decode(Encode(v)) reproduces v bit for bit.
func Encode(vector []float64) []byte {
	buf := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// Decode deserializes a packed little-endian float64 buffer produced by
// Encode. The buffer length must be a whole number of 8-byte values.
func Decode(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("embedding buffer length %d is not a multiple of 8", len(buf))
	}

	vector := make([]float64, len(buf)/8)
	for i := range vector {
		vector[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vector, nil
}
