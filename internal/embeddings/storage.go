package embeddings

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes an embedding vector for a BLOB column
// Format: LittleEndian float64 array
func Encode(vec []float64) ([]byte, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding vector cannot be empty")
	}

	buf := make([]byte, len(vec)*8)
	for i, val := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(val))
	}

	return buf, nil
}

// Decode deserializes an embedding vector written by Encode
func Decode(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("embedding blob is empty")
	}

	// Each float64 is 8 bytes
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("invalid embedding blob size: %d (not a multiple of 8)", len(data))
	}

	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}

	return vec, nil
}

// FromFloat32 widens the vectors returned by embedding APIs
func FromFloat32(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// ValidateEmbedding checks if an embedding vector is valid
func ValidateEmbedding(vec []float64) error {
	if len(vec) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}

	for i, val := range vec {
		if math.IsNaN(val) {
			return fmt.Errorf("embedding contains NaN at index %d", i)
		}
		if math.IsInf(val, 0) {
			return fmt.Errorf("embedding contains invalid value at index %d: %v", i, val)
		}
	}

	return nil
}
