package embeddings

import (
	"math"
	"testing"
)

func TestEncodeAndDecode(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float64
		wantErr   bool
	}{
		{
			name:      "simple embedding",
			embedding: []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			wantErr:   false,
		},
		{
			name:      "large embedding (768 dimensions)",
			embedding: generateTestEmbedding(768),
			wantErr:   false,
		},
		{
			name:      "negative values",
			embedding: []float64{-1.0, -2.0, -3.0},
			wantErr:   false,
		},
		{
			name:      "empty embedding",
			embedding: []float64{},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Encode(tt.embedding)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("failed to encode embedding: %v", err)
			}

			// Each float64 is 8 bytes
			if len(blob) != len(tt.embedding)*8 {
				t.Errorf("expected blob size %d bytes, got %d bytes", len(tt.embedding)*8, len(blob))
			}

			result, err := Decode(blob)
			if err != nil {
				t.Fatalf("failed to decode embedding: %v", err)
			}

			if len(result) != len(tt.embedding) {
				t.Fatalf("expected length %d, got %d", len(tt.embedding), len(result))
			}

			for i := range tt.embedding {
				if result[i] != tt.embedding[i] {
					t.Errorf("mismatch at index %d: expected %f, got %f", i, tt.embedding[i], result[i])
				}
			}
		})
	}
}

func TestDecodeCorruptedBlob(t *testing.T) {
	// Incomplete float64 (not multiple of 8 bytes)
	if _, err := Decode([]byte{0x01, 0x02, 0x03, 0x04, 0x05}); err == nil {
		t.Error("expected error when decoding corrupted blob")
	}

	if _, err := Decode(nil); err == nil {
		t.Error("expected error when decoding empty blob")
	}
}

func TestFromFloat32(t *testing.T) {
	in := []float32{1.0, 2.5, -3.5, 0.0, 99.9}
	out := FromFloat32(in)

	for i := range in {
		if out[i] != float64(in[i]) {
			t.Errorf("conversion error at index %d: expected %f, got %f", i, float64(in[i]), out[i])
		}
	}
}

func TestValidateEmbedding(t *testing.T) {
	tests := []struct {
		name      string
		embedding []float64
		wantErr   bool
	}{
		{
			name:      "valid embedding",
			embedding: []float64{1.0, 2.0, 3.0},
			wantErr:   false,
		},
		{
			name:      "valid large embedding",
			embedding: generateTestEmbedding(768),
			wantErr:   false,
		},
		{
			name:      "empty embedding",
			embedding: []float64{},
			wantErr:   true,
		},
		{
			name:      "nil embedding",
			embedding: nil,
			wantErr:   true,
		},
		{
			name:      "NaN value",
			embedding: []float64{1.0, math.NaN()},
			wantErr:   true,
		},
		{
			name:      "Inf value",
			embedding: []float64{math.Inf(1), 1.0},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmbedding(tt.embedding)

			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// generateTestEmbedding creates a test embedding of the specified size
func generateTestEmbedding(size int) []float64 {
	vec := make([]float64, size)
	for i := range vec {
		vec[i] = float64(i) / float64(size)
	}
	return vec
}

func BenchmarkEncode(b *testing.B) {
	embedding := generateTestEmbedding(768)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Encode(embedding)
	}
}

func BenchmarkDecode(b *testing.B) {
	blob, err := Encode(generateTestEmbedding(768))
	if err != nil {
		b.Fatalf("failed to encode embedding: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(blob)
	}
}
