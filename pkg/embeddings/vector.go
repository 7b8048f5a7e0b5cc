// Package embeddings provides vector helpers shared by the language model backends and the stores.
package embeddings

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// NormalizeL2 scales vector to unit length in place. A zero vector is left unchanged.
func NormalizeL2(vector []float32) {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashVector derives a deterministic unit vector of the given dimension from text.
// Bytes come from SHA-256 in counter mode (digest of text||counter), mapped to [-1, 1].
// Equal texts always give equal vectors; it carries no semantic similarity.
func HashVector(text string, dimensions int) []float32 {
	if dimensions <= 0 {
		return nil
	}

	out := make([]float32, dimensions)

	var (
		block   [sha256.Size]byte
		counter uint32
		buf     = make([]byte, len(text)+4)
	)

	copy(buf, text)

	for i := range out {
		pos := i % sha256.Size
		if pos == 0 {
			binary.BigEndian.PutUint32(buf[len(text):], counter)
			block = sha256.Sum256(buf)
			counter++
		}

		out[i] = (float32(block[pos]) / 127.5) - 1.0
	}

	NormalizeL2(out)

	return out
}

// Float64To32 converts SDK float64 embeddings to the float32 form the stores use.
func Float64To32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}

	return out
}
