package embeddings

import (
	"fmt"
	"math"
	"sort"
)

// CosineSimilarity calculates the cosine similarity between two vectors
// Returns a value between -1 and 1, where 1 means identical direction
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have same length: %d vs %d", len(a), len(b))
	}

	if len(a) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}

	dotProduct := 0.0
	normA := 0.0
	normB := 0.0

	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("vector norm cannot be zero")
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))

	// Clamp to [-1, 1] to handle floating point errors
	return math.Max(-1, math.Min(1, similarity)), nil
}

// Candidate is a vector competing for a place in a top-k ranking
type Candidate struct {
	Key    string
	Vector []float64
}

// Match is a ranked candidate
type Match struct {
	Key   string
	Score float64
}

// TopK ranks candidates by cosine similarity to query and returns the best k.
// Candidates whose dimensions do not match the query are skipped. Ties are
// broken by key so results are deterministic.
func TopK(query []float64, candidates []Candidate, k int) []Match {
	if k <= 0 || len(query) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score, err := CosineSimilarity(query, c.Vector)
		if err != nil {
			continue
		}
		matches = append(matches, Match{Key: c.Key, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Key < matches[j].Key
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
