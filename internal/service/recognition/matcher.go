package recognition

import (
	"math"
	"sync/atomic"

	"facewatch/internal/model"
)

// Matcher picks the gallery entry closest to a detected embedding by cosine
// similarity. The threshold may be changed while matching is in progress.
type Matcher struct {
	threshold atomic.Uint64
}

func NewMatcher(threshold float64) *Matcher {
	m := &Matcher{}
	m.SetThreshold(threshold)
	return m
}

func (m *Matcher) Threshold() float64 {
	return math.Float64frombits(m.threshold.Load())
}

func (m *Matcher) SetThreshold(threshold float64) {
	m.threshold.Store(math.Float64bits(threshold))
}

// Match returns the best entry when its similarity is strictly above the
// threshold, and the best similarity either way. Equal scores keep the
// earlier entry. Empty galleries and degenerate embeddings give (nil, 0).
// A non-positive similarity never matches, so an accepted score is in (0, 1].
func (m *Matcher) Match(embedding []float32, gallery []model.KnownFace) (*model.KnownFace, float64) {
	if len(gallery) == 0 || norm(embedding) == 0 {
		return nil, 0
	}

	best := -1
	bestSim := math.Inf(-1)
	for i := range gallery {
		sim := CosineSimilarity(embedding, gallery[i].Embedding)
		if sim > bestSim {
			best, bestSim = i, sim
		}
	}

	if bestSim > 0 && bestSim > m.Threshold() {
		return &gallery[best], math.Min(bestSim, 1)
	}
	return nil, bestSim
}

// CosineSimilarity is dot(a,b)/(|a||b|). Empty, zero or mismatched vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
