package search

import (
	"math"
	"sort"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 (opposite) and 1 (identical).
// Returns 0 if either vector has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Rank filters scored matches by threshold and orders them for reporting:
// score descending, ties broken by ascending issue number. The ordering is
// the single source of truth for every store backend, so rankings stay
// bit-for-bit comparable when the backend changes. A candidate scoring
// exactly the threshold is included. Scores are clamped to [0,1] after
// filtering.
func Rank(matches []Match, threshold float64) []Match {
	kept := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.score >= threshold {
			m.score = clampScore(m.score)
			kept = append(kept, m)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].number < kept[j].number
	})

	return kept
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
