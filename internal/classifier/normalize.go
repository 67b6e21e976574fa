package classifier

import (
	"math"
	"sort"
)

const (
	// Epsilon is the smallest value a raw score counts as.
	Epsilon = 0.001

	// SumTolerance bounds how far a distribution may sum from 1.
	SumTolerance = 1e-6
)

// Normalize turns raw non-negative scores into a distribution that sums to 1,
// sorted descending. Equal scores keep their input order. Values below
// Epsilon (and NaN) count as Epsilon; repeated labels are merged into the
// first occurrence.
func Normalize(raw []Score) Distribution {
	if len(raw) == 0 {
		return Distribution{}
	}

	index := make(map[Label]int, len(raw))
	merged := make(Distribution, 0, len(raw))
	for _, s := range raw {
		if i, ok := index[s.Label]; ok {
			merged[i].Score += s.Score
			continue
		}
		index[s.Label] = len(merged)
		merged = append(merged, s)
	}

	var total float64
	for i := range merged {
		if !(merged[i].Score > Epsilon) {
			merged[i].Score = Epsilon
		}
		total += merged[i].Score
	}

	for i := range merged {
		merged[i].Score /= total
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	return merged
}

// Softmax converts logits into probabilities.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}

	max := math.Inf(-1)
	for _, v := range logits {
		if v > max {
			max = v
		}
	}

	probs := make([]float64, len(logits))
	var total float64
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		total += probs[i]
	}
	for i := range probs {
		probs[i] /= total
	}

	return probs
}

// Zip pairs labels with values by position. Labels without a value score 0.
func Zip(labels []Label, values []float64) []Score {
	scores := make([]Score, len(labels))
	for i, l := range labels {
		scores[i] = Score{Label: l}
		if i < len(values) {
			scores[i].Score = values[i]
		}
	}
	return scores
}
