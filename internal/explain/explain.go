// Package explain turns raw per-feature attribution weights into a ranked,
// human-readable list of contributing factors.
package explain

import (
	"sort"

	"github.com/fintechlab/riskintel/internal/feature"
)

// Factor is one feature's contribution to a score.
type Factor struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Explain maps attribution weights back to feature names and ranks them by
// absolute contribution, strongest first. Ties break on schema order, so the
// output is fully deterministic for identical input. A nil or empty
// attribution yields an empty list: explanation is best-effort, the score
// stands on its own.
func Explain(schema *feature.Schema, attribution []float64) []Factor {
	if len(attribution) == 0 {
		return []Factor{}
	}

	factors := make([]Factor, len(attribution))
	order := make(map[string]int, len(attribution))
	for i, w := range attribution {
		name := schema.Name(i)
		factors[i] = Factor{Feature: name, Weight: w}
		order[name] = i
	}

	sort.SliceStable(factors, func(i, j int) bool {
		ai, aj := abs(factors[i].Weight), abs(factors[j].Weight)
		if ai != aj {
			return ai > aj
		}
		return order[factors[i].Feature] < order[factors[j].Feature]
	})

	return factors
}

// Top returns the strongest n factors (or all of them if fewer).
func Top(factors []Factor, n int) []Factor {
	if n >= len(factors) {
		return factors
	}
	return factors[:n]
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
