package model

import (
	"fmt"
	"math"
)

// LogisticParams are the trained parameters of a standardized logistic
// regression: z = intercept + Σ coef[i] * (x[i] - mean[i]) / std[i].
type LogisticParams struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Means        []float64 `json:"means"`
	Stds         []float64 `json:"stds"`
}

// logistic scores vectors with a standardized logistic regression. Its
// additive form gives exact per-feature contributions for explanations.
type logistic struct {
	coef      []float64
	intercept float64
	means     []float64
	stds      []float64
}

func newLogistic(p *LogisticParams) (*logistic, error) {
	n := len(p.Coefficients)
	if n == 0 {
		return nil, fmt.Errorf("logistic model has no coefficients")
	}
	if len(p.Means) != n || len(p.Stds) != n {
		return nil, fmt.Errorf("logistic model standardizer length %d/%d does not match %d coefficients",
			len(p.Means), len(p.Stds), n)
	}
	for i, s := range p.Stds {
		if s <= 0 {
			return nil, fmt.Errorf("logistic model std[%d] = %v, must be positive", i, s)
		}
	}
	return &logistic{
		coef:      p.Coefficients,
		intercept: p.Intercept,
		means:     p.Means,
		stds:      p.Stds,
	}, nil
}

func (m *logistic) predictProba(v []float64) float64 {
	z := m.intercept
	for i, x := range v {
		z += m.coef[i] * (x - m.means[i]) / m.stds[i]
	}
	return sigmoid(z)
}

// contributions returns each feature's additive term in the logit. The terms
// sum (with the intercept) to the pre-sigmoid score, which makes the
// explanation faithful to the decision rather than a post-hoc estimate.
func (m *logistic) contributions(v []float64) ([]float64, error) {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = m.coef[i] * (x - m.means[i]) / m.stds[i]
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
