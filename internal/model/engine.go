package model

import "fmt"

// Engine serves inference against one loaded artifact. Write-once at
// startup, read-many thereafter; all methods are safe for concurrent use.
type Engine struct {
	meta Metadata
	clf  classifier
	nfea int
}

// NewEngine builds an inference engine from a loaded artifact, validating it
// against the serving feature-schema fingerprint. A fingerprint disagreement
// returns a *SchemaMismatchError: the deployment must not serve.
func NewEngine(art *Artifact, servingFingerprint string) (*Engine, error) {
	if art.Metadata.SchemaFingerprint != servingFingerprint {
		return nil, &SchemaMismatchError{
			Want: art.Metadata.SchemaFingerprint,
			Got:  servingFingerprint,
		}
	}

	var (
		clf classifier
		err error
	)
	switch art.Kind {
	case "logistic":
		clf, err = newLogistic(art.Logistic)
	case "gbdt":
		clf, err = newGBDT(art.GBDT, len(art.Metadata.Features))
	default:
		err = fmt.Errorf("unknown model kind %q", art.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	return &Engine{
		meta: art.Metadata,
		clf:  clf,
		nfea: len(art.Metadata.Features),
	}, nil
}

// Metadata returns the loaded model's metadata snapshot.
func (e *Engine) Metadata() Metadata { return e.meta }

// Score runs inference on a single vector. The vector length is checked
// against the trained feature count: a mismatch is a *SchemaMismatchError,
// never a silent truncation or padding.
func (e *Engine) Score(v []float64) (Prediction, error) {
	if len(v) != e.nfea {
		return Prediction{}, &SchemaMismatchError{
			Want: fmt.Sprintf("%d features", e.nfea),
			Got:  fmt.Sprintf("%d features", len(v)),
		}
	}

	p := Prediction{Probability: e.clf.predictProba(v)}
	attr, err := e.clf.contributions(v)
	if err == nil {
		p.Attribution = attr
	}
	// ErrNoAttribution is deliberately swallowed here: the score is
	// authoritative, the explanation is best-effort.
	return p, nil
}

// ScoreBatch runs inference over vectors in one pass, preserving input
// order. All lengths are validated up front so a schema skew fails the whole
// batch before any probability is produced.
func (e *Engine) ScoreBatch(vs [][]float64) ([]Prediction, error) {
	for _, v := range vs {
		if len(v) != e.nfea {
			return nil, &SchemaMismatchError{
				Want: fmt.Sprintf("%d features", e.nfea),
				Got:  fmt.Sprintf("%d features", len(v)),
			}
		}
	}
	out := make([]Prediction, len(vs))
	for i, v := range vs {
		out[i].Probability = e.clf.predictProba(v)
		if attr, err := e.clf.contributions(v); err == nil {
			out[i].Attribution = attr
		}
	}
	return out, nil
}
