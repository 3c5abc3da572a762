// Package model wraps the trained fraud classifier behind a read-only
// inference engine.
//
// The trained artifact is produced offline and loaded once at process start.
// After loading, the engine is immutable and safe for concurrent use without
// locking. The engine validates the artifact's feature-schema fingerprint
// against the serving schema before any request is scored, so a model/feature
// version skew fails at boot instead of silently corrupting predictions.
package model

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable indicates the trained artifact could not be loaded.
// Fatal at startup; the process must not serve scores without a model.
var ErrModelUnavailable = errors.New("model unavailable")

// ErrNoAttribution indicates the classifier kind has no intrinsic
// per-feature contributions. Scores remain valid; explanations degrade.
var ErrNoAttribution = errors.New("attribution not supported by model type")

// SchemaMismatchError reports a feature layout that disagrees with the one
// the model was trained on. A deployment fault, never a per-record one.
type SchemaMismatchError struct {
	Want string // expected by the model artifact
	Got  string // produced by the serving feature schema
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: model expects %s, feature builder produces %s", e.Want, e.Got)
}

// Metadata describes the trained artifact. Immutable once loaded.
type Metadata struct {
	Version           string             `json:"model_version"`
	Type              string             `json:"model_type"`
	TrainedAt         string             `json:"training_date"`
	SchemaVersion     string             `json:"schema_version"`
	SchemaFingerprint string             `json:"schema_fingerprint"`
	Features          []string           `json:"features"`
	OptimalThreshold  float64            `json:"optimal_threshold"`
	Metrics           map[string]float64 `json:"model_metrics,omitempty"`
}

// Prediction is the classifier output for one vector. Attribution holds the
// per-feature contribution weights in schema order, or nil when the
// underlying classifier kind cannot produce them.
type Prediction struct {
	Probability float64
	Attribution []float64
}

// classifier is the opaque capability the engine drives. Implementations are
// pure functions of their parameters; no state is mutated after load.
type classifier interface {
	// predictProba returns the positive-class probability for a vector of
	// the trained length.
	predictProba(v []float64) float64
	// contributions returns per-feature contribution weights, or
	// ErrNoAttribution when the model kind has none.
	contributions(v []float64) ([]float64, error)
}
