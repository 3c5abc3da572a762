// Package scoring composes the feature builder, inference engine, and
// explanation generator into the two public scoring operations: score-one
// and score-batch.
//
// Each record moves through a fixed stage progression (received →
// features_built → scored → explained → completed) or fails at a stage with
// a typed, machine-readable error. In a batch, every record's outcome is
// independent: one malformed record never aborts its neighbors. The only
// exceptions are deployment faults (model unavailable, schema mismatch),
// which fail the whole request — a risk score must never be silently wrong.
package scoring

import (
	"context"
	"time"

	"github.com/fintechlab/riskintel/internal/explain"
)

// Band is the coarse risk label derived from a score via configured
// thresholds.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// Default score→band thresholds; overridable via configuration.
const (
	DefaultThresholdLow  = 0.3
	DefaultThresholdHigh = 0.7
)

// Thresholds hold the score cut-offs for band derivation. Configuration,
// not pipeline logic: operators tune them without touching the pipeline.
type Thresholds struct {
	Low  float64
	High float64
}

// Band maps a risk score to its band.
func (t Thresholds) Band(score float64) Band {
	switch {
	case score < t.Low:
		return BandLow
	case score < t.High:
		return BandMedium
	default:
		return BandHigh
	}
}

// Stage identifies how far a record progressed through the pipeline.
type Stage string

const (
	StageReceived      Stage = "received"
	StageFeaturesBuilt Stage = "features_built"
	StageScored        Stage = "scored"
	StageExplained     Stage = "explained"
	StageCompleted     Stage = "completed"
	StageFailed        Stage = "failed"
)

// ErrorKind is the machine-readable classification of a scoring failure.
type ErrorKind string

const (
	// KindSchemaViolation: malformed or missing input field. Per-record,
	// recoverable, does not affect batch neighbors.
	KindSchemaViolation ErrorKind = "schema_violation"
	// KindSchemaMismatch: feature layout incompatible with the loaded
	// model. A deployment fault, fails the whole request.
	KindSchemaMismatch ErrorKind = "schema_mismatch"
	// KindModelUnavailable: no usable model. Fatal at startup.
	KindModelUnavailable ErrorKind = "model_unavailable"
	// KindExplanationUnavailable: soft failure, score still returned.
	KindExplanationUnavailable ErrorKind = "explanation_unavailable"
	// KindInternal: anything that escaped the taxonomy. Raw internal
	// errors never leak to callers unwrapped.
	KindInternal ErrorKind = "internal"
)

// ScoringError is the only error shape callers ever see from the pipeline.
type ScoringError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Stage   Stage     `json:"stage"`
}

func (e *ScoringError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// ScoreResult is the outcome of scoring one transaction.
type ScoreResult struct {
	RiskScore     float64          `json:"risk_score"`
	RiskBand      Band             `json:"risk_band"`
	Fraudulent    bool             `json:"fraudulent"`
	Confidence    float64          `json:"confidence"`
	ThresholdUsed float64          `json:"threshold_used"`
	Attributions  []explain.Factor `json:"attributions"`
	ModelVersion  string           `json:"model_version"`
	EvaluatedAt   time.Time        `json:"evaluated_at"`
}

// BatchItem is the per-record outcome of a batch request. Exactly one of
// Result and Error is set, indicated by Stage.
type BatchItem struct {
	Index  int           `json:"index"`
	Stage  Stage         `json:"stage"` // completed or failed
	Result *ScoreResult  `json:"result,omitempty"`
	Error  *ScoringError `json:"error,omitempty"`
}

// Assessment is the persisted audit record of a completed scoring decision.
type Assessment struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	Amount           float64          `json:"amount"`
	MerchantCategory string           `json:"merchantCategory"`
	RiskScore        float64          `json:"riskScore"`
	RiskBand         Band             `json:"riskBand"`
	Fraudulent       bool             `json:"fraudulent"`
	ModelVersion     string           `json:"modelVersion"`
	TopFactors       []explain.Factor `json:"topFactors,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// ListOptions filter assessment listings.
type ListOptions struct {
	Limit       int
	Band        Band
	UserID      string
	AfterCursor string // opaque pagination cursor
}

// Store persists assessments for the audit trail. Writes happen off the
// scoring critical path and are best-effort.
type Store interface {
	Record(ctx context.Context, a *Assessment) error
	Get(ctx context.Context, id string) (*Assessment, error)
	// List returns up to Limit+1 assessments, newest first, so callers can
	// compute pagination.
	List(ctx context.Context, opts ListOptions) ([]*Assessment, error)
}

// EventSink receives completed assessments for live consumers (the
// dashboard feed). Implementations must not block.
type EventSink interface {
	AssessmentCompleted(a *Assessment)
}

