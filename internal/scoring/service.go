package scoring

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/fintechlab/riskintel/internal/explain"
	"github.com/fintechlab/riskintel/internal/feature"
	"github.com/fintechlab/riskintel/internal/idgen"
	"github.com/fintechlab/riskintel/internal/logging"
	"github.com/fintechlab/riskintel/internal/metrics"
	"github.com/fintechlab/riskintel/internal/model"
	"github.com/fintechlab/riskintel/internal/traces"
)

// topFactorCount limits how many factors are persisted and broadcast per
// assessment. The full list still goes back to the caller.
const topFactorCount = 5

// Service orchestrates the scoring pipeline. All of its dependencies are
// immutable after construction, so one Service serves all concurrent
// requests without locking.
type Service struct {
	builder    *feature.Builder
	engine     *model.Engine
	thresholds Thresholds
	store      Store
	events     EventSink
	logger     *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithStore enables the assessment audit trail.
func WithStore(store Store) Option {
	return func(s *Service) { s.store = store }
}

// WithEventSink streams completed assessments to live consumers.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService wires the pipeline together. The builder's schema and the
// engine's artifact were already fingerprint-checked against each other when
// the engine was constructed.
func NewService(builder *feature.Builder, engine *model.Engine, thresholds Thresholds, opts ...Option) *Service {
	s := &Service{
		builder:    builder,
		engine:     engine,
		thresholds: thresholds,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metadata exposes the loaded model's metadata snapshot.
func (s *Service) Metadata() model.Metadata { return s.engine.Metadata() }

// Schema exposes the pinned serving schema.
func (s *Service) Schema() *feature.Schema { return s.builder.Schema() }

// Thresholds exposes the configured band thresholds.
func (s *Service) Thresholds() Thresholds { return s.thresholds }

// ScoreOne runs one record through the full pipeline.
func (s *Service) ScoreOne(ctx context.Context, rec feature.Record) (*ScoreResult, *ScoringError) {
	ctx, span := traces.StartSpan(ctx, "scoring.ScoreOne", traces.UserID(rec.UserID))
	defer span.End()

	start := time.Now()

	vec, err := s.builder.Build(rec)
	if err != nil {
		return nil, s.fail(ctx, err, StageReceived)
	}

	pred, err := s.engine.Score(vec)
	if err != nil {
		return nil, s.fail(ctx, err, StageFeaturesBuilt)
	}

	result := s.assemble(rec, pred)
	metrics.ScoreDuration.Observe(time.Since(start).Seconds())
	metrics.ScoresTotal.WithLabelValues(string(result.RiskBand)).Inc()
	span.SetAttributes(traces.RiskBand(string(result.RiskBand)))

	s.audit(rec, result)
	return result, nil
}

// ScoreBatch runs records through the pipeline with per-record outcomes.
// Output order matches input order. A malformed record fails alone; a
// deployment fault (model/schema skew) or context cancellation fails the
// whole request.
func (s *Service) ScoreBatch(ctx context.Context, recs []feature.Record) ([]BatchItem, *ScoringError) {
	ctx, span := traces.StartSpan(ctx, "scoring.ScoreBatch", traces.BatchSize(len(recs)))
	defer span.End()

	metrics.BatchRecords.Observe(float64(len(recs)))

	items := make([]BatchItem, len(recs))
	vectors := make([][]float64, 0, len(recs))
	vectorIdx := make([]int, 0, len(recs)) // batch index per vector

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, &ScoringError{
				Kind:    KindInternal,
				Message: "batch request cancelled",
				Stage:   StageFailed,
			}
		}
		items[i].Index = i
		vec, err := s.builder.Build(rec)
		if err != nil {
			items[i].Stage = StageFailed
			items[i].Error = s.fail(ctx, err, StageReceived)
			continue
		}
		vectors = append(vectors, vec)
		vectorIdx = append(vectorIdx, i)
	}

	// One amortized inference pass over everything that built cleanly.
	preds, err := s.engine.ScoreBatch(vectors)
	if err != nil {
		return nil, s.fail(ctx, err, StageFeaturesBuilt)
	}

	for vi, pred := range preds {
		i := vectorIdx[vi]
		result := s.assemble(recs[i], pred)
		items[i].Stage = StageCompleted
		items[i].Result = result
		metrics.ScoresTotal.WithLabelValues(string(result.RiskBand)).Inc()
		s.audit(recs[i], result)
	}

	return items, nil
}

// assemble turns a raw prediction into the caller-facing result.
func (s *Service) assemble(rec feature.Record, pred model.Prediction) *ScoreResult {
	meta := s.engine.Metadata()

	factors := explain.Explain(s.builder.Schema(), pred.Attribution)
	if len(factors) == 0 {
		metrics.ExplanationsEmptyTotal.Inc()
	}

	score := pred.Probability
	return &ScoreResult{
		RiskScore:     round3(score),
		RiskBand:      s.thresholds.Band(score),
		Fraudulent:    score >= meta.OptimalThreshold,
		Confidence:    round3(math.Max(score, 1-score)),
		ThresholdUsed: meta.OptimalThreshold,
		Attributions:  factors,
		ModelVersion:  meta.Version,
		EvaluatedAt:   time.Now().UTC(),
	}
}

// audit persists and broadcasts the decision off the critical path.
// Best-effort: an audit failure never fails the score.
func (s *Service) audit(rec feature.Record, result *ScoreResult) {
	if s.store == nil && s.events == nil {
		return
	}

	a := &Assessment{
		ID:               idgen.WithPrefix("asmt_"),
		UserID:           rec.UserID,
		Amount:           rec.Amount,
		MerchantCategory: rec.MerchantCategory,
		RiskScore:        result.RiskScore,
		RiskBand:         result.RiskBand,
		Fraudulent:       result.Fraudulent,
		ModelVersion:     result.ModelVersion,
		TopFactors:       explain.Top(result.Attributions, topFactorCount),
		CreatedAt:        result.EvaluatedAt,
	}

	if s.events != nil {
		s.events.AssessmentCompleted(a)
	}
	if s.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.store.Record(ctx, a); err != nil {
				s.logger.Warn("assessment audit write failed", "id", a.ID, "error", err)
			}
		}()
	}
}

// fail translates any internal error into the taxonomy, records it, and
// never lets the raw error escape.
func (s *Service) fail(ctx context.Context, err error, stage Stage) *ScoringError {
	se := translate(err, stage)
	metrics.ScoringErrorsTotal.WithLabelValues(string(se.Kind)).Inc()
	logging.L(ctx).Warn("scoring failed",
		"kind", se.Kind,
		"stage", se.Stage,
		"error", err,
	)
	return se
}

func translate(err error, stage Stage) *ScoringError {
	var violation *feature.SchemaViolation
	if errors.As(err, &violation) {
		return &ScoringError{Kind: KindSchemaViolation, Message: violation.Error(), Stage: stage}
	}
	var mismatch *model.SchemaMismatchError
	if errors.As(err, &mismatch) {
		return &ScoringError{Kind: KindSchemaMismatch, Message: mismatch.Error(), Stage: stage}
	}
	if errors.Is(err, model.ErrModelUnavailable) {
		return &ScoringError{Kind: KindModelUnavailable, Message: "model is not available", Stage: stage}
	}
	if errors.Is(err, model.ErrNoAttribution) {
		return &ScoringError{Kind: KindExplanationUnavailable, Message: "explanation unavailable for this model type", Stage: stage}
	}
	return &ScoringError{Kind: KindInternal, Message: "internal scoring error", Stage: stage}
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
