package scoring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fintechlab/riskintel/internal/feature"
	"github.com/fintechlab/riskintel/internal/model"
)

// newTestEngine builds a logistic engine over the real serving schema where
// the score depends only on the previous-fraud flag:
// z = -2 + 4*previous_fraud_flag, so clean records score ~0.119 and flagged
// ones ~0.881.
func newTestEngine(t *testing.T, schema *feature.Schema) *model.Engine {
	t.Helper()

	coef := make([]float64, schema.Len())
	coef[schema.Index("previous_fraud_flag")] = 4
	means := make([]float64, schema.Len())
	stds := make([]float64, schema.Len())
	for i := range stds {
		stds[i] = 1
	}

	art := &model.Artifact{
		Metadata: model.Metadata{
			Version:           "v2.1.0-test",
			Type:              "logistic_regression",
			SchemaVersion:     schema.Version,
			SchemaFingerprint: schema.Fingerprint(),
			Features:          schema.Names(),
			OptimalThreshold:  0.5,
		},
		Kind: "logistic",
		Logistic: &model.LogisticParams{
			Coefficients: coef,
			Intercept:    -2,
			Means:        means,
			Stds:         stds,
		},
	}

	eng, err := model.NewEngine(art, schema.Fingerprint())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return eng
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	schema := feature.NewSchema(feature.DefaultSchemaVersion)
	builder := feature.NewBuilder(schema, feature.DefaultVocab())
	engine := newTestEngine(t, schema)
	thresholds := Thresholds{Low: DefaultThresholdLow, High: DefaultThresholdHigh}
	return NewService(builder, engine, thresholds, opts...)
}

// captureSink records broadcast assessments for assertions.
type captureSink struct {
	mu          sync.Mutex
	assessments []*Assessment
}

func (c *captureSink) AssessmentCompleted(a *Assessment) {
	c.mu.Lock()
	c.assessments = append(c.assessments, a)
	c.mu.Unlock()
}

func TestScoreOneLowRisk(t *testing.T) {
	svc := newTestService(t)

	result, serr := svc.ScoreOne(context.Background(), feature.Record{
		Amount:           25.0,
		DeviceType:       "mobile",
		MerchantCategory: "grocery",
	})
	if serr != nil {
		t.Fatalf("ScoreOne failed: %v", serr)
	}

	if result.RiskBand != BandLow {
		t.Errorf("band = %s, want low", result.RiskBand)
	}
	if result.Fraudulent {
		t.Error("clean record flagged fraudulent")
	}
	if result.RiskScore != 0.119 {
		t.Errorf("risk score = %v, want 0.119", result.RiskScore)
	}
	if result.Confidence != 0.881 {
		t.Errorf("confidence = %v, want 0.881", result.Confidence)
	}
	if result.ThresholdUsed != 0.5 {
		t.Errorf("threshold = %v, want 0.5", result.ThresholdUsed)
	}
	if len(result.Attributions) != svc.Schema().Len() {
		t.Errorf("attributions = %d, want full schema", len(result.Attributions))
	}
	if result.ModelVersion != "v2.1.0-test" {
		t.Errorf("model version = %q", result.ModelVersion)
	}
}

func TestScoreOneHighRisk(t *testing.T) {
	svc := newTestService(t)

	result, serr := svc.ScoreOne(context.Background(), feature.Record{
		Amount:            900,
		PreviousFraudFlag: 1,
	})
	if serr != nil {
		t.Fatalf("ScoreOne failed: %v", serr)
	}

	if result.RiskBand != BandHigh {
		t.Errorf("band = %s, want high", result.RiskBand)
	}
	if !result.Fraudulent {
		t.Error("flagged record should be fraudulent at threshold 0.5")
	}
	if result.Attributions[0].Feature != "previous_fraud_flag" {
		t.Errorf("top factor = %q, want previous_fraud_flag", result.Attributions[0].Feature)
	}
	if result.Attributions[0].Weight != 4 {
		t.Errorf("top factor weight = %v, want 4", result.Attributions[0].Weight)
	}
}

func TestScoreOneSchemaViolation(t *testing.T) {
	svc := newTestService(t)

	_, serr := svc.ScoreOne(context.Background(), feature.Record{Amount: -5})
	if serr == nil {
		t.Fatal("negative amount must fail")
	}
	if serr.Kind != KindSchemaViolation {
		t.Errorf("kind = %s, want schema_violation", serr.Kind)
	}
	if serr.Stage != StageReceived {
		t.Errorf("stage = %s, want received", serr.Stage)
	}
}

func TestScoreBatchMixedOutcomes(t *testing.T) {
	svc := newTestService(t)

	recs := []feature.Record{
		{Amount: 10},
		{Amount: -5},
		{Amount: 30, PreviousFraudFlag: 1},
	}

	items, serr := svc.ScoreBatch(context.Background(), recs)
	if serr != nil {
		t.Fatalf("ScoreBatch failed: %v", serr)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	for i, item := range items {
		if item.Index != i {
			t.Errorf("item %d carries index %d", i, item.Index)
		}
	}

	if items[0].Stage != StageCompleted || items[0].Result == nil {
		t.Errorf("record 0 should complete: %+v", items[0])
	}
	if items[2].Stage != StageCompleted || items[2].Result == nil {
		t.Errorf("record 2 should complete despite record 1 failing: %+v", items[2])
	}
	if items[2].Result.RiskBand != BandHigh {
		t.Errorf("record 2 band = %s, want high", items[2].Result.RiskBand)
	}

	if items[1].Stage != StageFailed || items[1].Error == nil {
		t.Fatalf("record 1 should fail: %+v", items[1])
	}
	if items[1].Error.Kind != KindSchemaViolation {
		t.Errorf("record 1 error kind = %s, want schema_violation", items[1].Error.Kind)
	}
	if items[1].Result != nil {
		t.Error("failed record must not carry a result")
	}
}

func TestScoreBatchMatchesScoreOne(t *testing.T) {
	svc := newTestService(t)
	rec := feature.Record{Amount: 77, PreviousFraudFlag: 1, MerchantCategory: "travel"}

	single, serr := svc.ScoreOne(context.Background(), rec)
	if serr != nil {
		t.Fatalf("ScoreOne failed: %v", serr)
	}
	items, serr := svc.ScoreBatch(context.Background(), []feature.Record{rec})
	if serr != nil {
		t.Fatalf("ScoreBatch failed: %v", serr)
	}

	batch := items[0].Result
	if batch.RiskScore != single.RiskScore || batch.RiskBand != single.RiskBand || batch.Fraudulent != single.Fraudulent {
		t.Errorf("batch result %+v diverges from single result %+v", batch, single)
	}
}

func TestScoreBatchCancelledContext(t *testing.T) {
	svc := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, serr := svc.ScoreBatch(ctx, []feature.Record{{Amount: 1}})
	if serr == nil {
		t.Fatal("cancelled context must fail the batch")
	}
	if serr.Kind != KindInternal {
		t.Errorf("kind = %s, want internal", serr.Kind)
	}
}

func TestThresholdBands(t *testing.T) {
	th := Thresholds{Low: 0.3, High: 0.7}

	tests := []struct {
		score float64
		want  Band
	}{
		{0.0, BandLow},
		{0.29, BandLow},
		{0.3, BandMedium},
		{0.69, BandMedium},
		{0.7, BandHigh},
		{1.0, BandHigh},
	}
	for _, tt := range tests {
		if got := th.Band(tt.score); got != tt.want {
			t.Errorf("Band(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestAuditTrail(t *testing.T) {
	store := NewMemoryStore()
	sink := &captureSink{}
	svc := newTestService(t, WithStore(store), WithEventSink(sink))

	_, serr := svc.ScoreOne(context.Background(), feature.Record{
		Amount:            50,
		UserID:            "user-42",
		MerchantCategory:  "electronics",
		PreviousFraudFlag: 1,
	})
	if serr != nil {
		t.Fatalf("ScoreOne failed: %v", serr)
	}

	// Events are synchronous.
	sink.mu.Lock()
	if len(sink.assessments) != 1 {
		sink.mu.Unlock()
		t.Fatalf("got %d broadcast assessments, want 1", len(sink.assessments))
	}
	a := sink.assessments[0]
	sink.mu.Unlock()

	if a.UserID != "user-42" || a.Amount != 50 || a.MerchantCategory != "electronics" {
		t.Errorf("assessment fields wrong: %+v", a)
	}
	if a.RiskBand != BandHigh || !a.Fraudulent {
		t.Errorf("assessment decision wrong: %+v", a)
	}
	if len(a.TopFactors) == 0 || len(a.TopFactors) > topFactorCount {
		t.Errorf("top factors = %d, want 1..%d", len(a.TopFactors), topFactorCount)
	}

	// The store write is async and best-effort; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := store.Get(context.Background(), a.ID)
		if err == nil {
			if got.RiskBand != BandHigh {
				t.Errorf("persisted band = %s, want high", got.RiskBand)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("assessment was never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGBDTServiceEmptyExplanations(t *testing.T) {
	schema := feature.NewSchema(feature.DefaultSchemaVersion)
	builder := feature.NewBuilder(schema, feature.DefaultVocab())

	fraudIdx := schema.Index("previous_fraud_flag")
	art := &model.Artifact{
		Metadata: model.Metadata{
			Version:           "v2.2.0-test",
			Type:              "gradient_boosting",
			SchemaVersion:     schema.Version,
			SchemaFingerprint: schema.Fingerprint(),
			Features:          schema.Names(),
			OptimalThreshold:  0.5,
		},
		Kind: "gbdt",
		GBDT: &model.GBDTParams{
			Trees: []model.Tree{{Nodes: []model.TreeNode{
				{Feature: fraudIdx, Threshold: 0.5, Left: 1, Right: 2},
				{Feature: -1, Value: -2},
				{Feature: -1, Value: 2},
			}}},
		},
	}
	engine, err := model.NewEngine(art, schema.Fingerprint())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	svc := NewService(builder, engine, Thresholds{Low: 0.3, High: 0.7})

	result, serr := svc.ScoreOne(context.Background(), feature.Record{Amount: 10, PreviousFraudFlag: 1})
	if serr != nil {
		t.Fatalf("ScoreOne failed: %v", serr)
	}
	if result.RiskBand != BandHigh {
		t.Errorf("band = %s, want high", result.RiskBand)
	}
	if result.Attributions == nil {
		t.Fatal("attributions should be an empty list, not null")
	}
	if len(result.Attributions) != 0 {
		t.Errorf("gbdt attributions = %d, want 0", len(result.Attributions))
	}
}
