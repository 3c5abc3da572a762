// Package feature transforms raw transaction records into the fixed-order
// numeric vectors the classifier was trained on.
//
// The transformation is a pure function of the record plus a pinned Schema
// and Vocab. Field order and count are a hard contract with the loaded model:
// the schema fingerprint binds the two, and internal/model refuses to serve
// when they disagree.
package feature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
)

// Record is a raw transaction as submitted for scoring.
//
// Boolean risk indicators use 0/1 integers to match the upstream data feed.
// RiskScore is an optional pre-computed composite; when absent it is derived
// from the risk flags the same way the training data derived it.
type Record struct {
	Amount            float64  `json:"transaction_amount"`
	TransactionTime   string   `json:"transaction_time,omitempty"`
	TimeOfDay         string   `json:"time_of_day,omitempty"`
	DayOfWeek         string   `json:"day_of_week,omitempty"`
	DeviceType        string   `json:"device_type,omitempty"`
	MerchantCategory  string   `json:"merchant_category,omitempty"`
	UserID            string   `json:"user_id,omitempty"`
	IsForeign         int      `json:"is_foreign_transaction"`
	IsHighRiskCountry int      `json:"is_high_risk_country"`
	PreviousFraudFlag int      `json:"previous_fraud_flag"`
	RiskScore         *float64 `json:"risk_score,omitempty"`
}

// Vector is an ordered feature vector laid out per the Schema.
type Vector []float64

// SchemaViolation reports a record that cannot be turned into a valid vector.
type SchemaViolation struct {
	Field  string
	Reason string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation: field %q %s", e.Field, e.Reason)
}

// Names of the pinned feature layout, in vector order. Changing this list in
// any way requires retraining the model and bumping the schema version.
var Names = []string{
	"amount",
	"amount_foreign",
	"is_foreign_transaction",
	"is_high_risk_country",
	"previous_fraud_flag",
	"hour_sin",
	"hour_cos",
	"dow_sin",
	"dow_cos",
	"time_of_day",
	"device_type",
	"merchant_category",
	"amount_hour",
	"risk_score",
	"rolling_mean_amount",
	"hours_since_last_tx",
}

// DefaultSchemaVersion identifies the current feature layout.
const DefaultSchemaVersion = "v2"

// Schema pins the feature layout the model was trained against.
type Schema struct {
	Version string
	names   []string
	index   map[string]int
}

// NewSchema builds the pinned schema for a layout version.
func NewSchema(version string) *Schema {
	idx := make(map[string]int, len(Names))
	for i, n := range Names {
		idx[n] = i
	}
	return &Schema{Version: version, names: Names, index: idx}
}

// Len returns the pinned vector length.
func (s *Schema) Len() int { return len(s.names) }

// Names returns the feature names in vector order.
func (s *Schema) Names() []string { return s.names }

// Name returns the human-readable name for a feature index, or a positional
// placeholder when the index is outside the schema.
func (s *Schema) Name(i int) string {
	if i < 0 || i >= len(s.names) {
		return fmt.Sprintf("feature_%d", i)
	}
	return s.names[i]
}

// Index returns the vector position of a named feature, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Fingerprint binds this layout to a trained model artifact. It hashes the
// version together with every name:position pair, so reordering, renaming,
// adding or removing a feature all produce a different value.
func (s *Schema) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(s.Version))
	for i, n := range s.names {
		fmt.Fprintf(h, "|%s:%d", n, i)
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// Builder converts records into schema-ordered vectors.
type Builder struct {
	schema *Schema
	vocab  *Vocab
}

// NewBuilder creates a feature builder bound to a schema and vocabulary.
func NewBuilder(schema *Schema, vocab *Vocab) *Builder {
	return &Builder{schema: schema, vocab: vocab}
}

// Schema returns the pinned schema this builder emits.
func (b *Builder) Schema() *Schema { return b.schema }

// timeLayouts accepted for TransactionTime, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Build derives the feature vector for a record.
//
// It returns a *SchemaViolation for a negative amount, a non-empty timestamp
// that does not parse, or an out-of-range risk flag. Unknown categorical
// values never fail: they resolve to the vocabulary's reserved unknown code
// so that serving keeps working as real-world values drift.
func (b *Builder) Build(rec Record) (Vector, error) {
	if rec.Amount < 0 {
		return nil, &SchemaViolation{Field: "transaction_amount", Reason: "must be non-negative"}
	}
	if math.IsNaN(rec.Amount) || math.IsInf(rec.Amount, 0) {
		return nil, &SchemaViolation{Field: "transaction_amount", Reason: "must be a finite number"}
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"is_foreign_transaction", rec.IsForeign},
		{"is_high_risk_country", rec.IsHighRiskCountry},
		{"previous_fraud_flag", rec.PreviousFraudFlag},
	} {
		if f.value != 0 && f.value != 1 {
			return nil, &SchemaViolation{Field: f.name, Reason: "must be 0 or 1"}
		}
	}

	hour, weekday, err := b.temporal(rec)
	if err != nil {
		return nil, err
	}

	foreign := float64(rec.IsForeign)
	highRisk := float64(rec.IsHighRiskCountry)
	prevFraud := float64(rec.PreviousFraudFlag)

	// Composite indicator carried over from the training data: previous
	// fraud weighs double.
	riskScore := (foreign + highRisk + 2*prevFraud) / 3
	if rec.RiskScore != nil {
		riskScore = *rec.RiskScore
	}

	v := make(Vector, b.schema.Len())
	v[0] = rec.Amount
	v[1] = rec.Amount * foreign
	v[2] = foreign
	v[3] = highRisk
	v[4] = prevFraud
	v[5] = math.Sin(2 * math.Pi * float64(hour) / 24)
	v[6] = math.Cos(2 * math.Pi * float64(hour) / 24)
	v[7] = math.Sin(2 * math.Pi * float64(weekday) / 7)
	v[8] = math.Cos(2 * math.Pi * float64(weekday) / 7)
	v[9] = b.vocab.TimeOfDayCode(rec.TimeOfDay)
	v[10] = b.vocab.DeviceTypeCode(rec.DeviceType)
	v[11] = b.vocab.MerchantCategoryCode(rec.MerchantCategory)
	v[12] = rec.Amount * float64(hour)
	v[13] = riskScore

	// User-history features are unavailable on the synchronous path; the
	// model was trained with the same cold-start defaults.
	v[14] = rec.Amount // rolling_mean_amount
	v[15] = 0          // hours_since_last_tx

	return v, nil
}

// temporal resolves the hour of day and day of week. The timestamp wins when
// present; otherwise the categorical labels stand in, with noon as the
// neutral default hour (matching how the training data filled gaps).
func (b *Builder) temporal(rec Record) (hour, weekday int, err error) {
	ts := strings.TrimSpace(rec.TransactionTime)
	if ts != "" {
		var t time.Time
		parsed := false
		for _, layout := range timeLayouts {
			if t, err = time.Parse(layout, ts); err == nil {
				parsed = true
				break
			}
		}
		if !parsed {
			return 0, 0, &SchemaViolation{Field: "transaction_time", Reason: "is not a valid timestamp"}
		}
		return t.Hour(), int(t.Weekday()), nil
	}

	hour = 12
	if h, ok := b.vocab.TimeOfDayHour(rec.TimeOfDay); ok {
		hour = h
	}
	weekday = 0
	if d, ok := b.vocab.Weekday(rec.DayOfWeek); ok {
		weekday = d
	}
	return hour, weekday, nil
}
