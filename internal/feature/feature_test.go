package feature

import (
	"errors"
	"math"
	"testing"
)

func testBuilder() *Builder {
	return NewBuilder(NewSchema(DefaultSchemaVersion), DefaultVocab())
}

func TestBuildPinnedLayout(t *testing.T) {
	b := testBuilder()

	rec := Record{
		Amount:            120.50,
		TransactionTime:   "2024-03-15T14:30:00Z",
		DeviceType:        "mobile",
		MerchantCategory:  "travel",
		IsForeign:         1,
		IsHighRiskCountry: 0,
		PreviousFraudFlag: 0,
	}

	v, err := b.Build(rec)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(v) != b.Schema().Len() {
		t.Fatalf("vector length = %d, want %d", len(v), b.Schema().Len())
	}

	// 2024-03-15T14:30:00Z is a Friday, hour 14.
	checks := map[string]float64{
		"amount":                 120.50,
		"amount_foreign":         120.50,
		"is_foreign_transaction": 1,
		"is_high_risk_country":   0,
		"previous_fraud_flag":    0,
		"hour_sin":               math.Sin(2 * math.Pi * 14 / 24),
		"hour_cos":               math.Cos(2 * math.Pi * 14 / 24),
		"dow_sin":                math.Sin(2 * math.Pi * 5 / 7),
		"dow_cos":                math.Cos(2 * math.Pi * 5 / 7),
		"device_type":            0, // mobile
		"merchant_category":      3, // travel
		"amount_hour":            120.50 * 14,
		"risk_score":             1.0 / 3,
		"rolling_mean_amount":    120.50,
		"hours_since_last_tx":    0,
	}
	for name, want := range checks {
		i := b.Schema().Index(name)
		if i < 0 {
			t.Fatalf("schema has no feature %q", name)
		}
		if math.Abs(v[i]-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, v[i], want)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	b := testBuilder()
	rec := Record{
		Amount:           42.0,
		TimeOfDay:        "evening",
		DayOfWeek:        "wednesday",
		DeviceType:       "desktop",
		MerchantCategory: "grocery",
	}

	v1, err := b.Build(rec)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	v2, err := b.Build(rec)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("position %d differs between identical builds: %v vs %v", i, v1[i], v2[i])
		}
	}
}

func TestBuildUnknownCategoricalsNeverFail(t *testing.T) {
	b := testBuilder()
	rec := Record{
		Amount:           10,
		DeviceType:       "smart_fridge",
		MerchantCategory: "crypto_atm",
		TimeOfDay:        "brunch",
	}

	v, err := b.Build(rec)
	if err != nil {
		t.Fatalf("unknown categorical values must not fail: %v", err)
	}
	for _, name := range []string{"time_of_day", "device_type", "merchant_category"} {
		if got := v[b.Schema().Index(name)]; got != UnknownCode {
			t.Errorf("%s = %v, want unknown code %v", name, got, UnknownCode)
		}
	}
}

func TestBuildViolations(t *testing.T) {
	b := testBuilder()

	tests := []struct {
		name  string
		rec   Record
		field string
	}{
		{"negative amount", Record{Amount: -5}, "transaction_amount"},
		{"nan amount", Record{Amount: math.NaN()}, "transaction_amount"},
		{"inf amount", Record{Amount: math.Inf(1)}, "transaction_amount"},
		{"foreign flag out of range", Record{Amount: 1, IsForeign: 2}, "is_foreign_transaction"},
		{"high risk flag out of range", Record{Amount: 1, IsHighRiskCountry: -1}, "is_high_risk_country"},
		{"fraud flag out of range", Record{Amount: 1, PreviousFraudFlag: 3}, "previous_fraud_flag"},
		{"unparseable timestamp", Record{Amount: 1, TransactionTime: "yesterday"}, "transaction_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.rec)
			var violation *SchemaViolation
			if !errors.As(err, &violation) {
				t.Fatalf("expected SchemaViolation, got %v", err)
			}
			if violation.Field != tt.field {
				t.Errorf("violation field = %q, want %q", violation.Field, tt.field)
			}
		})
	}
}

func TestBuildTimestampLayouts(t *testing.T) {
	b := testBuilder()
	hourIdx := b.Schema().Index("amount_hour")

	for _, ts := range []string{
		"2024-03-15T14:30:00Z",
		"2024-03-15T14:30:00",
		"2024-03-15 14:30:00",
	} {
		v, err := b.Build(Record{Amount: 1, TransactionTime: ts})
		if err != nil {
			t.Fatalf("layout %q rejected: %v", ts, err)
		}
		if v[hourIdx] != 14 {
			t.Errorf("layout %q: amount_hour = %v, want 14", ts, v[hourIdx])
		}
	}
}

func TestBuildTemporalDefaults(t *testing.T) {
	b := testBuilder()

	// Labels stand in when the timestamp is absent.
	v, err := b.Build(Record{Amount: 2, TimeOfDay: "night", DayOfWeek: "wednesday"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := v[b.Schema().Index("amount_hour")]; got != 2*1 {
		t.Errorf("night should map to hour 1, amount_hour = %v", got)
	}
	wantSin := math.Sin(2 * math.Pi * 3 / 7)
	if got := v[b.Schema().Index("dow_sin")]; math.Abs(got-wantSin) > 1e-9 {
		t.Errorf("wednesday dow_sin = %v, want %v", got, wantSin)
	}

	// No timestamp and no labels: noon, Sunday.
	v, err = b.Build(Record{Amount: 2})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := v[b.Schema().Index("amount_hour")]; got != 2*12 {
		t.Errorf("default hour should be 12, amount_hour = %v", got)
	}
}

func TestBuildRiskScore(t *testing.T) {
	b := testBuilder()
	idx := b.Schema().Index("risk_score")

	// Derived composite: previous fraud weighs double.
	v, err := b.Build(Record{Amount: 1, IsForeign: 1, IsHighRiskCountry: 1, PreviousFraudFlag: 1})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if want := 4.0 / 3; math.Abs(v[idx]-want) > 1e-9 {
		t.Errorf("derived risk_score = %v, want %v", v[idx], want)
	}

	// Caller-provided value wins.
	provided := 0.55
	v, err = b.Build(Record{Amount: 1, IsForeign: 1, RiskScore: &provided})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if v[idx] != provided {
		t.Errorf("provided risk_score = %v, want %v", v[idx], provided)
	}
}

func TestSchemaFingerprint(t *testing.T) {
	s := NewSchema(DefaultSchemaVersion)

	fp := s.Fingerprint()
	if len(fp) != 12 {
		t.Fatalf("fingerprint length = %d, want 12", len(fp))
	}
	if fp != s.Fingerprint() {
		t.Fatal("fingerprint is not deterministic")
	}
	if other := NewSchema("v3").Fingerprint(); other == fp {
		t.Fatal("different schema versions must not share a fingerprint")
	}
}

func TestSchemaNameAndIndex(t *testing.T) {
	s := NewSchema(DefaultSchemaVersion)

	if s.Name(0) != "amount" {
		t.Errorf("Name(0) = %q, want amount", s.Name(0))
	}
	if s.Name(99) != "feature_99" {
		t.Errorf("Name(99) = %q, want placeholder", s.Name(99))
	}
	if s.Index("no_such_feature") != -1 {
		t.Error("Index of unknown feature should be -1")
	}
	if s.Index(s.Name(5)) != 5 {
		t.Error("Index and Name are not inverse")
	}
}
