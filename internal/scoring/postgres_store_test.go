package scoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fintechlab/riskintel/internal/explain"
	"github.com/fintechlab/riskintel/internal/pagination"
	"github.com/fintechlab/riskintel/internal/testutil"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	a := &Assessment{
		ID:               "asmt_pg_roundtrip",
		UserID:           "user-42",
		Amount:           149.99,
		MerchantCategory: "electronics",
		RiskScore:        0.83,
		RiskBand:         BandHigh,
		Fraudulent:       true,
		ModelVersion:     "v2.1.0",
		TopFactors: []explain.Factor{
			{Feature: "previous_fraud_flag", Weight: 3.1},
			{Feature: "amount", Weight: -0.4},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	if err := store.Record(ctx, a); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != a.UserID || got.Amount != a.Amount || got.RiskBand != a.RiskBand {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Fraudulent {
		t.Error("fraudulent flag lost")
	}
	if len(got.TopFactors) != 2 || got.TopFactors[0].Feature != "previous_fraud_flag" {
		t.Errorf("top factors not preserved: %+v", got.TopFactors)
	}
	if !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, a.CreatedAt)
	}
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	if _, err := store.Get(context.Background(), "asmt_missing"); !errors.Is(err, ErrAssessmentNotFound) {
		t.Fatalf("expected ErrAssessmentNotFound, got %v", err)
	}
}

func TestPostgresStoreListFiltersAndPagination(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)

	for i := 0; i < 6; i++ {
		band := BandLow
		if i%2 == 0 {
			band = BandHigh
		}
		a := &Assessment{
			ID:           fmt.Sprintf("asmt_pg_%03d", i),
			UserID:       fmt.Sprintf("user-%d", i%3),
			Amount:       float64(i),
			RiskScore:    0.1 * float64(i),
			RiskBand:     band,
			ModelVersion: "v2.1.0",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}

	all, err := store.List(ctx, ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("got %d rows, want 6", len(all))
	}
	if all[0].ID != "asmt_pg_005" {
		t.Errorf("newest first violated, got %s", all[0].ID)
	}

	high, err := store.List(ctx, ListOptions{Limit: 10, Band: BandHigh})
	if err != nil {
		t.Fatalf("List by band failed: %v", err)
	}
	if len(high) != 3 {
		t.Fatalf("band filter returned %d rows, want 3", len(high))
	}

	byUser, err := store.List(ctx, ListOptions{Limit: 10, UserID: "user-1"})
	if err != nil {
		t.Fatalf("List by user failed: %v", err)
	}
	if len(byUser) != 2 {
		t.Fatalf("user filter returned %d rows, want 2", len(byUser))
	}

	// Fetch limit+1 rows, follow the cursor, verify no overlap.
	first, err := store.List(ctx, ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List page 1 failed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("page 1 = %d rows, want limit+1 = 3", len(first))
	}

	page := first[:2]
	last := page[len(page)-1]
	second, err := store.List(ctx, ListOptions{
		Limit:       10,
		AfterCursor: pagination.Encode(last.CreatedAt, last.ID),
	})
	if err != nil {
		t.Fatalf("List page 2 failed: %v", err)
	}
	if len(second) != 4 {
		t.Fatalf("page 2 = %d rows, want 4", len(second))
	}
	for _, a := range second {
		for _, b := range page {
			if a.ID == b.ID {
				t.Errorf("assessment %s appeared on both pages", a.ID)
			}
		}
	}
}
