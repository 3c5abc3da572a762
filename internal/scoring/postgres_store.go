package scoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/fintechlab/riskintel/internal/explain"
	"github.com/fintechlab/riskintel/internal/pagination"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed assessment store. The
// assessments table is created by the migrations under migrations/.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// Record stores an assessment.
func (p *PostgresStore) Record(ctx context.Context, a *Assessment) error {
	factors, err := json.Marshal(a.TopFactors)
	if err != nil {
		return fmt.Errorf("marshal top factors: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO assessments (
			id, user_id, amount, merchant_category,
			risk_score, risk_band, fraudulent, model_version,
			top_factors, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		a.ID, a.UserID, a.Amount, a.MerchantCategory,
		a.RiskScore, a.RiskBand, a.Fraudulent, a.ModelVersion,
		factors, a.CreatedAt,
	)
	return err
}

// Get retrieves an assessment by ID.
func (p *PostgresStore) Get(ctx context.Context, id string) (*Assessment, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, amount, merchant_category,
		       risk_score, risk_band, fraudulent, model_version,
		       top_factors, created_at
		FROM assessments
		WHERE id = $1
	`, id)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssessmentNotFound
	}
	return a, err
}

// List returns up to Limit+1 assessments, newest first, applying the
// optional band/user filters and cursor.
func (p *PostgresStore) List(ctx context.Context, opts ListOptions) ([]*Assessment, error) {
	cursor, err := pagination.Decode(opts.AfterCursor)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, amount, merchant_category,
		       risk_score, risk_band, fraudulent, model_version,
		       top_factors, created_at
		FROM assessments
		WHERE 1=1`
	args := []any{}

	if opts.Band != "" {
		args = append(args, string(opts.Band))
		query += " AND risk_band = $" + strconv.Itoa(len(args))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		query += " AND user_id = $" + strconv.Itoa(len(args))
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		n := len(args)
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", n-1, n)
	}

	args = append(args, limit+1)
	query += " ORDER BY created_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*Assessment, error) {
	var (
		a       Assessment
		factors []byte
	)
	err := row.Scan(
		&a.ID, &a.UserID, &a.Amount, &a.MerchantCategory,
		&a.RiskScore, &a.RiskBand, &a.Fraudulent, &a.ModelVersion,
		&factors, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &a.TopFactors); err != nil {
			a.TopFactors = []explain.Factor{}
		}
	}
	return &a, nil
}
