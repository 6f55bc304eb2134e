package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"qsync/internal/platform/postgres"
	"qsync/internal/risk/models"
	"qsync/internal/scoring"
	id "qsync/pkg/domain"
	"qsync/pkg/platform/sentinel"
	txcontext "qsync/pkg/platform/tx"
)

// PostgresStore persists risks. Derived score columns are written for
// reporting queries; reads recompute them from the raw assessment.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectRisk = `SELECT id, title, description, category, consequence, likelihood, controllability,
	residual_consequence, residual_likelihood, mitigation, status, owner_unit, created_by, created_at, updated_at
	FROM risks`

func (s *PostgresStore) Create(ctx context.Context, r *models.Risk) error {
	query := `
		INSERT INTO risks (
			id, title, description, category, consequence, likelihood, controllability,
			residual_consequence, residual_likelihood, mitigation, status,
			risk_score, risk_level, residual_risk_score, residual_risk_level,
			owner_unit, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.Title,
		r.Description,
		r.Category,
		nullFloat(r.Consequence),
		nullFloat(r.Likelihood),
		nullFloat(r.Controllability),
		nullFloat(r.ResidualConsequence),
		nullFloat(r.ResidualLikelihood),
		r.Mitigation,
		string(r.Status),
		r.Score.Score,
		string(r.Score.Level),
		r.Score.ResidualScore,
		residualLevel(r.Score),
		r.OwnerUnit,
		string(r.CreatedBy),
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert risk: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, riskID id.RiskID) (*models.Risk, error) {
	return s.find(ctx, selectRisk+` WHERE id = $1`, riskID)
}

func (s *PostgresStore) FindForUpdate(ctx context.Context, riskID id.RiskID) (*models.Risk, error) {
	return s.find(ctx, selectRisk+` WHERE id = $1 FOR UPDATE`, riskID)
}

func (s *PostgresStore) find(ctx context.Context, query string, riskID id.RiskID) (*models.Risk, error) {
	r, err := scanRisk(txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(riskID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find risk: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Risk, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, selectRisk+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list risks: %w", err)
	}
	defer rows.Close()

	var out []*models.Risk
	for rows.Next() {
		r, err := scanRisk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan risk: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risks: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Risk) error {
	query := `
		UPDATE risks SET
			title = $2, description = $3, category = $4,
			consequence = $5, likelihood = $6, controllability = $7,
			residual_consequence = $8, residual_likelihood = $9,
			mitigation = $10, status = $11,
			risk_score = $12, risk_level = $13, residual_risk_score = $14, residual_risk_level = $15,
			owner_unit = $16, updated_at = $17
		WHERE id = $1 AND updated_at < $17
	`
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.Title,
		r.Description,
		r.Category,
		nullFloat(r.Consequence),
		nullFloat(r.Likelihood),
		nullFloat(r.Controllability),
		nullFloat(r.ResidualConsequence),
		nullFloat(r.ResidualLikelihood),
		r.Mitigation,
		string(r.Status),
		r.Score.Score,
		string(r.Score.Level),
		r.Score.ResidualScore,
		residualLevel(r.Score),
		r.OwnerUnit,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update risk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update risk rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.FindByID(ctx, r.ID); err != nil {
		return err
	}
	return sentinel.ErrStale
}

func (s *PostgresStore) Delete(ctx context.Context, riskID id.RiskID) error {
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, `DELETE FROM risks WHERE id = $1`, uuid.UUID(riskID))
	if err != nil {
		return fmt.Errorf("delete risk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete risk rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRisk(row rowScanner) (*models.Risk, error) {
	var (
		r                                        models.Risk
		rawID                                    uuid.UUID
		consequence, likelihood, controllability sql.NullFloat64
		residualConsequence, residualLikelihood  sql.NullFloat64
		status, createdBy                        string
	)
	err := row.Scan(
		&rawID,
		&r.Title,
		&r.Description,
		&r.Category,
		&consequence,
		&likelihood,
		&controllability,
		&residualConsequence,
		&residualLikelihood,
		&r.Mitigation,
		&status,
		&r.OwnerUnit,
		&createdBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID = id.RiskID(rawID)
	r.Consequence = number(consequence)
	r.Likelihood = number(likelihood)
	r.Controllability = number(controllability)
	r.ResidualConsequence = number(residualConsequence)
	r.ResidualLikelihood = number(residualLikelihood)
	r.Status = models.Status(status)
	r.CreatedBy = id.UserID(createdBy)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	r.Rescore()
	return &r, nil
}

func nullFloat(n scoring.Number) sql.NullFloat64 {
	return sql.NullFloat64{Float64: n.Value, Valid: n.Valid}
}

func number(n sql.NullFloat64) scoring.Number {
	return scoring.Number{Value: n.Float64, Valid: n.Valid}
}

func residualLevel(score scoring.RiskScore) sql.NullString {
	if score.ResidualLevel == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*score.ResidualLevel), Valid: true}
}
