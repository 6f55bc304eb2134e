package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"qsync/internal/indicator/models"
	"qsync/internal/platform/postgres"
	"qsync/internal/scoring"
	id "qsync/pkg/domain"
	"qsync/pkg/platform/sentinel"
	txcontext "qsync/pkg/platform/tx"
)

// PostgresStore persists profiles in indicator_profiles. Pure I/O: lock and
// status rules live in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `id, code, title, description, category, numerator_definition, denominator_definition,
	standard, standard_unit, notes, status, rejection_reason, owner_unit, created_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Profile) error {
	query := `INSERT INTO indicator_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		p.Code,
		p.Title,
		p.Description,
		p.Category,
		p.NumeratorDefinition,
		p.DenominatorDefinition,
		nullFloat(p.Standard),
		string(p.StandardUnit),
		p.Notes,
		string(p.Status),
		p.RejectionReason,
		p.OwnerUnit,
		string(p.CreatedBy),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	return s.find(ctx, `SELECT `+profileColumns+` FROM indicator_profiles WHERE id = $1`, profileID)
}

// FindForUpdate locks the row until the surrounding transaction ends.
func (s *PostgresStore) FindForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	return s.find(ctx, `SELECT `+profileColumns+` FROM indicator_profiles WHERE id = $1 FOR UPDATE`, profileID)
}

func (s *PostgresStore) find(ctx context.Context, query string, profileID id.ProfileID) (*models.Profile, error) {
	p, err := scanProfile(txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(profileID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Profile, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT `+profileColumns+` FROM indicator_profiles ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

// Update writes every mutable column. The stored updated_at must be older than
// the new one; otherwise the write is stale.
func (s *PostgresStore) Update(ctx context.Context, p *models.Profile) error {
	query := `
		UPDATE indicator_profiles SET
			code = $2, title = $3, description = $4, category = $5,
			numerator_definition = $6, denominator_definition = $7,
			standard = $8, standard_unit = $9, notes = $10, status = $11,
			rejection_reason = $12, owner_unit = $13, updated_at = $14
		WHERE id = $1 AND updated_at < $14
	`
	exec := txcontext.Execer(ctx, s.db)
	res, err := exec.ExecContext(ctx, query,
		uuid.UUID(p.ID),
		p.Code,
		p.Title,
		p.Description,
		p.Category,
		p.NumeratorDefinition,
		p.DenominatorDefinition,
		nullFloat(p.Standard),
		string(p.StandardUnit),
		p.Notes,
		string(p.Status),
		p.RejectionReason,
		p.OwnerUnit,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return staleOrMissing(ctx, exec, res, `SELECT 1 FROM indicator_profiles WHERE id = $1`, uuid.UUID(p.ID))
}

// Delete maps the submissions foreign key (ON DELETE RESTRICT) onto ErrHasDependents.
func (s *PostgresStore) Delete(ctx context.Context, profileID id.ProfileID) error {
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx,
		`DELETE FROM indicator_profiles WHERE id = $1`, uuid.UUID(profileID))
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrHasDependents
		}
		return fmt.Errorf("delete profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p         models.Profile
		rawID     uuid.UUID
		standard  sql.NullFloat64
		unit      string
		status    string
		createdBy string
	)
	err := row.Scan(
		&rawID,
		&p.Code,
		&p.Title,
		&p.Description,
		&p.Category,
		&p.NumeratorDefinition,
		&p.DenominatorDefinition,
		&standard,
		&unit,
		&p.Notes,
		&status,
		&p.RejectionReason,
		&p.OwnerUnit,
		&createdBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id.ProfileID(rawID)
	p.Standard = scoring.Number{Value: standard.Float64, Valid: standard.Valid}
	p.StandardUnit = scoring.ParseStandardUnit(unit)
	p.Status = models.ProfileStatus(status)
	p.CreatedBy = id.UserID(createdBy)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func nullFloat(n scoring.Number) sql.NullFloat64 {
	return sql.NullFloat64{Float64: n.Value, Valid: n.Valid}
}

func staleOrMissing(ctx context.Context, exec txcontext.Executor, res sql.Result, existsQuery string, key any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var one int
	if err := exec.QueryRowContext(ctx, existsQuery, key).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("check existence: %w", err)
	}
	return sentinel.ErrStale
}
