package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"qsync/internal/indicator/models"
	"qsync/internal/platform/postgres"
	"qsync/internal/scoring"
	id "qsync/pkg/domain"
	"qsync/pkg/platform/sentinel"
	txcontext "qsync/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const submissionColumns = `id, profile_id, period, numerator, denominator, analysis, status,
	rejection_reason, achievement, result, owner_unit, created_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, sub *models.Submission) error {
	query := `INSERT INTO indicator_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(sub.ID),
		uuid.UUID(sub.ProfileID),
		sub.Period,
		nullFloat(sub.Numerator),
		nullFloat(sub.Denominator),
		sub.Analysis,
		string(sub.Status),
		sub.RejectionReason,
		sub.Achievement,
		string(sub.Result),
		sub.OwnerUnit,
		string(sub.CreatedBy),
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err):
			return sentinel.ErrConflict
		case postgres.IsForeignKeyViolation(err):
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	return s.find(ctx, `SELECT `+submissionColumns+` FROM indicator_submissions WHERE id = $1`, submissionID)
}

func (s *PostgresStore) FindForUpdate(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	return s.find(ctx, `SELECT `+submissionColumns+` FROM indicator_submissions WHERE id = $1 FOR UPDATE`, submissionID)
}

func (s *PostgresStore) find(ctx context.Context, query string, submissionID id.SubmissionID) (*models.Submission, error) {
	sub, err := scanSubmission(txcontext.Execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(submissionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.SubmissionFilter) ([]*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM indicator_submissions`
	var args []any
	if filter.ProfileID != nil {
		query += ` WHERE profile_id = $1`
		args = append(args, uuid.UUID(*filter.ProfileID))
	}
	query += ` ORDER BY created_at, id`

	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByProfile(ctx context.Context, profileID id.ProfileID) (int, error) {
	var n int
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM indicator_submissions WHERE profile_id = $1`, uuid.UUID(profileID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountByProfiles(ctx context.Context, profileIDs []id.ProfileID) (map[id.ProfileID]int, error) {
	counts := make(map[id.ProfileID]int)
	if len(profileIDs) == 0 {
		return counts, nil
	}
	keys := make([]string, len(profileIDs))
	for i, pid := range profileIDs {
		keys[i] = pid.String()
	}
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, `
		SELECT profile_id, COUNT(*) FROM indicator_submissions
		WHERE profile_id = ANY($1::uuid[])
		GROUP BY profile_id
	`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("count submissions by profile: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rawID uuid.UUID
			n     int
		)
		if err := rows.Scan(&rawID, &n); err != nil {
			return nil, fmt.Errorf("scan submission count: %w", err)
		}
		counts[id.ProfileID(rawID)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submission counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) Update(ctx context.Context, sub *models.Submission) error {
	query := `
		UPDATE indicator_submissions SET
			period = $2, numerator = $3, denominator = $4, analysis = $5,
			status = $6, rejection_reason = $7, achievement = $8, result = $9,
			owner_unit = $10, updated_at = $11
		WHERE id = $1 AND updated_at < $11
	`
	exec := txcontext.Execer(ctx, s.db)
	res, err := exec.ExecContext(ctx, query,
		uuid.UUID(sub.ID),
		sub.Period,
		nullFloat(sub.Numerator),
		nullFloat(sub.Denominator),
		sub.Analysis,
		string(sub.Status),
		sub.RejectionReason,
		sub.Achievement,
		string(sub.Result),
		sub.OwnerUnit,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update submission rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var one int
	err = exec.QueryRowContext(ctx, `SELECT 1 FROM indicator_submissions WHERE id = $1`, uuid.UUID(sub.ID)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check submission: %w", err)
	}
	return sentinel.ErrStale
}

func (s *PostgresStore) Delete(ctx context.Context, submissionID id.SubmissionID) error {
	res, err := txcontext.Execer(ctx, s.db).ExecContext(ctx,
		`DELETE FROM indicator_submissions WHERE id = $1`, uuid.UUID(submissionID))
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete submission rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		sub         models.Submission
		rawID       uuid.UUID
		rawProfile  uuid.UUID
		numerator   sql.NullFloat64
		denominator sql.NullFloat64
		achievement sql.NullFloat64
		status      string
		result      string
		createdBy   string
	)
	err := row.Scan(
		&rawID,
		&rawProfile,
		&sub.Period,
		&numerator,
		&denominator,
		&sub.Analysis,
		&status,
		&sub.RejectionReason,
		&achievement,
		&result,
		&sub.OwnerUnit,
		&createdBy,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.ID = id.SubmissionID(rawID)
	sub.ProfileID = id.ProfileID(rawProfile)
	sub.Numerator = scoring.Number{Value: numerator.Float64, Valid: numerator.Valid}
	sub.Denominator = scoring.Number{Value: denominator.Float64, Valid: denominator.Valid}
	if achievement.Valid {
		v := achievement.Float64
		sub.Achievement = &v
	}
	sub.Status = models.SubmissionStatus(status)
	sub.Result = scoring.Result(result)
	sub.CreatedBy = id.UserID(createdBy)
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}

func nullFloat(n scoring.Number) sql.NullFloat64 {
	return sql.NullFloat64{Float64: n.Value, Valid: n.Valid}
}
